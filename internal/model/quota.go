package model

// DefaultMessageLimit 是每台设备的默认消息上限。
const DefaultMessageLimit = 10

// UsageQuota 记录一台设备已发送的消息数与上限。
type UsageQuota struct {
	Count int `json:"count"`
	Limit int `json:"limit"`
}

// Exhausted 在已用次数达到上限后返回 true。
func (q UsageQuota) Exhausted() bool {
	return q.Count >= q.Limit
}

// Remaining 返回剩余可发送的条数，不会小于 0。
func (q UsageQuota) Remaining() int {
	if q.Count >= q.Limit {
		return 0
	}
	return q.Limit - q.Count
}
