package tui

import (
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"
)

// SnapshotMsg 携带会话的最新状态。
type SnapshotMsg struct {
	Snapshot service.Snapshot
}

// SendDoneMsg 在 Send 返回后发出。
type SendDoneMsg struct {
	Accepted bool
}

// NewsMsg 携带一次资讯抓取的结果。
type NewsMsg struct {
	Items []model.NewsItem
}
