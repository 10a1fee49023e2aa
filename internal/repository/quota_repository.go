package repository

import (
	"context"
	"fmt"
	"kkx-toolkit-go/internal/model"
	"strconv"
)

// QuotaKeyPrefix 是消息计数的固定键前缀，后接设备 ID。
const QuotaKeyPrefix = "kkx_ai_msg_count:"

// QuotaStore 读写单台设备的消息配额。
type QuotaStore interface {
	Read(ctx context.Context) (model.UsageQuota, error)
	Write(ctx context.Context, quota model.UsageQuota) error
}

type kvQuotaStore struct {
	kv    KVStore
	key   string
	limit int
}

// NewQuotaStore 返回绑定到 deviceID 的 QuotaStore，limit 不持久化，总是取当前配置。
func NewQuotaStore(kv KVStore, deviceID string, limit int) QuotaStore {
	return &kvQuotaStore{kv: kv, key: QuotaKeyPrefix + deviceID, limit: limit}
}

// Read 读取计数；缺失或无法解析的值按 0 处理，与浏览器端 parseInt 的宽松行为一致。
func (s *kvQuotaStore) Read(ctx context.Context) (model.UsageQuota, error) {
	q := model.UsageQuota{Limit: s.limit}
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return q, fmt.Errorf("failed to read quota: %w", err)
	}
	if !ok {
		return q, nil
	}
	count, err := strconv.Atoi(raw)
	if err != nil || count < 0 {
		return q, nil
	}
	q.Count = count
	return q, nil
}

func (s *kvQuotaStore) Write(ctx context.Context, quota model.UsageQuota) error {
	if err := s.kv.Set(ctx, s.key, strconv.Itoa(quota.Count)); err != nil {
		return fmt.Errorf("failed to write quota: %w", err)
	}
	return nil
}

// ResetAllQuotas 清空所有设备的计数，返回被清除的设备数。
func ResetAllQuotas(ctx context.Context, kv KVStore) (int, error) {
	return kv.DeletePrefix(ctx, QuotaKeyPrefix)
}
