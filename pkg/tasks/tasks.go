// Package tasks 负责运行站点的周期性后台任务。
package tasks

import (
	"context"
	"fmt"
	"kkx-toolkit-go/internal/repository"
	"kkx-toolkit-go/pkg/log"
	"sync"

	"github.com/robfig/cron/v3"
)

// Scheduler 包装 cron，目前只承载配额重置任务。
type Scheduler struct {
	cron   *cron.Cron
	mu     sync.Mutex
	jobIDs []cron.EntryID
}

// NewScheduler 创建一个未启动的 Scheduler。
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New()}
}

// ScheduleQuotaReset 按 schedule（标准 5 段 cron 表达式）清空所有设备的消息计数。
func (s *Scheduler) ScheduleQuotaReset(schedule string, kv repository.KVStore) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(schedule, func() {
		ResetQuotas(context.Background(), kv)
	})
	if err != nil {
		return fmt.Errorf("failed to add quota reset job: %w", err)
	}
	s.jobIDs = append(s.jobIDs, id)
	log.Infof("配额重置任务已注册，计划: %s", schedule)
	return nil
}

// ResetQuotas 执行一次配额重置。
func ResetQuotas(ctx context.Context, kv repository.KVStore) {
	n, err := repository.ResetAllQuotas(ctx, kv)
	if err != nil {
		log.Error("配额重置失败", err)
		return
	}
	log.Infof("配额重置完成，清除了 %d 台设备的计数", n)
}

// Start 启动调度。
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在运行的任务结束。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Jobs 返回已注册的任务数量。
func (s *Scheduler) Jobs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobIDs)
}
