// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"kkx-toolkit-go/internal/config"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/repository"
	"kkx-toolkit-go/pkg/llm"
)

// ChatService 为每台设备创建聊天会话并暴露其配额。
type ChatService interface {
	NewSession(ctx context.Context, deviceID string, lang model.Language) (*ChatSession, error)
	Quota(ctx context.Context, deviceID string) (model.UsageQuota, error)
}

type chatService struct {
	llmClient llm.Client
	kv        repository.KVStore
	cfg       config.ChatConfig
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(llmClient llm.Client, kv repository.KVStore, cfg config.ChatConfig) ChatService {
	if cfg.MessageLimit <= 0 {
		cfg.MessageLimit = model.DefaultMessageLimit
	}
	if cfg.Persona == "" {
		cfg.Persona = config.DefaultPersona
	}
	return &chatService{
		llmClient: llmClient,
		kv:        kv,
		cfg:       cfg,
	}
}

// NewSession 每次都从存储重新读取配额，对应页面重新加载。
func (s *chatService) NewSession(ctx context.Context, deviceID string, lang model.Language) (*ChatSession, error) {
	return NewChatSession(ctx, s.llmClient, s.quotaStore(deviceID), SessionOptions{
		Language:    lang,
		Persona:     s.cfg.Persona,
		Temperature: s.cfg.Temperature,
		Streaming:   s.cfg.Streaming,
	})
}

func (s *chatService) Quota(ctx context.Context, deviceID string) (model.UsageQuota, error) {
	return s.quotaStore(deviceID).Read(ctx)
}

func (s *chatService) quotaStore(deviceID string) repository.QuotaStore {
	return repository.NewQuotaStore(s.kv, deviceID, s.cfg.MessageLimit)
}
