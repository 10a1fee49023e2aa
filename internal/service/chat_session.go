package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/repository"
	"kkx-toolkit-go/pkg/llm"
	"kkx-toolkit-go/pkg/log"
	"strings"
	"sync"
)

// SessionState 是聊天会话的状态机状态。
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateSending   SessionState = "sending"
	StateStreaming SessionState = "streaming"
	StateError     SessionState = "error"
	// StateLocked 在配额耗尽后进入，之后不会再有发送。
	StateLocked SessionState = "locked"
)

// FallbackErrorText 在流式输出失败时替换最后一条 ai 消息。
const FallbackErrorText = "Error communicating with Gemini."

// Snapshot 是会话在某一时刻的只读副本。
type Snapshot struct {
	Messages []model.ChatMessage `json:"messages"`
	State    SessionState        `json:"state"`
	Quota    model.UsageQuota    `json:"quota"`
	Language model.Language      `json:"language"`
	// Seq 随每次取快照单调递增，消费方据此丢弃过期的快照。
	Seq uint64 `json:"seq"`
}

// SessionOptions 控制单个会话的生成参数。
type SessionOptions struct {
	Language    model.Language
	Persona     string
	Temperature float64
	// Streaming 为 false 时使用一次性生成，整段文本视为唯一的片段。
	Streaming bool
}

// ChatSession 管理一台设备上的一次对话：配额检查、消息追加与流式渲染。
type ChatSession struct {
	mu sync.Mutex
	// notifyMu 保证快照按生成顺序送达观察者
	notifyMu  sync.Mutex
	llmClient llm.Client
	quotas    repository.QuotaStore
	opts      SessionOptions

	lang      model.Language
	messages  []model.ChatMessage
	draft     string
	state     SessionState
	quota     model.UsageQuota
	seq       uint64
	observers []func(Snapshot)
}

// NewChatSession 从 quotas 读取当前配额并创建会话。
func NewChatSession(ctx context.Context, llmClient llm.Client, quotas repository.QuotaStore, opts SessionOptions) (*ChatSession, error) {
	quota, err := quotas.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage quota: %w", err)
	}
	if opts.Language == "" {
		opts.Language = model.DefaultLanguage
	}
	s := &ChatSession{
		llmClient: llmClient,
		quotas:    quotas,
		opts:      opts,
		lang:      opts.Language,
		quota:     quota,
		state:     StateIdle,
	}
	if quota.Exhausted() {
		s.state = StateLocked
	}
	return s, nil
}

// OnUpdate 注册一个观察者，每次状态变化后收到一份快照。
// 观察者按顺序串行调用，不能在回调里再修改会话。
func (s *ChatSession) OnUpdate(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Snapshot 返回当前会话状态的副本。
func (s *ChatSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ChatSession) snapshotLocked() Snapshot {
	msgs := make([]model.ChatMessage, len(s.messages))
	copy(msgs, s.messages)
	s.seq++
	return Snapshot{Messages: msgs, State: s.state, Quota: s.quota, Language: s.lang, Seq: s.seq}
}

// SetLanguage 切换后续请求使用的显示语言。
func (s *ChatSession) SetLanguage(lang model.Language) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	s.notify()
}

// SetDraft 更新输入框内容。
func (s *ChatSession) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// Draft 返回输入框中尚未发送的内容。
func (s *ChatSession) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SubmitDraft 发送当前输入框内容，语义与 Send 相同。
func (s *ChatSession) SubmitDraft(ctx context.Context) bool {
	return s.Send(ctx, s.Draft())
}

// Send 发送一条消息并阻塞到本轮回复结束。
// 输入为空、会话忙或配额已耗尽时什么也不做并返回 false。
// 配额在每次发送前从存储重新读取，定时重置对已打开的会话同样生效。
// 回复在脱离 ctx 取消信号的上下文中生成，关闭界面不会中断它。
func (s *ChatSession) Send(ctx context.Context, text string) bool {
	trimmed := strings.TrimSpace(text)

	s.mu.Lock()
	if trimmed == "" || s.state == StateSending || s.state == StateStreaming {
		s.mu.Unlock()
		return false
	}
	changed := s.reloadQuotaLocked(context.WithoutCancel(ctx))
	if s.quota.Exhausted() {
		s.mu.Unlock()
		if changed {
			s.notify()
		}
		return false
	}
	s.state = StateSending
	s.messages = append(s.messages, model.ChatMessage{Role: model.RoleUser, Content: trimmed})
	s.draft = ""
	s.quota.Count++
	quota := s.quota
	lang := s.lang
	s.mu.Unlock()
	s.notify()

	streamCtx := context.WithoutCancel(ctx)
	// 乐观计数：先写入，请求失败也不回退
	if err := s.quotas.Write(streamCtx, quota); err != nil {
		log.Errorf("[ChatSession] 保存消息计数失败: %v", err)
	}

	s.mu.Lock()
	s.messages = append(s.messages, model.ChatMessage{Role: model.RoleAI})
	s.state = StateStreaming
	s.mu.Unlock()
	s.notify()

	req := llm.Request{
		Prompt:            trimmed,
		SystemInstruction: s.systemInstruction(lang),
		Temperature:       llm.Float64(s.opts.Temperature),
	}
	if err := s.generate(streamCtx, req); err != nil {
		log.Errorf("[ChatSession] 生成回复失败: %v", err)
		s.mu.Lock()
		s.messages[len(s.messages)-1].Content = FallbackErrorText
		s.state = StateError
		s.mu.Unlock()
		s.notify()
	}

	s.mu.Lock()
	s.state = StateIdle
	if s.quota.Exhausted() {
		s.state = StateLocked
	}
	s.mu.Unlock()
	s.notify()
	return true
}

// reloadQuotaLocked 用存储中的计数替换缓存，读取失败时沿用缓存。
// 返回可见状态是否发生了变化。
func (s *ChatSession) reloadQuotaLocked(ctx context.Context) bool {
	fresh, err := s.quotas.Read(ctx)
	if err != nil {
		log.Warnf("[ChatSession] 读取消息计数失败，沿用会话内计数: %v", err)
		return false
	}
	prevQuota, prevState := s.quota, s.state
	s.quota = fresh
	switch {
	case fresh.Exhausted() && s.state == StateIdle:
		s.state = StateLocked
	case !fresh.Exhausted() && s.state == StateLocked:
		s.state = StateIdle
	}
	return s.quota != prevQuota || s.state != prevState
}

// generate 把每个片段追加到累加器，并用累加结果整体替换最后一条 ai 消息。
func (s *ChatSession) generate(ctx context.Context, req llm.Request) error {
	if !s.opts.Streaming {
		resp, err := s.llmClient.Generate(ctx, req)
		if err != nil {
			return err
		}
		s.replaceTrailing(resp.Text)
		return nil
	}

	stream, err := s.llmClient.StreamGenerate(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	var acc strings.Builder
	for {
		fragment, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		acc.WriteString(fragment)
		s.replaceTrailing(acc.String())
	}
}

func (s *ChatSession) replaceTrailing(content string) {
	s.mu.Lock()
	s.messages[len(s.messages)-1].Content = content
	s.mu.Unlock()
	s.notify()
}

func (s *ChatSession) systemInstruction(lang model.Language) string {
	if strings.Contains(s.opts.Persona, "%s") {
		return fmt.Sprintf(s.opts.Persona, lang)
	}
	return s.opts.Persona + "\nCurrent language: " + string(lang) + "."
}

func (s *ChatSession) notify() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	snap := s.snapshotLocked()
	observers := make([]func(Snapshot), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()
	for _, fn := range observers {
		fn(snap)
	}
}
