// Package tui 是聊天会话与资讯列表的终端界面。
package tui

import (
	"context"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"
	"kkx-toolkit-go/pkg/log"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// Model 是包装单个 ChatSession 的 bubbletea 模型。
type Model struct {
	session     *service.ChatSession
	news        service.NewsService
	preferences service.PreferenceService
	deviceID    string
	feed        *snapshotFeed

	snapshot    service.Snapshot
	input       string
	newsItems   []model.NewsItem
	newsLoading bool
	newsFetched bool
	notice      string
}

// NewModel 创建终端界面，并订阅会话的状态变化。
func NewModel(session *service.ChatSession, news service.NewsService, preferences service.PreferenceService, deviceID string) Model {
	feed := newSnapshotFeed()
	session.OnUpdate(feed.push)
	return Model{
		session:     session,
		news:        news,
		preferences: preferences,
		deviceID:    deviceID,
		feed:        feed,
		snapshot:    session.Snapshot(),
	}
}

// Init 实现 tea.Model 接口
func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.feed)
}

// Update 实现 tea.Model 接口
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		return m, waitForSnapshot(m.feed)
	case SendDoneMsg:
		if !msg.Accepted {
			m.notice = m.rejectedNotice()
		}
		return m, nil
	case NewsMsg:
		m.newsLoading = false
		m.newsFetched = true
		m.newsItems = msg.Items
		return m, nil
	}
	return m, nil
}

// handleKeyPress 处理键盘输入
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit
	case tea.KeyEnter:
		return m.submit()
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m, nil
}

// submit 处理输入行：斜杠命令在本地执行，其余作为聊天消息发送。
func (m Model) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input)
	m.notice = ""

	switch {
	case line == "/quit":
		return m, tea.Quit
	case line == "/news":
		m.input = ""
		if m.newsLoading {
			return m, nil
		}
		m.newsLoading = true
		return m, fetchNews(m.news, m.snapshot.Language)
	case strings.HasPrefix(line, "/lang"):
		m.input = ""
		lang, err := model.ParseLanguage(strings.TrimSpace(strings.TrimPrefix(line, "/lang")))
		if err != nil {
			m.notice = "usage: /lang zh|en|ja"
			return m, nil
		}
		if err := m.preferences.SetLanguage(context.Background(), m.deviceID, lang); err != nil {
			log.Errorf("保存语言偏好失败: %v", err)
		}
		m.session.SetLanguage(lang)
		return m, nil
	}

	// 输入框在 Send 接受消息时才清空
	m.session.SetDraft(m.input)
	if line != "" && m.snapshot.State != service.StateSending && m.snapshot.State != service.StateStreaming && !m.snapshot.Quota.Exhausted() {
		m.input = ""
	}
	return m, sendDraft(m.session)
}

func (m Model) rejectedNotice() string {
	if m.snapshot.Quota.Exhausted() {
		return m.snapshot.Language.LimitReachedText()
	}
	return ""
}
