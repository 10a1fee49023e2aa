package tui

import (
	"context"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// snapshotFeed 只保留最新的快照，界面来不及渲染时中间状态会被合并。
type snapshotFeed struct {
	mu     sync.Mutex
	latest service.Snapshot
	ready  chan struct{}
}

func newSnapshotFeed() *snapshotFeed {
	return &snapshotFeed{ready: make(chan struct{}, 1)}
}

func (f *snapshotFeed) push(snap service.Snapshot) {
	f.mu.Lock()
	if snap.Seq < f.latest.Seq {
		f.mu.Unlock()
		return
	}
	f.latest = snap
	f.mu.Unlock()
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// waitForSnapshot 阻塞到会话发布新的状态。
func waitForSnapshot(f *snapshotFeed) tea.Cmd {
	return func() tea.Msg {
		<-f.ready
		f.mu.Lock()
		defer f.mu.Unlock()
		return SnapshotMsg{Snapshot: f.latest}
	}
}

// sendDraft 在后台 goroutine 中发送输入框内容。
func sendDraft(session *service.ChatSession) tea.Cmd {
	return func() tea.Msg {
		return SendDoneMsg{Accepted: session.SubmitDraft(context.Background())}
	}
}

// fetchNews 执行一次资讯抓取。
func fetchNews(news service.NewsService, lang model.Language) tea.Cmd {
	return func() tea.Msg {
		return NewsMsg{Items: news.FetchLatest(context.Background(), lang)}
	}
}
