package tui

import (
	"fmt"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"
	"strings"
)

// View 实现 tea.Model 接口
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Kaixiang's AI Toolkit"))
	b.WriteString("\n")

	for _, msg := range m.snapshot.Messages {
		if msg.Role == model.RoleUser {
			b.WriteString(UserStyle.Render(msg.Content))
		} else {
			content := msg.Content
			if content == "" {
				content = "..."
			}
			if content == service.FallbackErrorText {
				b.WriteString(ErrorStyle.Render(content))
			} else {
				b.WriteString(AIStyle.Render(content))
			}
		}
		b.WriteString("\n\n")
	}

	if m.newsLoading || m.newsFetched {
		b.WriteString(BoxStyle.Render(m.formatNews()))
		b.WriteString("\n\n")
	}

	b.WriteString(InfoStyle.Render(fmt.Sprintf("[%s] %s  %d/%d",
		m.snapshot.Language, m.snapshot.State, m.snapshot.Quota.Count, m.snapshot.Quota.Limit)))
	b.WriteString("\n")

	if m.snapshot.State == service.StateLocked {
		b.WriteString(ErrorStyle.Render(m.snapshot.Language.LimitReachedText()))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString(ErrorStyle.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("> " + m.input)
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render("Enter to send | /news | /lang zh|en|ja | Esc or Ctrl+C to quit"))
	return b.String()
}

// formatNews 把资讯列表格式化为文本
func (m Model) formatNews() string {
	if m.newsLoading {
		return InfoStyle.Render("Fetching news...")
	}
	if len(m.newsItems) == 0 {
		return ErrorStyle.Render("Could not synchronize news.")
	}
	var b strings.Builder
	for i, item := range m.newsItems {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(fmt.Sprintf("%s  %s\n", item.Date, item.Title))
		b.WriteString(InfoStyle.Render(item.Summary))
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render(fmt.Sprintf("%s | %s", item.SourceLabel, item.URL)))
	}
	return b.String()
}
