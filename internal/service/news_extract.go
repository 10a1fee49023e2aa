package service

import (
	"kkx-toolkit-go/internal/model"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// sectionMarker 匹配行首的编号 ("1. ") 或项目符号/标题符号 ("*", "#", "-")。
var sectionMarker = regexp.MustCompile(`(?m)^[ \t]*(?:\d+\.|[*#-]+)\s+`)

const (
	placeholderURL    = "#"
	defaultTitle      = "Research Insight"
	truncationMarker  = "..."
	defaultMinSection = 30
	defaultTitleMax   = 150
)

// ExtractOptions 控制启发式抽取的阈值。
type ExtractOptions struct {
	MaxItems         int
	MinSectionLength int
	TitleMaxLength   int
	SourceLabel      string
}

func (o ExtractOptions) withDefaults() ExtractOptions {
	if o.MaxItems <= 0 {
		o.MaxItems = 3
	}
	if o.MinSectionLength <= 0 {
		o.MinSectionLength = defaultMinSection
	}
	if o.TitleMaxLength <= 0 {
		o.TitleMaxLength = defaultTitleMax
	}
	return o
}

// Segment 按编号与项目符号把模型输出切成候选段落，并丢弃噪声段。
// 一段只有在长度不足 minLength 且只有一行时才算噪声：有标题加正文两行的短段仍然保留。
func Segment(text string, minLength int) []string {
	if minLength <= 0 {
		minLength = defaultMinSection
	}
	var sections []string
	for _, part := range sectionMarker.Split(text, -1) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) < minLength && len(nonEmptyLines(part)) < 2 {
			continue
		}
		sections = append(sections, part)
	}
	return sections
}

// URLAt 返回与第 i 段对应位置的来源链接，没有时返回 "#"。
func URLAt(urls []string, i int) string {
	if i < len(urls) && urls[i] != "" {
		return urls[i]
	}
	return placeholderURL
}

// BuildItems 把段落与同位置的来源链接配对，生成至多 MaxItems 条资讯。
func BuildItems(sections, urls []string, lang model.Language, now time.Time, opts ExtractOptions) []model.NewsItem {
	opts = opts.withDefaults()
	n := min(len(sections), opts.MaxItems)
	items := make([]model.NewsItem, 0, n)
	date := lang.FormatMonthDay(now)

	for i := 0; i < n; i++ {
		lines := nonEmptyLines(sections[i])
		title := defaultTitle
		if len(lines) > 0 {
			title = lines[0]
		}

		var summary string
		if len(lines) > 1 {
			summary = strings.Join(lines[1:], " ")
		}
		if i < len(urls) && urls[i] != "" {
			summary = strings.Replace(summary, urls[i], "", 1)
		}
		summary = strings.TrimSpace(summary)
		if summary == "" {
			summary = lang.NewsPlaceholderSummary()
		}

		items = append(items, model.NewsItem{
			Title:       truncateRunes(title, opts.TitleMaxLength),
			Summary:     summary,
			URL:         URLAt(urls, i),
			SourceLabel: opts.SourceLabel,
			Date:        date,
		})
	}
	return items
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + truncationMarker
}
