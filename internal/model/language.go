package model

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Language 是站点支持的显示语言。
type Language string

const (
	LanguageZH Language = "zh"
	LanguageEN Language = "en"
	LanguageJA Language = "ja"

	DefaultLanguage = LanguageEN
)

// ParseLanguage 只接受 zh / en / ja。
func ParseLanguage(s string) (Language, error) {
	switch l := Language(strings.ToLower(strings.TrimSpace(s))); l {
	case LanguageZH, LanguageEN, LanguageJA:
		return l, nil
	default:
		return "", fmt.Errorf("unsupported language %q", s)
	}
}

// DetectLanguage 根据 Accept-Language 头推断显示语言：zh* -> zh，ja* -> ja，其余为 en。
func DetectLanguage(acceptLanguage string) Language {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return DefaultLanguage
	}
	base, _ := tags[0].Base()
	switch base.String() {
	case "zh":
		return LanguageZH
	case "ja":
		return LanguageJA
	default:
		return LanguageEN
	}
}

// FormatMonthDay 按语言习惯输出只含月、日的日期。
func (l Language) FormatMonthDay(t time.Time) string {
	switch l {
	case LanguageZH, LanguageJA:
		return fmt.Sprintf("%d月%d日", int(t.Month()), t.Day())
	default:
		return t.Format("Jan 2")
	}
}

// LimitReachedText 是达到消息上限时展示给用户的提示。
func (l Language) LimitReachedText() string {
	switch l {
	case LanguageZH:
		return "您已达到今日 10 条消息的试用上限。"
	case LanguageJA:
		return "1日の試用制限（10メッセージ）に達しました。"
	default:
		return "You've reached the daily trial limit of 10 messages."
	}
}

// NewsPlaceholderSummary 是资讯摘要为空时的占位语句。
func (l Language) NewsPlaceholderSummary() string {
	switch l {
	case LanguageZH:
		return "点击查看更多高教研究详情。"
	case LanguageJA:
		return "クリックしてこの研究の詳細をご覧ください。"
	default:
		return "Click to read more details about this research."
	}
}
