package service

import (
	"context"
	"fmt"
	"kkx-toolkit-go/internal/config"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/pkg/llm"
	"kkx-toolkit-go/pkg/log"
	"time"
)

// NewsService 拉取高教科研资讯。
type NewsService interface {
	// FetchLatest 返回 0 到 MaxItems 条资讯，任何失败都表现为空结果。
	FetchLatest(ctx context.Context, lang model.Language) []model.NewsItem
}

type newsService struct {
	llmClient   llm.Client
	temperature float64
	opts        ExtractOptions
	now         func() time.Time
}

// NewNewsService 创建一个新的 NewsService 实例。
func NewNewsService(llmClient llm.Client, cfg config.NewsConfig) NewsService {
	return &newsService{
		llmClient:   llmClient,
		temperature: cfg.Temperature,
		opts: ExtractOptions{
			MaxItems:         cfg.MaxItems,
			MinSectionLength: cfg.MinSectionLength,
			TitleMaxLength:   cfg.TitleMaxLength,
			SourceLabel:      cfg.SourceLabel,
		}.withDefaults(),
		now: time.Now,
	}
}

func newsPrompt(lang model.Language, maxItems int, source string) string {
	return fmt.Sprintf(`Find %d most recent and relevant news headlines specifically for Higher Education Research or University Management from '%s'.
    For each news item, provide:
    1. Title
    2. A 2-sentence descriptive summary of the findings or the news content.
    3. The direct URL.

    Language of the response: %s.`, maxItems, source, lang)
}

func (s *newsService) FetchLatest(ctx context.Context, lang model.Language) (items []model.NewsItem) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[NewsService] 解析资讯时发生 panic: %v", r)
			items = []model.NewsItem{}
		}
	}()

	resp, err := s.llmClient.Generate(ctx, llm.Request{
		Prompt:      newsPrompt(lang, s.opts.MaxItems, s.opts.SourceLabel),
		Temperature: llm.Float64(s.temperature),
		Grounding:   true,
	})
	if err != nil {
		log.Errorf("[NewsService] 获取资讯失败: %v", err)
		return []model.NewsItem{}
	}

	sections := Segment(resp.Text, s.opts.MinSectionLength)
	items = BuildItems(sections, resp.GroundingURLs, lang, s.now(), s.opts)
	log.Infow("news fetched", "language", lang, "sections", len(sections), "groundingURLs", len(resp.GroundingURLs), "items", len(items))
	return items
}
