package service

import (
	"context"
	"errors"
	"kkx-toolkit-go/internal/config"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/pkg/llm"
	"strings"
	"testing"
	"time"
)

func newTestNewsService(client llm.Client) *newsService {
	svc := NewNewsService(client, config.NewsConfig{
		Temperature:      0.2,
		MaxItems:         3,
		MinSectionLength: 30,
		TitleMaxLength:   150,
		SourceLabel:      "University World News",
	}).(*newsService)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestFetchLatestBuildsGroundedItems(t *testing.T) {
	client := newFakeLLM()
	client.response = &llm.Response{
		Text: "Headlines:\n\n" +
			"1. Universities expand AI research centres\nSeveral institutions announced new labs. Funding comes from industry.\n" +
			"2. Global rankings shake-up\nAsian universities climb in the latest table. Analysts cite investment.\n" +
			"3. PhD stipends under review\nGovernments weigh increases. Students welcome the move.\n" +
			"4. Extra item\nShould be dropped by the cap.",
		GroundingURLs: []string{"https://uwn/1", "https://uwn/2"},
	}
	svc := newTestNewsService(client)

	items := svc.FetchLatest(context.Background(), model.LanguageEN)
	if len(items) != 3 {
		t.Fatalf("items = %+v", items)
	}
	if items[0].Title != "Universities expand AI research centres" || items[0].URL != "https://uwn/1" {
		t.Fatalf("item[0] = %+v", items[0])
	}
	if items[1].URL != "https://uwn/2" || items[2].URL != "#" {
		t.Fatalf("positional URLs = %q, %q", items[1].URL, items[2].URL)
	}
	if items[0].Date != "Oct 16" || items[0].SourceLabel != "University World News" {
		t.Fatalf("item[0] = %+v", items[0])
	}

	req := client.lastRequest()
	if !req.Grounding || req.Temperature == nil || *req.Temperature != 0.2 {
		t.Fatalf("request = %+v", req)
	}
	if !strings.Contains(req.Prompt, "Language of the response: en") || !strings.Contains(req.Prompt, "University World News") {
		t.Fatalf("prompt = %q", req.Prompt)
	}
}

func TestFetchLatestSwallowsFailures(t *testing.T) {
	client := newFakeLLM()
	client.generateErr = errors.New("gemini api returned status 500")
	items := newTestNewsService(client).FetchLatest(context.Background(), model.LanguageZH)
	if items == nil || len(items) != 0 {
		t.Fatalf("items = %#v, want empty non-nil slice", items)
	}
}

func TestFetchLatestMissingKeyIsEmpty(t *testing.T) {
	client := llm.NewClient(config.LLMConfig{BaseURL: "http://127.0.0.1:0", Model: "m"})
	if items := newTestNewsService(client).FetchLatest(context.Background(), model.LanguageEN); len(items) != 0 {
		t.Fatalf("items = %+v", items)
	}
}
