package service

import (
	"kkx-toolkit-go/internal/model"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

var fixedNow = time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC)

func TestSegmentAndPairNumberedList(t *testing.T) {
	text := "1. Title A\nDetail A1.\n2. Title B\nDetail B1."
	sections := Segment(text, 30)
	if len(sections) != 2 {
		t.Fatalf("sections = %q", sections)
	}

	items := BuildItems(sections, []string{"http://a", "http://b"}, model.LanguageEN, fixedNow, ExtractOptions{SourceLabel: "University World News"})
	if len(items) != 2 {
		t.Fatalf("items = %+v", items)
	}
	want := []model.NewsItem{
		{Title: "Title A", Summary: "Detail A1.", URL: "http://a", SourceLabel: "University World News", Date: "Oct 16"},
		{Title: "Title B", Summary: "Detail B1.", URL: "http://b", SourceLabel: "University World News", Date: "Oct 16"},
	}
	for i := range want {
		if items[i] != want[i] {
			t.Fatalf("item[%d] = %+v, want %+v", i, items[i], want[i])
		}
	}
}

func TestSegmentDropsShortNoise(t *testing.T) {
	cases := []struct {
		name string
		text string
	}{
		{"short numbered", "1. Tiny\n2. Small\n3. Also small"},
		{"short bullets", "Here you go:\n* a\n* b\n- c"},
		{"empty", ""},
		{"whitespace", "   \n\n  "},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			sections := Segment(c.text, 30)
			if len(sections) != 0 {
				t.Fatalf("sections = %q, want none", sections)
			}
			if items := BuildItems(sections, []string{"http://a"}, model.LanguageEN, fixedNow, ExtractOptions{}); len(items) != 0 {
				t.Fatalf("items = %+v, want empty", items)
			}
		})
	}
}

func TestSegmentSplitsOnBulletAndHeadingMarkers(t *testing.T) {
	text := "Here are the latest stories from University World News:\n" +
		"* Universities rethink research funding after budget cuts\n" +
		"# Student mobility rebounds across Asia according to new survey\n" +
		"- Short"
	sections := Segment(text, 30)
	if len(sections) != 3 {
		t.Fatalf("sections = %q", sections)
	}
	if !strings.HasPrefix(sections[1], "Universities rethink") || !strings.HasPrefix(sections[2], "Student mobility") {
		t.Fatalf("sections = %q", sections)
	}
}

func TestSegmentIgnoresNumbersInsideLines(t *testing.T) {
	text := "1. Funding falls by 3. 5 percent this year in the sector\nMinisters blamed inflation."
	sections := Segment(text, 30)
	if len(sections) != 1 {
		t.Fatalf("sections = %q, mid-line numbers must not split", sections)
	}
}

func TestBuildItemsCapsAtMaxItems(t *testing.T) {
	sections := []string{
		"First headline about university rankings\nbody",
		"Second headline about research integrity\nbody",
		"Third headline about doctoral training\nbody",
		"Fourth headline that should be dropped\nbody",
	}
	items := BuildItems(sections, nil, model.LanguageEN, fixedNow, ExtractOptions{MaxItems: 3})
	if len(items) != 3 {
		t.Fatalf("len = %d, want 3", len(items))
	}
	for _, it := range items {
		if it.URL != "#" {
			t.Fatalf("URL = %q, want placeholder", it.URL)
		}
	}
}

func TestBuildItemsTruncatesLongTitle(t *testing.T) {
	long := strings.Repeat("研", 160)
	items := BuildItems([]string{long + "\nsummary"}, nil, model.LanguageZH, fixedNow, ExtractOptions{})
	title := items[0].Title
	if !strings.HasSuffix(title, "...") {
		t.Fatalf("title %q missing ellipsis", title)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(title, "...")); n != 150 {
		t.Fatalf("truncated title has %d runes, want 150", n)
	}

	exact := strings.Repeat("a", 150)
	if got := BuildItems([]string{exact + "\nx"}, nil, model.LanguageEN, fixedNow, ExtractOptions{})[0].Title; got != exact {
		t.Fatalf("150-char title should not be truncated, got %q", got)
	}
}

func TestBuildItemsSummaryStripsURLAndFallsBack(t *testing.T) {
	sections := []string{
		"Graduate employability survey released\nGraduates found work faster.\nSource: http://a/story",
		"Headline without any body text at all here",
	}
	items := BuildItems(sections, []string{"http://a/story"}, model.LanguageZH, fixedNow, ExtractOptions{})
	if got := items[0].Summary; got != "Graduates found work faster. Source:" {
		t.Fatalf("summary = %q", got)
	}
	if got := items[1].Summary; got != model.LanguageZH.NewsPlaceholderSummary() {
		t.Fatalf("summary = %q, want placeholder", got)
	}
	if items[1].URL != "#" {
		t.Fatalf("URL = %q", items[1].URL)
	}
	if items[0].Date != "10月16日" {
		t.Fatalf("date = %q", items[0].Date)
	}
}

func TestURLAt(t *testing.T) {
	urls := []string{"http://a", ""}
	if URLAt(urls, 0) != "http://a" || URLAt(urls, 1) != "#" || URLAt(urls, 5) != "#" {
		t.Fatal("URLAt positional pairing broken")
	}
}
