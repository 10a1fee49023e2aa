package model

// NewsItem 是一次资讯抓取得到的结构化条目，不做持久化。
type NewsItem struct {
	Title       string `json:"title"`
	Summary     string `json:"summary"`
	URL         string `json:"url"`
	SourceLabel string `json:"sourceLabel"`
	Date        string `json:"date"`
}
