package handler

import (
	"kkx-toolkit-go/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewsHandler 返回最新的高教资讯。
type NewsHandler struct {
	newsService       service.NewsService
	preferenceService service.PreferenceService
}

// NewNewsHandler 创建一个新的 NewsHandler。
func NewNewsHandler(newsService service.NewsService, preferenceService service.PreferenceService) *NewsHandler {
	return &NewsHandler{newsService: newsService, preferenceService: preferenceService}
}

// Latest 抓取失败时返回空列表和 synced=false，不会返回错误状态码。
func (h *NewsHandler) Latest(c *gin.Context) {
	lang := resolveLanguage(c, h.preferenceService)
	items := h.newsService.FetchLatest(c.Request.Context(), lang)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{
		"items":    items,
		"synced":   len(items) > 0,
		"language": lang,
	}})
}
