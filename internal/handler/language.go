package handler

import (
	"kkx-toolkit-go/internal/middleware"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"

	"github.com/gin-gonic/gin"
)

// resolveLanguage 依次使用 ?lang= 参数、已保存的偏好和 Accept-Language。
func resolveLanguage(c *gin.Context, prefs service.PreferenceService) model.Language {
	if lang, err := model.ParseLanguage(c.Query("lang")); err == nil {
		return lang
	}
	return prefs.ResolveLanguage(c.Request.Context(), c.GetString(middleware.DeviceIDKey), c.GetHeader("Accept-Language"))
}
