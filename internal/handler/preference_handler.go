package handler

import (
	"kkx-toolkit-go/internal/middleware"
	"kkx-toolkit-go/internal/model"
	"kkx-toolkit-go/internal/service"
	"kkx-toolkit-go/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// PreferenceHandler 读写设备的显示语言。
type PreferenceHandler struct {
	preferenceService service.PreferenceService
}

// NewPreferenceHandler 创建一个新的 PreferenceHandler。
func NewPreferenceHandler(preferenceService service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferenceService: preferenceService}
}

// GetLanguage 返回当前设备生效的显示语言。
func (h *PreferenceHandler) GetLanguage(c *gin.Context) {
	lang := h.preferenceService.ResolveLanguage(c.Request.Context(), c.GetString(middleware.DeviceIDKey), c.GetHeader("Accept-Language"))
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"language": lang}})
}

// SetLanguage 保存设备的显示语言。
func (h *PreferenceHandler) SetLanguage(c *gin.Context) {
	var req struct {
		Language string `json:"language" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
		return
	}
	lang, err := model.ParseLanguage(req.Language)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": err.Error(), "data": nil})
		return
	}
	if err := h.preferenceService.SetLanguage(c.Request.Context(), c.GetString(middleware.DeviceIDKey), lang); err != nil {
		log.Errorf("保存语言偏好失败: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "保存语言偏好失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": gin.H{"language": lang}})
}
