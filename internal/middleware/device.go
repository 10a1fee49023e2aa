package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// DeviceIDKey 是 gin.Context 中保存设备 ID 的键。
	DeviceIDKey = "deviceID"
	// DeviceCookieName 是标识浏览器设备的 cookie 名。
	DeviceCookieName = "kkx_device_id"

	deviceCookieMaxAge = 10 * 365 * 24 * 60 * 60
)

// DeviceIdentity 为每个浏览器分配一个长期有效的设备 ID。
// 配额与语言偏好都按设备隔离，这里不做任何账号认证。
func DeviceIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID, err := c.Cookie(DeviceCookieName)
		if err != nil || uuid.Validate(deviceID) != nil {
			deviceID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(DeviceCookieName, deviceID, deviceCookieMaxAge, "/", "", false, true)
		}
		c.Set(DeviceIDKey, deviceID)
		c.Next()
	}
}
