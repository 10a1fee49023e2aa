package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newDeviceRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(DeviceIdentity(), RequestLogger())
	r.GET("/whoami", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(DeviceIDKey))
	})
	return r
}

func TestDeviceIdentityIssuesCookie(t *testing.T) {
	r := newDeviceRouter()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != DeviceCookieName {
		t.Fatalf("cookies = %+v", cookies)
	}
	if w.Body.String() != cookies[0].Value {
		t.Fatalf("device id %q does not match cookie %q", w.Body.String(), cookies[0].Value)
	}
}

func TestDeviceIdentityReusesValidCookie(t *testing.T) {
	r := newDeviceRouter()
	const id = "7b0c5b36-8d0f-4d8a-9d59-2c1f0c6a1e11"
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: id})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() != id {
		t.Fatalf("device id = %q, want %q", w.Body.String(), id)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Fatal("valid cookie should not be reissued")
	}
}

func TestDeviceIdentityReplacesForgedCookie(t *testing.T) {
	r := newDeviceRouter()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(&http.Cookie{Name: DeviceCookieName, Value: "../../etc"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Body.String() == "../../etc" {
		t.Fatal("forged device id accepted")
	}
}
