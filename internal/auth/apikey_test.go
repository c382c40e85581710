package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter(key string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ping", RequireKey(key), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return r
}

func doRequest(r *gin.Engine, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if key != "" {
		req.Header.Set(Header, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireKeyDisabledWhenEmpty(t *testing.T) {
	r := newTestRouter("")

	w := doRequest(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireKeyMissing(t *testing.T) {
	r := newTestRouter("secret")

	w := doRequest(r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "missing API key")
}

func TestRequireKeyWrong(t *testing.T) {
	r := newTestRouter("secret")

	w := doRequest(r, "not-the-secret")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "invalid API key")
}

func TestRequireKeyValid(t *testing.T) {
	r := newTestRouter("secret")

	w := doRequest(r, "secret")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}
