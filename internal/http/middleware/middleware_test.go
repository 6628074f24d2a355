package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"busease/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubTokens map[string]domain.RequestContext

func (s stubTokens) ParseToken(raw string) (domain.RequestContext, error) {
	if rc, ok := s[raw]; ok {
		return rc, nil
	}
	return domain.RequestContext{}, errors.New("bad token")
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := stubTokens{
		"user-7": {UserID: 7},
		"admin":  {UserID: 1, IsAdmin: true},
	}
	r := gin.New()
	r.Use(RequestID())
	r.GET("/users/:id", VerifyToken(tokens), RequireSelfOrAdmin("id"), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", Actor(c).UserID)
	})
	r.GET("/admin", VerifyToken(tokens), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/open", OptionalAuth(tokens), func(c *gin.Context) {
		c.String(http.StatusOK, "%t", Actor(c).Authenticated())
	})

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/users/7", "").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/users/7", "forged").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/users/8", "user-7").Code)

	w := serve(r, http.MethodGet, "/users/7", "user-7")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/users/8", "admin").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", "user-7").Code)
	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodGet, "/admin", "admin").Code)

	assert.Equal(t, "false", serve(r, http.MethodGet, "/open", "forged").Body.String())
	assert.Equal(t, "true", serve(r, http.MethodGet, "/open", "user-7").Body.String())
}

func TestRateLimiterPerIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/chat", RateLimiter(0.001, 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/chat", "").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/chat", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodGet, "/chat", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiterSweepsIdleBuckets(t *testing.T) {
	l := newIPRateLimiter(0.001, 1, 50*time.Millisecond)

	first := l.Limiter("10.0.0.1")
	assert.True(t, first.Allow())
	assert.Same(t, first, l.Limiter("10.0.0.1"))
	assert.False(t, l.Limiter("10.0.0.1").Allow())

	assert.Eventually(t, func() bool { return l.Len() == 0 }, 2*time.Second, 20*time.Millisecond)

	fresh := l.Limiter("10.0.0.1")
	assert.NotSame(t, first, fresh)
	assert.True(t, fresh.Allow())
}
