package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/linkpulse/internal/config"
	"github.com/user/linkpulse/internal/models"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct {
	keys map[string]*models.APIKey
	err  error
}

func (f fakeValidator) ValidateKey(ctx context.Context, rawKey string) (*models.APIKey, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.keys[rawKey], nil
}

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func (f *fakeCounter) IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[key]++
	return f.counts[key], nil
}

func newKey() *models.APIKey {
	return &models.APIKey{ID: uuid.New(), UserID: uuid.New(), RateLimit: 2, IsActive: true}
}

func ownerEcho(c *gin.Context) {
	if owner := OwnerID(c); owner != nil {
		c.String(http.StatusOK, owner.String())
		return
	}
	c.String(http.StatusOK, "anonymous")
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyAuth_RequireKey(t *testing.T) {
	key := newKey()
	auth := NewAPIKeyAuth(fakeValidator{keys: map[string]*models.APIKey{"lp_live_good": key}}, zap.NewNop())

	r := gin.New()
	r.GET("/private", auth.RequireKey(), ownerEcho)

	tests := []struct {
		name       string
		header     string
		value      string
		wantStatus int
		wantBody   string
	}{
		{"x-api-key header", "X-API-Key", "lp_live_good", http.StatusOK, key.UserID.String()},
		{"bearer token", "Authorization", "Bearer lp_live_good", http.StatusOK, key.UserID.String()},
		{"missing key", "", "", http.StatusUnauthorized, models.ErrCodeUnauthorized},
		{"unknown key", "X-API-Key", "lp_live_bad", http.StatusUnauthorized, models.ErrCodeUnauthorized},
		{"basic auth is not a key", "Authorization", "Basic abc", http.StatusUnauthorized, models.ErrCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			w := serve(r, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestAPIKeyAuth_OptionalKey(t *testing.T) {
	key := newKey()
	auth := NewAPIKeyAuth(fakeValidator{keys: map[string]*models.APIKey{"lp_live_good": key}}, zap.NewNop())

	r := gin.New()
	r.GET("/maybe", auth.OptionalKey(), ownerEcho)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/maybe", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set("X-API-Key", "lp_live_good")
	w = serve(r, req)
	assert.Equal(t, key.UserID.String(), w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/maybe", nil)
	req.Header.Set("X-API-Key", "lp_live_typo")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "a bad key is not downgraded to anonymous")
}

func TestAPIKeyAuth_BackendFailure(t *testing.T) {
	auth := NewAPIKeyAuth(fakeValidator{err: errors.New("pool closed")}, zap.NewNop())

	r := gin.New()
	r.GET("/private", auth.RequireKey(), ownerEcho)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("X-API-Key", "lp_live_good")
	w := serve(r, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeStorageUnavailable)
}

func TestRequireUser(t *testing.T) {
	admin, other := newKey(), newKey()
	auth := NewAPIKeyAuth(fakeValidator{keys: map[string]*models.APIKey{"admin": admin, "other": other}}, zap.NewNop())

	r := gin.New()
	r.POST("/ops", auth.RequireKey(), RequireUser([]string{admin.UserID.String(), "not-a-uuid"}), ownerEcho)
	r.POST("/closed", auth.RequireKey(), RequireUser(nil), ownerEcho)

	call := func(path, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("X-API-Key", key)
		return serve(r, req)
	}

	assert.Equal(t, http.StatusOK, call("/ops", "admin").Code)

	w := call("/ops", "other")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeForbidden)

	assert.Equal(t, http.StatusForbidden, call("/closed", "admin").Code)
}

func newTestRateLimiter(counter Counter, rpm, burst int) *RateLimiter {
	rl := NewRateLimiter(counter, config.RateLimitConfig{RequestsPerMinute: rpm, BurstSize: burst}, zap.NewNop())
	rl.now = func() time.Time { return time.Date(2025, 7, 1, 9, 0, 15, 0, time.UTC) }
	return rl
}

func TestRateLimiter_PerIP(t *testing.T) {
	rl := newTestRateLimiter(&fakeCounter{}, 2, 1)

	r := gin.New()
	r.GET("/:code", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusFound) })

	visit := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/abc", nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.254")
		return serve(r, req)
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusFound, visit("203.0.113.7").Code, "request %d", i+1)
	}

	w := visit("203.0.113.7")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "45", w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusFound, visit("198.51.100.1").Code, "other clients are unaffected")
}

func TestRateLimiter_PerKeyLimit(t *testing.T) {
	key := newKey()
	key.RateLimit = 1
	auth := NewAPIKeyAuth(fakeValidator{keys: map[string]*models.APIKey{"k": key}}, zap.NewNop())
	rl := newTestRateLimiter(&fakeCounter{}, 100, 0)

	r := gin.New()
	r.GET("/api/x", auth.RequireKey(), rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func() int {
		req := httptest.NewRequest(http.MethodGet, "/api/x", nil)
		req.Header.Set("X-API-Key", "k")
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, call())
	assert.Equal(t, http.StatusTooManyRequests, call())
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	rl := NewRateLimiter(&fakeCounter{err: errors.New("redis down")}, config.RateLimitConfig{RequestsPerMinute: 1}, zap.New(core))

	r := gin.New()
	r.GET("/:code", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusFound) })

	for i := 0; i < 5; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, "/abc", nil))
		require.Equal(t, http.StatusFound, w.Code)
	}
	assert.Equal(t, 5, logs.FilterMessage("Rate limit check failed, allowing request").Len())
}

func TestClientIP(t *testing.T) {
	r := gin.New()
	r.GET("/ip", func(c *gin.Context) { c.String(http.StatusOK, ClientIP(c)) })

	req := httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", serve(r, req).Body.String())

	req = httptest.NewRequest(http.MethodGet, "/ip", nil)
	req.Header.Set("X-Forwarded-For", " 192.0.2.1 , 10.0.0.1")
	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.1", serve(r, req).Body.String())
}

func TestSecurityHeadersAndCORS(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders(), CORS(DefaultCORSConfig()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := serve(r, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "X-API-Key")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.FilterMessage("HTTP request").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, int64(http.StatusServiceUnavailable), entries[1].ContextMap()["status"])
}
