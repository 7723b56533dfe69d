package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"contactus-backend/internal/delivery/http/response"
	"contactus-backend/internal/domain"
	"contactus-backend/pkg/apperror"
	"contactus-backend/pkg/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var res response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		fromCtx, _ := c.Request.Context().Value(domain.KeyRequestID).(string)
		c.String(http.StatusOK, c.GetString(RequestIDKey)+"|"+fromCtx)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	id := w.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id+"|"+id, w.Body.String())

	inbound := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, inbound)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, inbound, w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEqual(t, "<script>", w.Header().Get(RequestIDHeader))
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://plasmodb.org", "*.veupathdb.org"}))
	r.POST("/contact", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		origin  string
		method  string
		status  int
		allowed bool
	}{
		{"https://plasmodb.org", http.MethodOptions, http.StatusNoContent, true},
		{"https://qa.veupathdb.org", http.MethodPost, http.StatusOK, true},
		{"http://qa.veupathdb.org", http.MethodOptions, http.StatusForbidden, false},
		{"https://evil.org", http.MethodOptions, http.StatusForbidden, false},
		{"", http.MethodPost, http.StatusOK, false},
	}
	for _, tt := range tests {
		t.Run(tt.origin+" "+tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/contact", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.allowed {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			} else {
				assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/app", func(c *gin.Context) { c.Error(apperror.BadRequest("Subject: Required")) })
	r.GET("/model", func(c *gin.Context) {
		c.Error(fmt.Errorf("wrapped: %w", apperror.NewModelError("send auto-reply", errors.New("refused"))))
	})
	r.GET("/other", func(c *gin.Context) { c.Error(errors.New("secret db detail")) })

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/app", http.StatusBadRequest, "Subject: Required"},
		{"/model", http.StatusInternalServerError, sendFailedMessage},
		{"/other", http.StatusInternalServerError, "An unexpected error occurred. Please try again later."},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
			res := decode(t, w)
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Message)
			assert.NotEmpty(t, res.RequestID)
			assert.NotContains(t, w.Body.String(), "refused")
			assert.NotContains(t, w.Body.String(), "secret db detail")
		})
	}
}

type stubVerifier struct {
	user *domain.User
	err  error
}

func (s stubVerifier) Verify(token string) (*domain.User, error) {
	return s.user, s.err
}

func TestOptionalAuth(t *testing.T) {
	run := func(v TokenVerifier, header string) *domain.User {
		var got *domain.User
		r := gin.New()
		r.Use(OptionalAuth(v))
		r.GET("/", func(c *gin.Context) { got = CurrentUser(c) })
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(httptest.NewRecorder(), req)
		return got
	}

	user := &domain.User{ID: 42, Email: "me@x.org"}
	assert.Equal(t, user, run(stubVerifier{user: user}, "Bearer good"))
	assert.True(t, run(stubVerifier{user: user}, "").IsGuest())
	assert.True(t, run(stubVerifier{err: errors.New("expired")}, "Bearer stale").IsGuest())
	assert.True(t, run(nil, "Bearer good").IsGuest())
}

func TestCurrentUserWithoutMiddleware(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.True(t, CurrentUser(c).IsGuest())
}

func rateLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	r := gin.New()
	r.Use(RateLimitMiddleware(cfg))
	r.POST("/contact", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r *gin.Engine) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contact", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimitInMemory(t *testing.T) {
	redis.Use(nil)
	cfg := ContactRateLimitConfig(2, time.Minute)
	cfg.KeyPrefix = "rl:test-mem:"
	r := rateLimitedRouter(cfg)

	assert.Equal(t, http.StatusOK, post(r).Code)
	w := post(r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = post(r)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()
	redis.Use(client)
	defer redis.Use(nil)

	r := rateLimitedRouter(ContactRateLimitConfig(1, time.Minute))
	assert.Equal(t, http.StatusOK, post(r).Code)
	assert.Equal(t, http.StatusTooManyRequests, post(r).Code)
	count, err := mr.Get("rl:contact:203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, "2", count)
}

func TestRateLimitRedisDownFailsClosed(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()
	redis.Use(client)
	defer redis.Use(nil)

	assert.Equal(t, http.StatusServiceUnavailable, post(rateLimitedRouter(ContactRateLimitConfig(5, time.Minute))).Code)

	cfg := GlobalRateLimitConfig(5, time.Minute)
	cfg.KeyPrefix = "rl:test-open:"
	assert.Equal(t, http.StatusOK, post(rateLimitedRouter(cfg)).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := rateLimitedRouter(GlobalRateLimitConfig(0, time.Minute))
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, post(r).Code)
	}
}

func TestMemoryLimiterWindows(t *testing.T) {
	m := newMemoryLimiter()
	now := time.Now()

	count, resetAt := m.hit("a", time.Minute, now)
	assert.Equal(t, 1, count)
	assert.Equal(t, now.Add(time.Minute), resetAt)

	count, _ = m.hit("a", time.Minute, now.Add(time.Second))
	assert.Equal(t, 2, count)

	// A hit after the window starts a new one
	count, _ = m.hit("a", time.Minute, now.Add(2*time.Minute))
	assert.Equal(t, 1, count)
}

func TestMemoryLimiterSweep(t *testing.T) {
	m := newMemoryLimiter()
	now := time.Now()
	m.hit("old", time.Second, now)
	m.hit("fresh", time.Hour, now)

	assert.Equal(t, 1, m.sweep(now.Add(time.Minute)))
	assert.Len(t, m.windows, 1)
	assert.Contains(t, m.windows, "fresh")
}

func TestMemoryLimiterStop(t *testing.T) {
	m := newMemoryLimiter()
	m.runSweeper(10 * time.Millisecond)
	m.runSweeper(10 * time.Millisecond)

	m.Stop()
	m.Stop()

	select {
	case <-m.done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not exit")
	}
}
