package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, UserID(c))
	})
	return r
}

func do(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTokenRoundTrip(t *testing.T) {
	am := NewAuthMiddleware("secret", time.Hour)

	token, err := am.GenerateToken("user-1", "a@example.com")
	require.NoError(t, err)

	userID, email, err := am.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
	assert.Equal(t, "a@example.com", email)
}

func TestParseTokenRejects(t *testing.T) {
	am := NewAuthMiddleware("secret", time.Hour)

	other, err := NewAuthMiddleware("other", time.Hour).GenerateToken("user-1", "")
	require.NoError(t, err)
	_, _, err = am.ParseToken(other)
	assert.ErrorIs(t, err, ErrInvalidToken)

	stale := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(-time.Minute).Unix(),
	})
	staleToken, err := stale.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, _, err = am.ParseToken(staleToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	numeric := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 42})
	numericToken, err := numeric.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, _, err = am.ParseToken(numericToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequireAuth(t *testing.T) {
	am := NewAuthMiddleware("secret", time.Hour)
	r := newEngine(am.RequireAuth())

	w := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w = do(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := am.GenerateToken("user-1", "")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	am := NewAuthMiddleware("secret", time.Hour)
	r := newEngine(am.OptionalAuth())

	w := do(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	token, err := am.GenerateToken("user-2", "")
	require.NoError(t, err)
	w = do(r, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-2", w.Body.String())

	w = do(r, httptest.NewRequest(http.MethodGet, "/me?token=bad", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type stubLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (s *stubLimiter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.keys = append(s.keys, key)
	return s.allowed, s.err
}

func TestRateLimit(t *testing.T) {
	limiter := &stubLimiter{allowed: true}
	rl := NewRateLimitMiddleware(limiter)
	r := newEngine(rl.RateLimit("ws", 5, time.Minute))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, limiter.keys, 1)
	assert.Equal(t, "relay:rate_limit:ws:ip:10.0.0.1", limiter.keys[0])

	limiter.allowed = false
	w = do(r, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	limiter.err = errors.New("redis down")
	w = do(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitKeysByUser(t *testing.T) {
	am := NewAuthMiddleware("secret", time.Hour)
	limiter := &stubLimiter{allowed: true}
	r := newEngine(am.OptionalAuth(), NewRateLimitMiddleware(limiter).RateLimit("ws", 5, time.Minute))

	token, err := am.GenerateToken("user-3", "")
	require.NoError(t, err)
	do(r, httptest.NewRequest(http.MethodGet, "/me?token="+token, nil))
	require.Len(t, limiter.keys, 1)
	assert.Equal(t, "relay:rate_limit:ws:user-3", limiter.keys[0])
}

func TestCORS(t *testing.T) {
	r := newEngine(CORS([]string{"https://app.example.com/"}))

	cases := []struct {
		origin string
		want   string
	}{
		{"https://app.example.com", "https://app.example.com"},
		{"http://localhost:5173", "http://localhost:5173"},
		{"https://evil.example.com", ""},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Origin", tc.origin)
		w := do(r, req)
		assert.Equal(t, tc.want, w.Header().Get("Access-Control-Allow-Origin"), tc.origin)
	}

	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := do(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAccessLine(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	param := gin.LogFormatterParams{
		TimeStamp:  at,
		StatusCode: http.StatusCreated,
		Latency:    15 * time.Millisecond,
		ClientIP:   "10.0.0.7",
		Method:     http.MethodPost,
		Path:       "/api/v1/media",
		Keys:       map[string]any{ContextUserID: "u1"},
	}
	assert.Equal(t, "[2024-05-01 12:00:00] | 201 | 15ms | 10.0.0.7 | POST /api/v1/media | user=u1 | \n", accessLine(param))

	param.Keys = nil
	param.ErrorMessage = "boom"
	assert.Equal(t, "[2024-05-01 12:00:00] | 201 | 15ms | 10.0.0.7 | POST /api/v1/media | user=- | boom\n", accessLine(param))
}
