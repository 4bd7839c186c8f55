package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/van-seat-reservation/internal/config"
)

const testSecret = "test-secret-0123456789"

func signed(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func serve(e *echo.Echo, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthAndRole(t *testing.T) {
	e := echo.New()
	g := e.Group("/admin", JWTAuth(testSecret), RequireRole("ADMIN"))
	g.GET("/me", func(c echo.Context) error {
		id, ok := UserID(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.JSON(http.StatusOK, echo.Map{"id": id})
	})
	exp := time.Now().Add(time.Hour).Unix()

	rec := serve(e, http.MethodGet, "/admin/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/admin/me", signed(t, jwt.MapClaims{"sub": "7", "role": "ADMIN", "exp": exp}, "wrong-secret-0123456"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/admin/me", signed(t, jwt.MapClaims{"sub": "7", "role": "ADMIN"}, testSecret))
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "tokens without exp are rejected")

	rec = serve(e, http.MethodGet, "/admin/me", signed(t, jwt.MapClaims{"sub": "7", "role": "RIDER", "exp": exp}, testSecret))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", gjson.Get(rec.Body.String(), "error").String())

	rec = serve(e, http.MethodGet, "/admin/me", signed(t, jwt.MapClaims{"sub": "7", "role": "ADMIN", "exp": exp}, testSecret))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), gjson.Get(rec.Body.String(), "id").Int())
}

type fakeBuckets struct {
	mu     sync.Mutex
	tokens map[string]int64
	keys   []string
	err    error
}

func (f *fakeBuckets) Take(_ context.Context, key string, cfg config.RateLimitConfig, _ time.Time) (bucketResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.err != nil {
		return bucketResult{}, f.err
	}
	if f.tokens == nil {
		f.tokens = map[string]int64{}
	}
	left, seen := f.tokens[key]
	if !seen {
		left = int64(cfg.Capacity)
	}
	if left == 0 {
		return bucketResult{RetryAfter: 1500 * time.Millisecond}, nil
	}
	f.tokens[key] = left - 1
	return bucketResult{Allowed: true, Remaining: left - 1}, nil
}

func TestTokenBucketBlocksWhenEmpty(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, KeyStrategy: "ip_route", Prefix: "rl"}
	store := &fakeBuckets{}
	e := echo.New()
	e.POST("/join", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, tokenBucket(cfg, store, time.Now))

	for i := 1; i >= 0; i-- {
		rec := serve(e, http.MethodPost, "/join", "")
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, strconv.Itoa(i), rec.Header().Get("X-RateLimit-Remaining"))
	}

	rec := serve(e, http.MethodPost, "/join", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
	assert.Equal(t, "too_many_requests", gjson.Get(rec.Body.String(), "error").String())
	assert.Equal(t, "rl:ip:192.0.2.1:route:POST /join", store.keys[0])
}

func TestTokenBucketFailsOpen(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1}
	store := &fakeBuckets{err: context.DeadlineExceeded}
	e := echo.New()
	e.POST("/join", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, tokenBucket(cfg, store, time.Now))

	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/join", "").Code)
	assert.Equal(t, http.StatusCreated, serve(e, http.MethodPost, "/join", "").Code)
}

func TestNewTokenBucketWithoutRedisIsNoop(t *testing.T) {
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, mw)
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gen     int64
}

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *memoryCache) Set(_ context.Context, key string, val []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries == nil {
		m.entries = map[string][]byte{}
	}
	m.entries[key] = val
	return nil
}

func (m *memoryCache) Generation(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen, nil
}

func (m *memoryCache) Bump(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	return nil
}

func TestResponseCacheHitAndInvalidate(t *testing.T) {
	rc := &ResponseCache{
		cfg:   config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Minute, KeyStrategy: "route_query", Prefix: "cache"},
		store: &memoryCache{},
	}
	calls := 0
	e := echo.New()
	e.GET("/vans/:id/queue", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"van": c.Param("id"), "calls": calls})
	}, rc.Read())
	e.POST("/join", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, rc.Invalidate())
	e.POST("/fail", func(c echo.Context) error { return c.NoContent(http.StatusConflict) }, rc.Invalidate())

	first := serve(e, http.MethodGet, "/vans/1/queue", "")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	second := serve(e, http.MethodGet, "/vans/1/queue", "")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)

	other := serve(e, http.MethodGet, "/vans/2/queue", "")
	assert.Equal(t, "MISS", other.Header().Get("X-Cache"))

	serve(e, http.MethodPost, "/fail", "")
	assert.Equal(t, "HIT", serve(e, http.MethodGet, "/vans/1/queue", "").Header().Get("X-Cache"))

	serve(e, http.MethodPost, "/join", "")
	after := serve(e, http.MethodGet, "/vans/1/queue", "")
	assert.Equal(t, "MISS", after.Header().Get("X-Cache"))
	assert.Equal(t, int64(3), gjson.Get(after.Body.String(), "calls").Int())
}

func TestResponseCacheDisabled(t *testing.T) {
	rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil)
	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, rc.Read(), rc.Invalidate())
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"ok":true}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
