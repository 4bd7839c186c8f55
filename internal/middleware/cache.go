package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/van-seat-reservation/internal/config"
)

// cacheStore is the slice of Redis the response cache needs.  Entries are
// namespaced by a generation counter; bumping it invalidates every entry
// at once.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Generation(ctx context.Context) (int64, error)
	Bump(ctx context.Context) error
}

type redisCache struct {
	rdb    *redis.Client
	genKey string
}

func (r redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	bs, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	return bs, err == nil, err
}

func (r redisCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, val, ttl).Err()
}

func (r redisCache) Generation(ctx context.Context) (int64, error) {
	n, err := r.rdb.Get(ctx, r.genKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r redisCache) Bump(ctx context.Context) error {
	return r.rdb.Incr(ctx, r.genKey).Err()
}

// ResponseCache caches successful read responses in Redis and invalidates
// them when a mutation succeeds.
type ResponseCache struct {
	cfg   config.CacheConfig
	store cacheStore
}

// NewResponseCache returns a cache; with caching disabled or no Redis
// client both of its middlewares are no-ops.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	if !cfg.Enabled || rdb == nil {
		return &ResponseCache{cfg: cfg}
	}
	return &ResponseCache{cfg: cfg, store: redisCache{rdb: rdb, genKey: cfg.Prefix + ":gen"}}
}

// captureWriter tees the response body (up to limit bytes) while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int64
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit > 0 && int64(cw.buf.Len()+len(b)) > cw.limit {
		cw.truncated = true
	} else {
		cw.buf.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}

// cacheKey hashes the route (and query) under the current generation.
func (rc *ResponseCache) cacheKey(c echo.Context, gen int64) string {
	tail := "route:" + c.Path()
	for _, name := range c.ParamNames() {
		tail += ":" + name + "=" + c.Param(name)
	}
	if strings.ToLower(rc.cfg.KeyStrategy) != "route" {
		tail += ":q:" + c.Request().URL.RawQuery
	}
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%d:%x", rc.cfg.Prefix, gen, sum[:])
}

// Read serves cached responses for the configured methods and stores
// fresh 200 responses.  The X-Cache header reports HIT or MISS.
func (rc *ResponseCache) Read() echo.MiddlewareFunc {
	if rc.store == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := rc.store.Generation(ctx)
			if err != nil {
				return next(c)
			}
			key := rc.cacheKey(c, gen)

			if bs, ok, err := rc.store.Get(ctx, key); err == nil && ok {
				if status, hdr, body, ok := decodePayload(bs); ok {
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					return c.Blob(status, hdr.Get(echo.HeaderContentType), body)
				}
			}

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: int64(rc.cfg.MaxBodyBytes)}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}

			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				_ = rc.store.Set(context.WithoutCancel(ctx), key, payload, rc.cfg.TTL)
			}
			return nil
		}
	}
}

// Invalidate bumps the cache generation after every successful mutating
// request so no cached queue view outlives the change.
func (rc *ResponseCache) Invalidate() echo.MiddlewareFunc {
	if rc.store == nil {
		return passthrough
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			m := c.Request().Method
			if m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions {
				return err
			}
			if err == nil && c.Response().Status < http.StatusBadRequest {
				if bumpErr := rc.store.Bump(context.WithoutCancel(c.Request().Context())); bumpErr != nil {
					c.Logger().Warnf("cache: bump generation: %v", bumpErr)
				}
			}
			return err
		}
	}
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}
