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

	"github.com/iliyamo/greenhouse-led-hub/internal/config"
)

// captureWriter captures response body/status while forwarding to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 {
		cw.buf.Write(b)
	} else if remain := cw.limit - cw.size; remain > 0 {
		if int64(len(b)) <= remain {
			cw.buf.Write(b)
		} else {
			cw.buf.Write(b[:remain])
		}
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// storeScript writes a response only while the device's generation still
// matches the one read before the handler ran.  An invalidation in between
// bumps the generation and the stale response is dropped.
//
// KEYS[1] generation, KEYS[2] response; ARGV: generation, payload, ttl ms.
var storeScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1]) or '0'
if cur ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// ResponseCache caches LED poll responses in Redis, one entry per device.
// A nil client or a disabled config turns it into a pass-through.
type ResponseCache struct {
	cfg config.CacheConfig
	rdb *redis.Client
}

// NewResponseCache returns a cache backed by rdb.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client) *ResponseCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	return &ResponseCache{cfg: cfg, rdb: rdb}
}

func (rc *ResponseCache) enabled() bool { return rc != nil && rc.cfg.Enabled && rc.rdb != nil }

// deviceKey builds a stable key for one device's cached response.
func deviceKey(prefix, deviceID string) string {
	sum := sha1.Sum([]byte("device:" + deviceID))
	return fmt.Sprintf("%s:%x", prefix, sum[:])
}

// HealthCheck pings Redis.  A disabled cache is always healthy.
func (rc *ResponseCache) HealthCheck(ctx context.Context) error {
	if !rc.enabled() {
		return nil
	}
	if err := rc.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check: %w", err)
	}
	return nil
}

// generationKey holds a counter bumped on every invalidation of deviceID.
func generationKey(prefix, deviceID string) string {
	return deviceKey(prefix+":gen", deviceID)
}

// InvalidateDevice evicts the cached response for deviceID and bumps its
// generation so responses computed before the call are never stored.
func (rc *ResponseCache) InvalidateDevice(ctx context.Context, deviceID string) error {
	if !rc.enabled() {
		return nil
	}
	_, err := rc.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Incr(ctx, generationKey(rc.cfg.Prefix, deviceID))
		p.Del(ctx, deviceKey(rc.cfg.Prefix, deviceID))
		return nil
	})
	return err
}

// generation reads deviceID's current generation; "0" when never bumped.
func (rc *ResponseCache) generation(ctx context.Context, deviceID string) (string, error) {
	gen, err := rc.rdb.Get(ctx, generationKey(rc.cfg.Prefix, deviceID)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	return gen, err
}

// Middleware serves cached 200 responses keyed on the device_id query
// parameter.  Headers and body are stored together so clients see the
// original formatting.  Requests without device_id are never cached, and a
// response is only stored if no invalidation happened while it was built.
func (rc *ResponseCache) Middleware() echo.MiddlewareFunc {
	if !rc.enabled() {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	maxBody := int64(rc.cfg.MaxBodyBytes)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			deviceID := c.QueryParam("device_id")
			if deviceID == "" || !rc.cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}

			ctx := c.Request().Context()
			key := deviceKey(rc.cfg.Prefix, deviceID)

			if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
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
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			}

			// Without a generation there is nothing to guard the store with.
			gen, genErr := rc.generation(ctx, deviceID)

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if genErr != nil || cw.status != http.StatusOK || (maxBody > 0 && cw.size > maxBody) {
				return nil
			}

			hdr := make(http.Header, len(c.Response().Header()))
			for k, vals := range c.Response().Header() {
				if strings.EqualFold(k, "X-Cache") {
					continue
				}
				hdr[k] = append([]string(nil), vals...)
			}
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				keys := []string{generationKey(rc.cfg.Prefix, deviceID), key}
				_ = storeScript.Run(context.WithoutCancel(ctx), rc.rdb, keys, gen, payload, rc.cfg.TTL.Milliseconds()).Err()
			}
			return nil
		}
	}
}

// encodePayload packs: [4 bytes status][4 bytes headerLen][headerJSON][body]
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
