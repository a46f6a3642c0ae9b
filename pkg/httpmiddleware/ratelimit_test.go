package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// slow refills one token every ~17 minutes so tests only see the burst.
const slow = 0.001

func send(h http.Handler, remoteAddr string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_UnderBurst(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{RPS: slow, Burst: 5})(okHandler())

	for i := range 5 {
		w := send(h, "192.168.1.1:12345", nil)
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_OverBurst(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{RPS: slow, Burst: 2})(okHandler())

	for range 2 {
		require.Equal(t, http.StatusOK, send(h, "10.0.0.1:9999", nil).Code)
	}

	w := send(h, "10.0.0.1:9999", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var msg string
	d := jx.DecodeBytes(w.Body.Bytes())
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		return d.Obj(func(d *jx.Decoder, key string) error {
			if key != "message" {
				return d.Skip()
			}
			var err error
			msg, err = d.Str()
			return err
		})
	}))
	assert.Equal(t, "Rate limit exceeded", msg)
}

func TestRateLimit_RemainingDecreases(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{RPS: slow, Burst: 3})(okHandler())

	assert.Equal(t, "2", send(h, "10.0.0.9:1", nil).Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "1", send(h, "10.0.0.9:1", nil).Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "0", send(h, "10.0.0.9:1", nil).Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_DifferentIPs(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{RPS: slow, Burst: 1})(okHandler())

	assert.Equal(t, http.StatusOK, send(h, "10.0.0.1:1234", nil).Code)
	assert.Equal(t, http.StatusOK, send(h, "10.0.0.2:1234", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "10.0.0.1:5678", nil).Code)
}

func TestRateLimit_CustomKeyFunc(t *testing.T) {
	h := RateLimit(t.Context(), RateLimitConfig{
		RPS:   slow,
		Burst: 1,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})(okHandler())

	assert.Equal(t, http.StatusOK, send(h, "", map[string]string{"X-API-Key": "key-a"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, "", map[string]string{"X-API-Key": "key-a"}).Code)
	assert.Equal(t, http.StatusOK, send(h, "", map[string]string{"X-API-Key": "key-b"}).Code)
}

func TestRateLimit_DefaultBurst(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{RPS: 2.5})
	assert.Equal(t, 3, rl.cfg.Burst)

	rl = newRateLimiter(RateLimitConfig{RPS: slow})
	assert.Equal(t, 1, rl.cfg.Burst)
}

func TestRateLimit_Cleanup(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{RPS: 1, IdleTTL: time.Minute})
	now := time.Now()

	rl.limiter("stale", now.Add(-2*time.Minute))
	rl.limiter("fresh", now)
	require.Equal(t, 2, rl.len())

	rl.cleanup(now)
	assert.Equal(t, 1, rl.len())
}

func TestClientIP(t *testing.T) {
	for _, tt := range []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"RemoteAddr", "192.168.1.1:4444", nil, "192.168.1.1"},
		{"NoPort", "192.168.1.1", nil, "192.168.1.1"},
		{"ForwardedFor", "192.168.1.1:4444", map[string]string{"X-Forwarded-For": "203.0.113.50, 70.41.3.18"}, "203.0.113.50"},
		{"RealIP", "192.168.1.1:4444", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, clientIP(req))
		})
	}
}
