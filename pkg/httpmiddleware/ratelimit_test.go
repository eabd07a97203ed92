package httpmiddleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLimitedHandler(t *testing.T, max int, window time.Duration) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(ctx, RateLimitConfig{Max: max, Window: window}),
	)
}

func doRequest(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_AllowsWithinLimit(t *testing.T) {
	h := newLimitedHandler(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		rec := doRequest(h, "10.0.0.1")
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
}

func TestRateLimit_BlocksOverLimit(t *testing.T) {
	h := newLimitedHandler(t, 2, time.Minute)

	doRequest(h, "10.0.0.2")
	doRequest(h, "10.0.0.2")
	rec := doRequest(h, "10.0.0.2")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, rec.Body.String())
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	h := newLimitedHandler(t, 1, time.Minute)

	require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.3").Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(h, "10.0.0.3").Code)
	require.Equal(t, http.StatusOK, doRequest(h, "10.0.0.4").Code)
}

func TestRateLimit_HeadersPresent(t *testing.T) {
	h := newLimitedHandler(t, 5, time.Minute)

	rec := doRequest(h, "10.0.0.5")
	assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("X-RateLimit-Reset"))
}

func TestClientIP_ForwardedFor(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 70.41.3.18")
	assert.Equal(t, "203.0.113.7", clientIP(req))
}

func TestClientIP_RemoteAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.9:4711"
	assert.Equal(t, "192.0.2.9", clientIP(req))
}
