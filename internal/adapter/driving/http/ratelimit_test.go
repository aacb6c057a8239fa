package httphandler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestClientLimiter_PerClientAllowance(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newClientLimiter(3, time.Hour, clock.now)

	for i := range 3 {
		ok, _ := l.allow("10.0.0.1")
		require.True(t, ok, "request %d", i+1)
	}

	ok, wait := l.allow("10.0.0.1")
	assert.False(t, ok)
	assert.InDelta(t, (20 * time.Minute).Seconds(), wait.Seconds(), 1)

	ok, _ = l.allow("10.0.0.2")
	assert.True(t, ok, "other clients keep their own bucket")

	clock.t = clock.t.Add(21 * time.Minute)
	ok, _ = l.allow("10.0.0.1")
	assert.True(t, ok, "a token refills every window/limit")
	ok, _ = l.allow("10.0.0.1")
	assert.False(t, ok)
}

func TestClientLimiter_DropsIdleBuckets(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := newClientLimiter(2, time.Hour, clock.now)

	l.allow("10.0.0.1")
	l.allow("10.0.0.2")
	require.Len(t, l.buckets, 2)

	clock.t = clock.t.Add(30 * time.Minute)
	l.allow("10.0.0.2")

	clock.t = clock.t.Add(45 * time.Minute)
	l.allow("10.0.0.3")

	assert.NotContains(t, l.buckets, "10.0.0.1")
	assert.Contains(t, l.buckets, "10.0.0.2")
	assert.Contains(t, l.buckets, "10.0.0.3")
}

func TestRateLimitMiddleware(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := rateLimitMiddleware(newClientLimiter(1, time.Hour, clock.now), next)

	serve := func(path, remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, serve("/api/v1/me", "10.0.0.1:5000").Code)

	rec := serve("/api/v1/me", "10.0.0.1:5001")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "the port does not identify a client")
	assert.Equal(t, "3600", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")

	for range 3 {
		assert.Equal(t, http.StatusNoContent, serve(healthPath, "10.0.0.1:5002").Code)
	}
}
