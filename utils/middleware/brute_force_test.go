package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/utils/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBruteForce(t *testing.T) (*BruteForceProtection, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	redisCache, err := cache.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = redisCache.Close() })

	return NewBruteForceProtection(redisCache), mr
}

func TestLockoutFor(t *testing.T) {
	tests := []struct {
		attempts int64
		want     time.Duration
	}{
		{1, 0},
		{4, 0},
		{5, 2 * time.Minute},
		{9, 2 * time.Minute},
		{10, time.Hour},
		{25, 24 * time.Hour},
		{100, 24 * time.Hour},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, lockoutFor(tt.attempts), "attempts=%d", tt.attempts)
	}
}

func TestBruteForceLocksOutAfterFiveFailures(t *testing.T) {
	bf, mr := newBruteForce(t)
	ctx := context.Background()
	const ip = "203.0.113.7"

	app := fiber.New(fiber.Config{ProxyHeader: fiber.HeaderXForwardedFor})
	app.Post("/login", bf.CheckAndRecordAttempt(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	login := func() *http.Response {
		req := httptest.NewRequest(fiber.MethodPost, "/login", nil)
		req.Header.Set(fiber.HeaderXForwardedFor, ip)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, bf.RecordFailedAttempt(ctx, ip, "alice"))
	}
	count, err := bf.GetAttemptCount(ctx, ip)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	assert.Equal(t, fiber.StatusOK, login().StatusCode)

	require.NoError(t, bf.RecordFailedAttempt(ctx, ip, "alice"))
	assert.True(t, mr.Exists(lockKey(ip)))
	assert.Equal(t, 2*time.Minute, mr.TTL(lockKey(ip)))

	resp := login()
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "120", resp.Header.Get("Retry-After"))

	// the lock expires on its own
	mr.FastForward(2*time.Minute + time.Second)
	assert.Equal(t, fiber.StatusOK, login().StatusCode)
}

func TestBruteForceSuccessClearsAttempts(t *testing.T) {
	bf, mr := newBruteForce(t)
	ctx := context.Background()
	const ip = "10.1.1.1"

	for i := 0; i < 5; i++ {
		require.NoError(t, bf.RecordFailedAttempt(ctx, ip, "bob"))
	}
	require.True(t, mr.Exists(lockKey(ip)))
	assert.Equal(t, 15*time.Minute, mr.TTL(attemptKey(ip)))

	require.NoError(t, bf.RecordSuccessfulAttempt(ctx, ip))
	assert.False(t, mr.Exists(lockKey(ip)))

	count, err := bf.GetAttemptCount(ctx, ip)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBruteForceFailsOpenWhenRedisIsDown(t *testing.T) {
	bf, mr := newBruteForce(t)
	mr.Close()

	app := fiber.New()
	app.Post("/login", bf.CheckAndRecordAttempt(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	assert.NoError(t, bf.RecordFailedAttempt(context.Background(), "10.2.2.2", "carol"))
}
