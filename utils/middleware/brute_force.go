package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/fitcamp-api/utils/cache"
	"github.com/sahilchouksey/fitcamp-api/utils/logger"
	"github.com/sahilchouksey/fitcamp-api/utils/response"
)

const (
	// attemptWindow is how long failed logins from one IP are remembered
	attemptWindow = 15 * time.Minute
	// checkTimeout bounds the lock lookup so an unreachable Redis cannot stall logins
	checkTimeout = 500 * time.Millisecond
)

// BruteForceProtection throttles logins per client IP using Redis counters.
// Every Redis failure lets the request through.
type BruteForceProtection struct {
	redisCache *cache.RedisCache
}

// NewBruteForceProtection creates a new brute force protection instance
func NewBruteForceProtection(redisCache *cache.RedisCache) *BruteForceProtection {
	return &BruteForceProtection{redisCache: redisCache}
}

func attemptKey(ip string) string { return "login:attempts:" + ip }
func lockKey(ip string) string    { return "login:lock:" + ip }

// CheckAndRecordAttempt rejects logins from a locked out IP with 429 and Retry-After
func (b *BruteForceProtection) CheckAndRecordAttempt() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ip := c.IP()

		ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
		defer cancel()

		remaining, locked, err := b.redisCache.Locked(ctx, lockKey(ip))
		if err != nil {
			logger.Warn(c.UserContext()).Err(err).Msg("brute force check unavailable")
			return c.Next()
		}
		if !locked {
			return c.Next()
		}

		retryAfter := int(math.Ceil(remaining.Seconds()))
		if retryAfter <= 0 {
			retryAfter = 60
		}
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfter))
		return response.TooManyRequests(c, fmt.Sprintf("Too many failed attempts. Try again in %d seconds", retryAfter))
	}
}

// RecordFailedAttempt counts a failed login and locks the IP once a threshold is crossed
func (b *BruteForceProtection) RecordFailedAttempt(ctx context.Context, ip, account string) error {
	attempts, err := b.redisCache.Count(ctx, attemptKey(ip), attemptWindow)
	if err != nil {
		logger.Warn(ctx).Err(err).Str("ip", ip).Msg("failed to record login attempt")
		return nil
	}

	lockout := lockoutFor(attempts)
	if lockout == 0 {
		return nil
	}

	logger.Warn(ctx).
		Str("ip", ip).
		Str("account", account).
		Int64("attempts", attempts).
		Dur("lockout", lockout).
		Msg("login locked out")
	return b.redisCache.Lock(ctx, lockKey(ip), lockout)
}

// lockoutFor returns the progressive lockout for an attempt count, 0 for none
func lockoutFor(attempts int64) time.Duration {
	switch {
	case attempts >= 25:
		return 24 * time.Hour
	case attempts >= 10:
		return time.Hour
	case attempts >= 5:
		return 2 * time.Minute
	default:
		return 0
	}
}

// RecordSuccessfulAttempt forgets the IP's failures and lifts any lock
func (b *BruteForceProtection) RecordSuccessfulAttempt(ctx context.Context, ip string) error {
	return b.redisCache.Delete(ctx, attemptKey(ip), lockKey(ip))
}

// GetAttemptCount returns the failed attempts recorded for an IP in the current window
func (b *BruteForceProtection) GetAttemptCount(ctx context.Context, ip string) (int, error) {
	n, err := b.redisCache.Counter(ctx, attemptKey(ip))
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
