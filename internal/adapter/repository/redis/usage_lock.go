package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix  = "usage_lock:"
	defaultLockTTL = 15 * time.Second
)

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLockTimeout = errors.New("timed out waiting for usage lock")

// UsageLock serializes the usage fallback per tenant across instances using
// SET NX with an expiry.
type UsageLock struct {
	client    redis.UniversalClient
	logger    *slog.Logger
	ttl       time.Duration
	retry     time.Duration
	maxWait   time.Duration
	newToken  func() string
	keyPrefix string
}

// NewUsageLock creates a new Redis-backed UsageLock. ttl bounds how long a
// crashed holder can block the tenant; a non-positive ttl falls back to 15s
// since SET NX without expiry would never release.
func NewUsageLock(client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *UsageLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &UsageLock{
		client:    client,
		logger:    logger.With("component", "redis_usage_lock"),
		ttl:       ttl,
		retry:     25 * time.Millisecond,
		maxWait:   ttl,
		newToken:  uuid.NewString,
		keyPrefix: lockKeyPrefix,
	}
}

// Acquire blocks until the lock for username is held, ctx is done, or the
// wait exceeds the lock ttl.
func (l *UsageLock) Acquire(ctx context.Context, username string) (func(), error) {
	key := l.keyPrefix + username
	token := l.newToken()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire usage lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	return func() {
		// Release even if the caller's context is already cancelled.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release usage lock", "error", err, "username", username)
		}
	}, nil
}

// Ping reports whether Redis is reachable.
func (l *UsageLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
