package cooldown

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures.
var ErrUnavailable = errors.New("cooldown cache unavailable")

// Gate rate-limits notification dispatch per key.
type Gate struct {
	redis  redis.UniversalClient
	prefix string
}

// New builds a gate with the given key prefix.
func New(client redis.UniversalClient, prefix string) *Gate {
	if prefix == "" {
		prefix = "ghc"
	}
	return &Gate{redis: client, prefix: prefix}
}

func (g *Gate) key(action, subject string) string {
	return g.prefix + ":" + action + ":" + subject
}

// Acquire attempts to open the window for (action, subject). It returns true
// when the caller won the window and may dispatch; false when a cooldown is
// already active. The set-if-absent is atomic at the cache level.
func (g *Gate) Acquire(ctx context.Context, action, subject string, window time.Duration) (bool, error) {
	ok, err := g.redis.SetNX(ctx, g.key(action, subject), "1", window).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Remaining reports how long the active cooldown for (action, subject) still
// has to run; zero when no cooldown is active.
func (g *Gate) Remaining(ctx context.Context, action, subject string) (time.Duration, error) {
	ttl, err := g.redis.TTL(ctx, g.key(action, subject)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if ttl < 0 {
		// -1 no expiry, -2 no key; neither is an active cooldown.
		return 0, nil
	}
	return ttl, nil
}

// Clear removes an active cooldown, mainly for tests and admin overrides.
func (g *Gate) Clear(ctx context.Context, action, subject string) error {
	if err := g.redis.Del(ctx, g.key(action, subject)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
