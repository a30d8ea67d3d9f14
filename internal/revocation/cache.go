package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps Redis failures so callers can classify backend
// outages separately from a plain "not a member" answer.
var ErrUnavailable = errors.New("revocation cache unavailable")

// Cache is the per-session valid-token-id set.
type Cache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New builds a cache. The TTL should be the access-token TTL plus leeway: an
// entry only needs to outlive the newest token registered under it, and the
// expiry is refreshed on every Add.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	if prefix == "" {
		prefix = "ghv"
	}
	return &Cache{redis: client, prefix: prefix, ttl: ttl}
}

func (c *Cache) key(userID, sessionID string) string {
	return c.prefix + ":" + userID + ":" + sessionID
}

// Add registers tokenID as valid for the (user, session) pair and refreshes
// the entry's expiry.
func (c *Cache) Add(ctx context.Context, userID, sessionID, tokenID string) error {
	key := c.key(userID, sessionID)
	pipe := c.redis.TxPipeline()
	pipe.SAdd(ctx, key, tokenID)
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Contains reports whether tokenID is still valid for the pair.
func (c *Cache) Contains(ctx context.Context, userID, sessionID, tokenID string) (bool, error) {
	ok, err := c.redis.SIsMember(ctx, c.key(userID, sessionID), tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ok, nil
}

// Remove drops a single token id, leaving the session's other tokens valid.
func (c *Cache) Remove(ctx context.Context, userID, sessionID, tokenID string) error {
	if err := c.redis.SRem(ctx, c.key(userID, sessionID), tokenID).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// InvalidateSession revokes every token of one session.
func (c *Cache) InvalidateSession(ctx context.Context, userID, sessionID string) error {
	if err := c.redis.Del(ctx, c.key(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// InvalidateUser revokes every token across the given sessions. The caller
// supplies the session ids from the user document; the cache holds no
// per-user index of its own.
func (c *Cache) InvalidateUser(ctx context.Context, userID string, sessionIDs []string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	keys := make([]string, len(sessionIDs))
	for i, sid := range sessionIDs {
		keys[i] = c.key(userID, sid)
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
