package settlement

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrAlreadySettled = errors.New("match already settled")

const defaultClaimTTL = 7 * 24 * time.Hour

// Claimer grants the right to settle a match to exactly one caller.
type Claimer interface {
	// Claim returns ErrAlreadySettled when someone else holds the claim.
	Claim(ctx context.Context, matchID string) error
	// Release drops a claim whose settlement failed so it can be retried.
	Release(ctx context.Context, matchID string) error
}

type RedisClaimer struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisClaimer(rdb *redis.Client, ttl time.Duration) *RedisClaimer {
	if ttl <= 0 {
		ttl = defaultClaimTTL
	}
	return &RedisClaimer{rdb: rdb, ttl: ttl}
}

func SettledKey(matchID string) string { return "damas:match:" + strings.TrimSpace(matchID) + ":settled" }

func (c *RedisClaimer) Claim(ctx context.Context, matchID string) error {
	ok, err := c.rdb.SetNX(ctx, SettledKey(matchID), time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrAlreadySettled
	}
	return nil
}

func (c *RedisClaimer) Release(ctx context.Context, matchID string) error {
	return c.rdb.Del(ctx, SettledKey(matchID)).Err()
}

// MemoryClaimer is the in-process variant for tests and hot-seat play.
type MemoryClaimer struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func NewMemoryClaimer() *MemoryClaimer {
	return &MemoryClaimer{claimed: make(map[string]bool)}
}

func (c *MemoryClaimer) Claim(_ context.Context, matchID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := strings.TrimSpace(matchID)
	if c.claimed[id] {
		return ErrAlreadySettled
	}
	c.claimed[id] = true
	return nil
}

func (c *MemoryClaimer) Release(_ context.Context, matchID string) error {
	c.mu.Lock()
	delete(c.claimed, strings.TrimSpace(matchID))
	c.mu.Unlock()
	return nil
}
