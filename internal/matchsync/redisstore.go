package matchsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/park285/damas-online/internal/obslog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultStateTTL = 24 * time.Hour
	casAttempts     = 3
)

// RedisStore keeps one JSON document per match and publishes every write on
// the match's updates channel.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	cas bool
}

type RedisOption func(*RedisStore)

// WithStateTTL sets the expiry refreshed on every write. Non-positive values keep the default.
func WithStateTTL(d time.Duration) RedisOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithCompareAndSwap toggles the WATCH guard on Write.
func WithCompareAndSwap(on bool) RedisOption {
	return func(s *RedisStore) { s.cas = on }
}

func NewRedisStore(rdb *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{rdb: rdb, ttl: defaultStateTTL, cas: true}
	for _, o := range opts {
		o(s)
	}
	return s
}

func StateKey(matchID string) string   { return "damas:match:" + strings.TrimSpace(matchID) + ":state" }
func UpdatesKey(matchID string) string { return "damas:match:" + strings.TrimSpace(matchID) + ":updates" }

func (s *RedisStore) Read(ctx context.Context, matchID string) (*Document, error) {
	raw, err := s.rdb.Get(ctx, StateKey(matchID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw)
}

func (s *RedisStore) Write(ctx context.Context, doc *Document) error {
	raw, err := Marshal(doc)
	if err != nil {
		return err
	}
	key := StateKey(doc.MatchID)
	if !s.cas {
		pipe := s.rdb.TxPipeline()
		pipe.Set(ctx, key, raw, s.ttl)
		pipe.Publish(ctx, UpdatesKey(doc.MatchID), raw)
		_, err := pipe.Exec(ctx)
		return err
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
			cur, err := tx.Get(ctx, key).Bytes()
			if err != nil && err != redis.Nil {
				return err
			}
			if err == nil {
				stored, derr := Unmarshal(cur)
				if derr == nil && !supersedes(stored, doc) {
					return fmt.Errorf("%w: stored move %d, write move %d", ErrStaleWrite, stored.MoveNumber, doc.MoveNumber)
				}
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, raw, s.ttl)
			pipe.Publish(ctx, UpdatesKey(doc.MatchID), raw)
			_, err = pipe.Exec(ctx)
			return err
		}, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		obslog.L().Debug("match_write_retry",
			zap.String("match_id", doc.MatchID),
			zap.Int("move_number", doc.MoveNumber),
			zap.Int("attempt", attempt+1),
		)
	}
	return fmt.Errorf("%w: concurrent update on %s", ErrStaleWrite, doc.MatchID)
}

func (s *RedisStore) Seed(ctx context.Context, doc *Document) (*Document, error) {
	raw, err := Marshal(doc)
	if err != nil {
		return nil, err
	}
	created, err := s.rdb.SetNX(ctx, StateKey(doc.MatchID), raw, s.ttl).Result()
	if err != nil {
		return nil, err
	}
	if created {
		obslog.L().Info("match_seed", zap.String("match_id", doc.MatchID))
		return Unmarshal(raw)
	}
	return s.Read(ctx, doc.MatchID)
}

// Subscribe returns once Redis has confirmed the subscription, so no write
// issued afterwards can be missed. Handlers run on a dedicated goroutine.
func (s *RedisStore) Subscribe(ctx context.Context, matchID string, h Handler) (Subscription, error) {
	ps := s.rdb.Subscribe(ctx, UpdatesKey(matchID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", matchID, err)
	}
	sub := &redisSubscription{ps: ps, done: make(chan struct{})}
	go sub.run(strings.TrimSpace(matchID), h)
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

func (r *redisSubscription) run(matchID string, h Handler) {
	defer close(r.done)
	for msg := range r.ps.Channel() {
		doc, err := Unmarshal([]byte(msg.Payload))
		if err != nil {
			obslog.L().Warn("snapshot_drop",
				zap.String("match_id", matchID),
				zap.Error(err),
			)
			continue
		}
		h(doc)
	}
}

func (r *redisSubscription) Close() error {
	var err error
	r.once.Do(func() {
		err = r.ps.Close()
		<-r.done
	})
	return err
}
