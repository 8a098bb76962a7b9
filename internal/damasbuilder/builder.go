package damasbuilder

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/internal/config"
	"github.com/park285/damas-online/internal/matchsync"
	"github.com/park285/damas-online/internal/msgcat"
	"github.com/park285/damas-online/internal/presenter"
	"github.com/park285/damas-online/internal/settlement"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Deps struct {
	Redis      *redis.Client
	Store      *matchsync.RedisStore
	Dispatcher *settlement.Dispatcher
	Recorder   settlement.Recorder
	Formatter  *presenter.Formatter

	logger  *zap.Logger
	closers []func() error
}

func New(ctx context.Context, cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{logger: logger}

	// Redis (required: it carries the shared match document)
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL is required for match sync")
	}
	opts, err := ParseRedisURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d.Redis = redis.NewClient(opts)
	d.closers = append(d.closers, d.Redis.Close)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.Redis.Ping(pctx).Err(); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	d.Store = matchsync.NewRedisStore(d.Redis,
		matchsync.WithStateTTL(cfg.MatchStateTTL()),
		matchsync.WithCompareAndSwap(cfg.SyncCompareAndSwap),
	)

	// Results store: Postgres when configured, otherwise kept in process
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		pg, err := settlement.NewPostgresRecorder(cfg.DatabaseURL)
		if err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		d.closers = append(d.closers, pg.Close)
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = d.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		d.Recorder = pg
	} else {
		logger.Warn("results_store_memory", zap.String("reason", "DATABASE_URL not set"))
		d.Recorder = settlement.NewMemoryRecorder()
	}

	dopts := []settlement.DispatcherOption{
		settlement.WithClaimer(settlement.NewRedisClaimer(d.Redis, cfg.SettleClaimTTL())),
		settlement.WithRecorder(d.Recorder),
	}
	if base := strings.TrimSpace(cfg.LedgerURL); base != "" {
		lopts := []settlement.LedgerOption{
			settlement.WithTimeout(cfg.LedgerTimeout()),
			settlement.WithRetry(cfg.LedgerRetry),
		}
		if tok := strings.TrimSpace(cfg.LedgerToken); tok != "" {
			lopts = append(lopts, settlement.WithHeaderProvider(func() map[string]string {
				return map[string]string{"Authorization": "Bearer " + tok}
			}))
		}
		dopts = append(dopts, settlement.WithLedger(settlement.NewHTTPLedger(base, lopts...)))
	}
	d.Dispatcher = settlement.NewDispatcher(dopts...)

	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Formatter = presenter.NewFormatter(cat)

	return d, nil
}

// NewClient builds a sync client for one match, settling through the shared dispatcher.
func (d *Deps) NewClient(matchID string, player checkers.Color, opts ...matchsync.Option) *matchsync.Client {
	base := []matchsync.Option{
		matchsync.WithLogger(d.logger),
		matchsync.WithSettler(d.Dispatcher),
	}
	return matchsync.NewClient(d.Store, matchID, player, append(base, opts...)...)
}

// Close releases connections in reverse order of creation.
func (d *Deps) Close() error {
	if d == nil {
		return nil
	}
	var first error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	d.closers = nil
	return first
}

// ParseRedisURL accepts redis:// and rediss:// URLs with an optional /db path.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing host")
	}
	port := u.Port()
	if port == "" {
		port = "6379"
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid db %q", p)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Username: u.User.Username(),
		Password: pass,
		DB:       db,
	}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	return opts, nil
}
