package matchsync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/internal/game"
	"github.com/park285/damas-online/internal/obslog"
	"github.com/park285/damas-online/pkg/damasdto"
	"go.uber.org/zap"
)

const settleTimeout = 15 * time.Second

// Settler receives a finished match. A client calls it until one call succeeds.
type Settler interface {
	Settle(ctx context.Context, matchID string, st *game.State) error
}

// Client plays one side of a match against a shared Store. Local moves are
// applied optimistically and written as full snapshots; remote snapshots are
// adopted by ShouldAdopt.
type Client struct {
	store   Store
	matchID string
	id      string
	logger  *zap.Logger

	onChange func(damasdto.View)
	settler  Settler

	mu      sync.Mutex
	session *game.Session
	sub     Subscription

	// settleMu serializes settle attempts; settled is set only after success
	settleMu sync.Mutex
	settled  bool
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnChange registers a callback invoked with the fresh view after every
// local action or adopted snapshot. It runs outside the client lock.
func WithOnChange(fn func(damasdto.View)) Option {
	return func(c *Client) { c.onChange = fn }
}

func WithSettler(s Settler) Option {
	return func(c *Client) { c.settler = s }
}

// WithClientID overrides the random writer id stamped on documents.
func WithClientID(id string) Option {
	return func(c *Client) {
		if strings.TrimSpace(id) != "" {
			c.id = strings.TrimSpace(id)
		}
	}
}

// NewClient binds a client to matchID. player is the local side; checkers.NoColor
// lets the client move for whichever side is to move.
func NewClient(store Store, matchID string, player checkers.Color, opts ...Option) *Client {
	c := &Client{
		store:   store,
		matchID: strings.TrimSpace(matchID),
		id:      uuid.NewString(),
		logger:  obslog.L(),
		session: game.NewSession(player, nil),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With(
		zap.String("match_id", c.matchID),
		zap.String("client_id", c.id),
		zap.String("player", player.String()),
	)
	return c
}

func (c *Client) MatchID() string { return c.matchID }
func (c *Client) ID() string      { return c.id }

// Start loads the match, seeding a fresh game when none exists, and subscribes
// to remote snapshots.
func (c *Client) Start(ctx context.Context) error {
	if c.matchID == "" {
		return fmt.Errorf("match id required")
	}
	seeded, err := c.store.Seed(ctx, c.document(game.New()))
	if err != nil {
		return fmt.Errorf("seed match: %w", err)
	}
	st, err := Decode(seeded)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.session.Adopt(st)
	c.mu.Unlock()

	sub, err := c.store.Subscribe(ctx, c.matchID, c.handleSnapshot)
	if err != nil {
		return fmt.Errorf("subscribe match: %w", err)
	}
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	// a write may have landed between the seed read and the subscription
	if doc, err := c.store.Read(ctx, c.matchID); err == nil {
		c.handleSnapshot(doc)
	}
	c.logger.Info("match_join", zap.Int("move_number", st.MoveNumber), zap.Bool("game_over", st.GameOver))
	c.notify(c.View())
	if st.GameOver {
		c.settle(ctx, st)
	}
	return nil
}

// Close stops snapshot delivery.
func (c *Client) Close() error {
	c.mu.Lock()
	sub := c.sub
	c.sub = nil
	c.mu.Unlock()
	if sub == nil {
		return nil
	}
	return sub.Close()
}

// View returns the current projection of the match.
func (c *Client) View() damasdto.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Client) viewLocked() damasdto.View {
	v := c.session.View()
	v.MatchID = c.matchID
	return v
}

// State returns a copy of the authoritative local state.
func (c *Client) State() *game.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State()
}

// SelectSquare is local only and never touches the store.
func (c *Client) SelectSquare(row, col int) bool {
	c.mu.Lock()
	ok := c.session.SelectSquare(row, col)
	v := c.viewLocked()
	c.mu.Unlock()
	if ok {
		c.notify(v)
	}
	return ok
}

// Options lists the selected piece's legal moves landing on (row, col).
func (c *Client) Options(row, col int) []checkers.Move {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Options(row, col)
}

// ChooseDestination plays the selected piece to (row, col) and writes the
// resulting snapshot. A failed write is logged and the local state kept.
func (c *Client) ChooseDestination(ctx context.Context, row, col int) (checkers.Move, bool) {
	return c.ChooseOption(ctx, row, col, 0)
}

// ChooseOption is ChooseDestination for the n-th entry of Options(row, col).
func (c *Client) ChooseOption(ctx context.Context, row, col, n int) (checkers.Move, bool) {
	c.mu.Lock()
	m, ok := c.session.ChooseOption(row, col, n)
	if !ok {
		c.mu.Unlock()
		return checkers.Move{}, false
	}
	st := c.session.State()
	v := c.viewLocked()
	c.mu.Unlock()

	c.logger.Info("match_move",
		zap.String("move", m.String()),
		zap.Int("captured", len(m.Captured)),
		zap.Int("move_number", st.MoveNumber),
		zap.Bool("game_over", st.GameOver),
	)
	c.notify(v)
	c.persist(ctx, st)
	return m, true
}

// Resign concedes the match for the local player.
func (c *Client) Resign(ctx context.Context) bool {
	c.mu.Lock()
	if !c.session.Resign() {
		c.mu.Unlock()
		return false
	}
	st := c.session.State()
	v := c.viewLocked()
	c.mu.Unlock()

	c.logger.Info("match_resign", zap.Int("move_number", st.MoveNumber), zap.String("winner", string(st.Winner)))
	c.notify(v)
	c.persist(ctx, st)
	return true
}

func (c *Client) persist(ctx context.Context, st *game.State) {
	err := c.store.Write(ctx, c.document(st))
	switch {
	case err == nil:
		if st.GameOver {
			c.settle(ctx, st)
		}
	case errors.Is(err, ErrStaleWrite):
		c.logger.Warn("match_write_stale", zap.Int("move_number", st.MoveNumber), zap.Error(err))
		c.resync(ctx)
	default:
		c.logger.Error("match_persist_error", zap.Int("move_number", st.MoveNumber), zap.Error(err))
		if st.GameOver {
			c.settle(ctx, st)
		}
	}
}

// resync replaces the local state with the stored document unconditionally.
func (c *Client) resync(ctx context.Context) {
	doc, err := c.store.Read(ctx, c.matchID)
	if err != nil {
		c.logger.Error("match_resync_error", zap.Error(err))
		return
	}
	st, err := Decode(doc)
	if err != nil {
		c.logger.Error("match_resync_error", zap.Error(err))
		return
	}
	c.mu.Lock()
	c.session.Adopt(st)
	v := c.viewLocked()
	c.mu.Unlock()

	c.logger.Info("snapshot_resync", zap.Int("move_number", st.MoveNumber), zap.String("writer", doc.Writer))
	c.notify(v)
	if st.GameOver {
		c.settle(ctx, st)
	}
}

func (c *Client) handleSnapshot(doc *Document) {
	if doc == nil || strings.TrimSpace(doc.MatchID) != c.matchID {
		return
	}
	remote, err := Decode(doc)
	if err != nil {
		c.logger.Warn("snapshot_drop", zap.String("writer", doc.Writer), zap.Error(err))
		return
	}

	c.mu.Lock()
	local := c.session.State()
	if !ShouldAdopt(local, remote) {
		c.mu.Unlock()
		c.logger.Debug("snapshot_ignore",
			zap.String("writer", doc.Writer),
			zap.Int("local_move", local.MoveNumber),
			zap.Int("remote_move", remote.MoveNumber),
		)
		// a repeated terminal snapshot retries a settlement that failed earlier
		if local.GameOver && remote.GameOver {
			ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
			defer cancel()
			c.settle(ctx, local)
		}
		return
	}
	c.session.Adopt(remote)
	v := c.viewLocked()
	c.mu.Unlock()

	c.logger.Info("snapshot_adopt",
		zap.String("writer", doc.Writer),
		zap.Int("local_move", local.MoveNumber),
		zap.Int("remote_move", remote.MoveNumber),
		zap.Bool("game_over", remote.GameOver),
	)
	c.notify(v)
	if remote.GameOver {
		ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
		defer cancel()
		c.settle(ctx, remote)
	}
}

func (c *Client) settle(ctx context.Context, st *game.State) {
	if c.settler == nil {
		return
	}
	c.settleMu.Lock()
	defer c.settleMu.Unlock()
	if c.settled {
		return
	}
	if err := c.settler.Settle(ctx, c.matchID, st); err != nil {
		c.logger.Error("match_settle_error", zap.String("winner", string(st.Winner)), zap.Error(err))
		return
	}
	c.settled = true
	c.logger.Info("match_settle",
		zap.String("winner", string(st.Winner)),
		zap.String("termination", string(st.Termination)),
		zap.Int("move_number", st.MoveNumber),
	)
}

func (c *Client) document(st *game.State) *Document {
	doc := Encode(c.matchID, st)
	doc.Writer = c.id
	doc.UpdatedAt = time.Now().UTC()
	return doc
}

func (c *Client) notify(v damasdto.View) {
	if c.onChange != nil {
		c.onChange(v)
	}
}
