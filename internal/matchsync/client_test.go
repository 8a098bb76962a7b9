package matchsync

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/internal/game"
	"github.com/park285/damas-online/pkg/damasdto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSettler struct {
	mu      sync.Mutex
	winners []game.Winner
}

func (r *recordingSettler) Settle(_ context.Context, _ string, st *game.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.winners = append(r.winners, st.Winner)
	return nil
}

func (r *recordingSettler) calls() []game.Winner {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]game.Winner(nil), r.winners...)
}

// flakySettler fails the first `failures` calls, then records like recordingSettler.
type flakySettler struct {
	recordingSettler
	failures int
	attempts int
}

func (f *flakySettler) Settle(ctx context.Context, id string, st *game.State) error {
	f.mu.Lock()
	f.attempts++
	fail := f.attempts <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("ledger unavailable")
	}
	return f.recordingSettler.Settle(ctx, id, st)
}

func (f *flakySettler) tries() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

// deafStore never delivers snapshots, simulating a subscriber that missed updates.
type deafStore struct{ *MemoryStore }

type nopSubscription struct{}

func (nopSubscription) Close() error { return nil }

func (deafStore) Subscribe(context.Context, string, Handler) (Subscription, error) {
	return nopSubscription{}, nil
}

type failingStore struct{ *MemoryStore }

func (failingStore) Write(context.Context, *Document) error { return errors.New("store offline") }

func startClient(t *testing.T, store Store, player checkers.Color, opts ...Option) *Client {
	t.Helper()
	c := NewClient(store, "m1", player, opts...)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func play(t *testing.T, c *Client, from, to checkers.Position) {
	t.Helper()
	require.True(t, c.SelectSquare(from.Row, from.Col), "select %s", from)
	_, ok := c.ChooseDestination(context.Background(), to.Row, to.Col)
	require.True(t, ok, "move %s-%s", from, to)
}

func TestClientsConverge(t *testing.T) {
	store := NewMemoryStore(true)
	white := startClient(t, store, checkers.White)
	black := startClient(t, store, checkers.Black)

	assert.True(t, white.View().IsMyTurn)
	assert.False(t, black.View().IsMyTurn)

	play(t, white, checkers.Pos(5, 2), checkers.Pos(4, 3))
	assert.Equal(t, 1, black.View().MoveNumber)
	assert.True(t, black.View().IsMyTurn)
	assert.Equal(t, "white", black.View().Board[4][3])

	play(t, black, checkers.Pos(2, 5), checkers.Pos(3, 4))
	wv := white.View()
	assert.Equal(t, 2, wv.MoveNumber)
	assert.True(t, wv.MustCapture)

	play(t, white, checkers.Pos(4, 3), checkers.Pos(2, 5))
	bv := black.View()
	assert.Equal(t, 3, bv.MoveNumber)
	assert.Equal(t, "", bv.Board[3][4])
	assert.Equal(t, "white", bv.Board[2][5])
	assert.Equal(t, 11, bv.BlackPieces)
	assert.Equal(t, white.State().Board, black.State().Board)

	doc, err := store.Read(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 3, doc.MoveNumber)
	assert.Equal(t, white.ID(), doc.Writer)
}

func TestClientJoinsExistingMatch(t *testing.T) {
	store := NewMemoryStore(true)
	white := startClient(t, store, checkers.White)
	play(t, white, checkers.Pos(5, 2), checkers.Pos(4, 3))

	late := startClient(t, store, checkers.Black)
	assert.Equal(t, 1, late.View().MoveNumber)
	assert.True(t, late.View().IsMyTurn)
}

func TestClientIgnoresStaleSnapshots(t *testing.T) {
	store := NewMemoryStore(true)
	white := startClient(t, store, checkers.White)
	play(t, white, checkers.Pos(5, 2), checkers.Pos(4, 3))

	white.handleSnapshot(Encode("m1", game.New()))
	assert.Equal(t, 1, white.View().MoveNumber)
	assert.Equal(t, "white", white.View().Board[4][3])

	// same move number is discarded too
	same := game.New()
	same.MoveNumber = 1
	white.handleSnapshot(Encode("m1", same))
	assert.Equal(t, "white", white.View().Board[4][3])

	// other matches are not ours
	newer := game.New()
	newer.MoveNumber = 9
	white.handleSnapshot(Encode("other", newer))
	assert.Equal(t, 1, white.View().MoveNumber)
}

func TestClientAdoptsTerminalSnapshot(t *testing.T) {
	settler := &recordingSettler{}
	var views []damasdto.View
	store := NewMemoryStore(true)
	black := startClient(t, store, checkers.Black,
		WithSettler(settler),
		WithOnChange(func(v damasdto.View) { views = append(views, v) }),
	)

	local := game.New()
	require.True(t, local.Apply(checkers.Move{From: checkers.Pos(5, 2), To: checkers.Pos(4, 3)}))
	require.True(t, local.Apply(checkers.Move{From: checkers.Pos(2, 5), To: checkers.Pos(3, 4)}))
	black.handleSnapshot(Encode("m1", local))
	require.Equal(t, 2, black.View().MoveNumber)

	// a resignation stamped with a lower move number still ends the game
	resigned := game.New()
	require.True(t, resigned.Resign(checkers.White))
	black.handleSnapshot(Encode("m1", resigned))

	v := black.View()
	assert.True(t, v.GameOver)
	assert.Equal(t, "black", v.Winner)
	assert.Equal(t, 1, v.MoveNumber)
	assert.Equal(t, []game.Winner{game.WinnerBlack}, settler.calls())

	// a finished game is never reopened
	later := game.New()
	later.MoveNumber = 10
	black.handleSnapshot(Encode("m1", later))
	assert.True(t, black.View().GameOver)

	black.handleSnapshot(Encode("m1", resigned))
	assert.Len(t, settler.calls(), 1)
	require.NotEmpty(t, views)
	assert.True(t, views[len(views)-1].GameOver)
}

func TestResignationScenario(t *testing.T) {
	settler := &recordingSettler{}
	store := NewMemoryStore(true)
	white := startClient(t, store, checkers.White, WithSettler(settler))
	black := startClient(t, store, checkers.Black)

	play(t, white, checkers.Pos(5, 2), checkers.Pos(4, 3))
	require.True(t, white.Resign(context.Background()))

	for _, c := range []*Client{white, black} {
		v := c.View()
		assert.True(t, v.GameOver)
		assert.Equal(t, "black", v.Winner)
		assert.Equal(t, 2, v.MoveNumber)
	}
	assert.False(t, black.SelectSquare(2, 1))
	_, ok := black.ChooseDestination(context.Background(), 3, 0)
	assert.False(t, ok)
	assert.False(t, white.Resign(context.Background()))
	assert.Equal(t, []game.Winner{game.WinnerBlack}, settler.calls())
}

func TestFailedSettlementIsRetried(t *testing.T) {
	ctx := context.Background()
	settler := &flakySettler{failures: 1}
	store := deafStore{NewMemoryStore(true)}
	white := startClient(t, store, checkers.White, WithSettler(settler))

	require.True(t, white.Resign(ctx))
	assert.Equal(t, 1, settler.tries())
	assert.Empty(t, settler.calls())

	// the same terminal snapshot arriving again settles the match
	doc, err := store.Read(ctx, "m1")
	require.NoError(t, err)
	white.handleSnapshot(doc)
	assert.Equal(t, 2, settler.tries())
	assert.Equal(t, []game.Winner{game.WinnerBlack}, settler.calls())

	// once settled, neither resync nor snapshots call the settler again
	white.resync(ctx)
	white.handleSnapshot(doc)
	assert.Equal(t, 2, settler.tries())
	assert.Len(t, settler.calls(), 1)
}

func TestFailedSettlementRetriedOnResync(t *testing.T) {
	ctx := context.Background()
	settler := &flakySettler{failures: 1}
	store := deafStore{NewMemoryStore(true)}
	white := startClient(t, store, checkers.White, WithSettler(settler))

	require.True(t, white.Resign(ctx))
	white.resync(ctx)
	assert.Equal(t, 2, settler.tries())
	assert.Equal(t, []game.Winner{game.WinnerBlack}, settler.calls())
}

func TestStaleWriteTriggersResync(t *testing.T) {
	settler := &recordingSettler{}
	mem := NewMemoryStore(true)
	white := startClient(t, deafStore{mem}, checkers.White, WithSettler(settler))

	// black resigns through another writer; white never hears about it
	remote := game.New()
	require.True(t, remote.Resign(checkers.Black))
	require.NoError(t, mem.Write(context.Background(), Encode("m1", remote)))

	play(t, white, checkers.Pos(5, 2), checkers.Pos(4, 3))

	v := white.View()
	assert.True(t, v.GameOver)
	assert.Equal(t, "white", v.Winner)
	assert.Equal(t, "resignation", v.Termination)
	assert.Equal(t, "", v.Board[4][3])
	assert.Equal(t, []game.Winner{game.WinnerWhite}, settler.calls())

	doc, err := mem.Read(context.Background(), "m1")
	require.NoError(t, err)
	assert.True(t, doc.GameOver)
}

func TestMemoryStoreLastWriterWinsWithoutGuard(t *testing.T) {
	mem := NewMemoryStore(false)
	ctx := context.Background()
	first := game.New()
	first.MoveNumber = 4
	require.NoError(t, mem.Write(ctx, Encode("m1", first)))
	require.NoError(t, mem.Write(ctx, Encode("m1", game.New())))

	doc, err := mem.Read(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.MoveNumber)

	guarded := NewMemoryStore(true)
	require.NoError(t, guarded.Write(ctx, Encode("m1", first)))
	assert.ErrorIs(t, guarded.Write(ctx, Encode("m1", game.New())), ErrStaleWrite)
}

func TestPersistenceFailureKeepsLocalState(t *testing.T) {
	mem := NewMemoryStore(true)
	white := startClient(t, failingStore{mem}, checkers.White)

	play(t, white, checkers.Pos(5, 2), checkers.Pos(4, 3))
	assert.Equal(t, 1, white.View().MoveNumber)
	assert.Equal(t, "white", white.View().Board[4][3])

	doc, err := mem.Read(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.MoveNumber)
}

func TestSubscriptionClose(t *testing.T) {
	mem := NewMemoryStore(true)
	var got int
	sub, err := mem.Subscribe(context.Background(), "m1", func(*Document) { got++ })
	require.NoError(t, err)

	require.NoError(t, mem.Write(context.Background(), Encode("m1", game.New())))
	require.NoError(t, sub.Close())
	next := game.New()
	next.MoveNumber = 1
	require.NoError(t, mem.Write(context.Background(), Encode("m1", next)))
	assert.Equal(t, 1, got)
}

func TestShouldAdopt(t *testing.T) {
	running := func(n int) *game.State { s := game.New(); s.MoveNumber = n; return s }
	over := func(n int) *game.State {
		s := game.New()
		s.MoveNumber = n
		s.GameOver, s.Winner, s.Termination = true, game.WinnerWhite, game.Resignation
		return s
	}
	cases := []struct {
		name          string
		local, remote *game.State
		want          bool
	}{
		{"newer", running(1), running(2), true},
		{"older", running(3), running(2), false},
		{"equal", running(2), running(2), false},
		{"terminal beats running", running(5), over(3), true},
		{"running never reopens terminal", over(3), running(9), false},
		{"newer terminal", over(3), over(4), true},
		{"older terminal", over(4), over(3), false},
		{"nil remote", running(0), nil, false},
		{"nil local", nil, running(0), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ShouldAdopt(tc.local, tc.remote))
		})
	}
}
