package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/internal/game"
	"github.com/park285/damas-online/pkg/damasdto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

type ledgerServer struct {
	mu       sync.Mutex
	statuses []int
	calls    int
	keys     []string
	bodies   []damasdto.Outcome
}

func (s *ledgerServer) handle(ctx *fasthttp.RequestCtx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.keys = append(s.keys, string(ctx.Request.Header.Peek("Idempotency-Key")))
	var o damasdto.Outcome
	_ = json.Unmarshal(ctx.PostBody(), &o)
	s.bodies = append(s.bodies, o)

	status := fasthttp.StatusOK
	if len(s.statuses) > 0 {
		status = s.statuses[0]
		s.statuses = s.statuses[1:]
	}
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if status == fasthttp.StatusOK {
		ctx.SetBodyString(`{"status":"settled","transaction_id":"tx-1"}`)
	} else {
		ctx.SetBodyString(`{"error":"nope"}`)
	}
}

func (s *ledgerServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newLedger(t *testing.T, srv *ledgerServer, opts ...LedgerOption) *HTTPLedger {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: srv.handle}
	go func() { _ = server.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	opts = append([]LedgerOption{WithDial(func(string) (net.Conn, error) { return ln.Dial() })}, opts...)
	return NewHTTPLedger("http://ledger.internal/", opts...)
}

func resignedState(t *testing.T) *game.State {
	t.Helper()
	st := game.New()
	require.True(t, st.Apply(checkers.Move{From: checkers.Pos(5, 2), To: checkers.Pos(4, 3)}))
	require.True(t, st.Apply(checkers.Move{From: checkers.Pos(2, 5), To: checkers.Pos(3, 4)}))
	require.True(t, st.Resign(checkers.White))
	return st
}

func TestHTTPLedgerPostsOutcome(t *testing.T) {
	srv := &ledgerServer{}
	l := newLedger(t, srv, WithHeaderProvider(func() map[string]string {
		return map[string]string{"X-Service": "damas"}
	}))

	out := BuildOutcome("m1", resignedState(t), time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	rcpt, err := l.Settle(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "settled", rcpt.Status)
	assert.Equal(t, "tx-1", rcpt.TransactionID)

	require.Equal(t, 1, srv.count())
	assert.Equal(t, "damas-settle-m1", srv.keys[0])
	got := srv.bodies[0]
	assert.Equal(t, damasdto.OutcomeWin, got.Kind)
	assert.Equal(t, "black", got.Winner)
	assert.Equal(t, "resignation", got.Method)
	assert.Equal(t, 3, got.MoveNumber)
	assert.Equal(t, []string{"c3-d4", "f6-e5"}, got.Moves)
}

func TestHTTPLedgerRetriesServerErrors(t *testing.T) {
	srv := &ledgerServer{statuses: []int{503, 502}}
	l := newLedger(t, srv, WithRetry(3))

	rcpt, err := l.Settle(context.Background(), BuildOutcome("m1", resignedState(t), time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "settled", rcpt.Status)
	assert.Equal(t, 3, srv.count())
	for _, k := range srv.keys {
		assert.Equal(t, "damas-settle-m1", k)
	}
}

func TestHTTPLedgerClientErrorsAreFinal(t *testing.T) {
	srv := &ledgerServer{statuses: []int{400}}
	l := newLedger(t, srv, WithRetry(3))

	_, err := l.Settle(context.Background(), BuildOutcome("m1", resignedState(t), time.Now()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.Equal(t, 1, srv.count())
}

func TestHTTPLedgerConflictIsDuplicate(t *testing.T) {
	srv := &ledgerServer{statuses: []int{409}}
	l := newLedger(t, srv)

	rcpt, err := l.Settle(context.Background(), BuildOutcome("m1", resignedState(t), time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "duplicate", rcpt.Status)
}

type flakyLedger struct {
	fail  bool
	calls int
}

func (f *flakyLedger) Settle(context.Context, damasdto.Outcome) (*Receipt, error) {
	f.calls++
	if f.fail {
		return nil, errors.New("ledger down")
	}
	return &Receipt{Status: "settled"}, nil
}

func TestDispatcherSettlesOnce(t *testing.T) {
	srv := &ledgerServer{}
	rec := NewMemoryRecorder()
	ended := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := NewDispatcher(WithRecorder(rec), WithLedger(newLedger(t, srv)), withClock(func() time.Time { return ended }))
	st := resignedState(t)

	require.NoError(t, d.Settle(context.Background(), "m1", st))
	require.NoError(t, d.Settle(context.Background(), "m1", st))

	assert.Equal(t, 1, srv.count())
	r, ok := rec.Get("m1")
	require.True(t, ok)
	assert.Equal(t, "black", r.Winner)
	assert.Equal(t, "resignation", r.Method)
	assert.Equal(t, checkers.PiecesPerSide, r.BlackPieces+r.CapturedByWhite)
	assert.Equal(t, ended, r.EndedAt)
	assert.Len(t, rec.Recent(0), 1)
	assert.True(t, srv.bodies[0].EndedAt.Equal(ended))
}

func TestDispatcherReleasesClaimOnFailure(t *testing.T) {
	ledger := &flakyLedger{fail: true}
	d := NewDispatcher(WithLedger(ledger))
	st := resignedState(t)

	require.Error(t, d.Settle(context.Background(), "m1", st))
	ledger.fail = false
	require.NoError(t, d.Settle(context.Background(), "m1", st))
	require.NoError(t, d.Settle(context.Background(), "m1", st))
	assert.Equal(t, 2, ledger.calls)
}

func TestDispatcherRejectsRunningMatch(t *testing.T) {
	d := NewDispatcher()
	assert.Error(t, d.Settle(context.Background(), "m1", game.New()))
	assert.Error(t, d.Settle(context.Background(), "", resignedState(t)))
}

func TestRedisClaimer(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil { t.Fatalf("miniredis: %v", err) }
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	ctx := context.Background()

	c := NewRedisClaimer(rdb, time.Hour)
	if err := c.Claim(ctx, "m1"); err != nil { t.Fatalf("first claim: %v", err) }
	if err := c.Claim(ctx, "m1"); !errors.Is(err, ErrAlreadySettled) { t.Fatalf("expected ErrAlreadySettled, got %v", err) }
	if ttl := mr.TTL(SettledKey("m1")); ttl != time.Hour { t.Fatalf("unexpected ttl %v", ttl) }

	if err := c.Release(ctx, "m1"); err != nil { t.Fatalf("release: %v", err) }
	if err := c.Claim(ctx, "m1"); err != nil { t.Fatalf("claim after release: %v", err) }

	// two dispatchers sharing Redis settle once
	ledger := &flakyLedger{}
	a := NewDispatcher(WithClaimer(NewRedisClaimer(rdb, 0)), WithLedger(ledger))
	b := NewDispatcher(WithClaimer(NewRedisClaimer(rdb, 0)), WithLedger(ledger))
	st := resignedState(t)
	if err := a.Settle(ctx, "m2", st); err != nil { t.Fatalf("a: %v", err) }
	if err := b.Settle(ctx, "m2", st); err != nil { t.Fatalf("b: %v", err) }
	if ledger.calls != 1 { t.Fatalf("expected one ledger call, got %d", ledger.calls) }
}

func TestBuildRecord(t *testing.T) {
	ended := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := BuildResult("m1", resignedState(t), ended)

	assert.Contains(t, r.Record, `[Date "2026.03.01"]`)
	assert.Contains(t, r.Record, `[Termination "resignation"]`)
	assert.Contains(t, r.Record, `[Result "0-2"]`)
	assert.True(t, strings.HasSuffix(r.Record, "1. c3-d4 f6-e5 0-2"), r.Record)
}

func TestBuildOutcomeDraw(t *testing.T) {
	st := game.New()
	st.GameOver, st.Winner = true, game.Draw
	o := BuildOutcome("m1", st, time.Now())
	assert.Equal(t, damasdto.OutcomeDraw, o.Kind)
	assert.Empty(t, o.Winner)
	assert.Equal(t, []string{}, o.Moves)
	assert.Equal(t, 12, o.WhitePieces)
	assert.Zero(t, o.CapturedByWhite)
}
