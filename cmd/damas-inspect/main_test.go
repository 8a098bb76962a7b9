package main

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/internal/game"
	"github.com/park285/damas-online/internal/matchsync"
	"github.com/park285/damas-online/internal/msgcat"
	"github.com/park285/damas-online/internal/presenter"
)

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func newInspector(t *testing.T, store matchsync.Store, asJSON bool) (*inspector, *lockedBuffer) {
	t.Helper()
	cat, err := msgcat.New("")
	if err != nil { t.Fatalf("msgcat.New: %v", err) }
	out := &lockedBuffer{}
	return &inspector{store: store, f: presenter.NewFormatter(cat), out: out, asJSON: asJSON}, out
}

func TestDumpMissingMatch(t *testing.T) {
	in, out := newInspector(t, matchsync.NewMemoryStore(true), false)
	if err := in.Dump(context.Background(), "nope"); err != nil { t.Fatalf("Dump: %v", err) }
	if !strings.Contains(out.String(), "match nope has no document") { t.Fatalf("unexpected output %q", out.String()) }
}

func TestDumpBoardAndJSON(t *testing.T) {
	ctx := context.Background()
	store := matchsync.NewMemoryStore(true)
	doc := matchsync.Encode("m-ins", game.New())
	doc.Writer = "tester"
	doc.UpdatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if _, err := store.Seed(ctx, doc); err != nil { t.Fatalf("Seed: %v", err) }

	in, out := newInspector(t, store, false)
	if err := in.Dump(ctx, "m-ins"); err != nil { t.Fatalf("Dump: %v", err) }
	text := out.String()
	for _, want := range []string{
		"match m-ins written by tester at 2026-01-02T03:04:05Z",
		"Move 0: white to play.",
		"8 |    b     b     b     b | 8",
	} {
		if !strings.Contains(text, want) { t.Fatalf("missing %q in:\n%s", want, text) }
	}

	jin, jout := newInspector(t, store, true)
	if err := jin.Dump(ctx, "m-ins"); err != nil { t.Fatalf("Dump json: %v", err) }
	if !strings.Contains(jout.String(), `"match_id":"m-ins"`) { t.Fatalf("unexpected json %q", jout.String()) }
}

func TestWatchPrintsPublishedSnapshots(t *testing.T) {
	store := matchsync.NewMemoryStore(true)
	in, out := newInspector(t, store, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- in.Watch(ctx, "m-watch", func() { close(ready) }) }()
	<-ready

	c := matchsync.NewClient(store, "m-watch", checkers.NoColor, matchsync.WithClientID("hot-seat"))
	if err := c.Start(ctx); err != nil { t.Fatalf("Start: %v", err) }
	defer c.Close()
	if !c.SelectSquare(5, 2) { t.Fatalf("select rejected") }
	if _, ok := c.ChooseDestination(ctx, 4, 3); !ok { t.Fatalf("move rejected") }

	deadline := time.Now().Add(3 * time.Second)
	for !strings.Contains(out.String(), "Last move: c3-d4") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil { t.Fatalf("Watch: %v", err) }
	text := out.String()
	if !strings.Contains(text, "match m-watch written by hot-seat") { t.Fatalf("no snapshot printed:\n%s", text) }
	if !strings.Contains(text, "Move 1: black to play.") { t.Fatalf("watcher view should not claim a turn:\n%s", text) }
}
