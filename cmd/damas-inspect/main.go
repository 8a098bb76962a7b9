package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/park285/damas-online/internal/checkers"
	appcfg "github.com/park285/damas-online/internal/config"
	"github.com/park285/damas-online/internal/damasbuilder"
	"github.com/park285/damas-online/internal/game"
	"github.com/park285/damas-online/internal/matchsync"
	"github.com/park285/damas-online/internal/msgcat"
	"github.com/park285/damas-online/internal/presenter"
	"github.com/redis/go-redis/v9"
)

func main() {
	matchID := flag.String("match", "", "match id to inspect (required)")
	watch := flag.Duration("watch", 0, "keep printing published snapshots for this long")
	asJSON := flag.Bool("json", false, "print raw documents instead of the board")
	flag.Parse()

	id := strings.TrimSpace(*matchID)
	if id == "" {
		log.Fatal("-match is required")
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	opts, err := damasbuilder.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()
	cat, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		log.Fatalf("load messages: %v", err)
	}

	in := &inspector{
		store:  matchsync.NewRedisStore(rdb),
		f:      presenter.NewFormatter(cat),
		out:    os.Stdout,
		asJSON: *asJSON,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = in.Dump(rctx, id)
	cancel()
	if err != nil {
		log.Printf("read error: %v", err)
	}

	if *watch <= 0 {
		return
	}
	wctx, wcancel := context.WithTimeout(ctx, *watch)
	defer wcancel()
	if err := in.Watch(wctx, id, nil); err != nil {
		log.Printf("watch error: %v", err)
	}
}

type inspector struct {
	store  matchsync.Store
	f      *presenter.Formatter
	out    io.Writer
	asJSON bool
}

// Dump prints the stored document once. A missing match is reported, not failed.
func (in *inspector) Dump(ctx context.Context, matchID string) error {
	doc, err := in.store.Read(ctx, matchID)
	if errors.Is(err, matchsync.ErrNotFound) {
		fmt.Fprintln(in.out, in.f.Catalog().Text("inspect.missing", map[string]any{"MatchID": matchID}))
		return nil
	}
	if err != nil {
		return err
	}
	return in.print(doc)
}

// Watch prints every published snapshot until ctx ends. ready, when set, runs
// once the subscription is live.
func (in *inspector) Watch(ctx context.Context, matchID string, ready func()) error {
	docs := make(chan *matchsync.Document, 16)
	sub, err := in.store.Subscribe(ctx, matchID, func(doc *matchsync.Document) {
		select {
		case docs <- doc:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer sub.Close()
	if ready != nil {
		ready()
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case doc := <-docs:
			if err := in.print(doc); err != nil {
				fmt.Fprintln(in.out, err.Error())
			}
		}
	}
}

func (in *inspector) print(doc *matchsync.Document) error {
	if in.asJSON {
		raw, err := matchsync.Marshal(doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(in.out, string(raw))
		return nil
	}
	st, err := matchsync.Decode(doc)
	if err != nil {
		return err
	}
	writer := doc.Writer
	if writer == "" {
		writer = "?"
	}
	fmt.Fprintln(in.out, in.f.Catalog().Text("inspect.header", map[string]any{
		"MatchID":   doc.MatchID,
		"Writer":    writer,
		"UpdatedAt": doc.UpdatedAt.Format(time.RFC3339),
	}))
	v := game.NewSession(checkers.NoColor, st).View()
	v.MatchID = doc.MatchID
	v.IsMyTurn = false
	fmt.Fprintln(in.out, in.f.Render(v))
	return nil
}
