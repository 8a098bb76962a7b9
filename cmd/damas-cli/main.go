package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/park285/damas-online/internal/checkers"
	appcfg "github.com/park285/damas-online/internal/config"
	"github.com/park285/damas-online/internal/damasbuilder"
	"github.com/park285/damas-online/internal/matchsync"
	"github.com/park285/damas-online/internal/obslog"
	"github.com/park285/damas-online/pkg/damasdto"
	"go.uber.org/zap"
)

func main() {
	matchID := flag.String("match", "", "match id to create or join (random when empty)")
	color := flag.String("color", "white", "side to play: white, black or hot (both sides, one terminal)")
	flag.Parse()

	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	player, err := parsePlayer(*color)
	if err != nil {
		log.Fatalf("%v", err)
	}
	id := strings.TrimSpace(*matchID)
	if id == "" {
		id = uuid.NewString()
	}

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := damasbuilder.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("damas init error: %v", err)
	}
	defer deps.Close()

	var r *repl
	client := deps.NewClient(id, player, matchsync.WithOnChange(func(v damasdto.View) {
		if r != nil {
			r.Show(v)
		}
	}))
	r = newREPL(client, deps.Formatter, os.Stdout)

	if err := client.Start(ctx); err != nil {
		log.Fatalf("join match error: %v", err)
	}
	defer client.Close()
	logger.Info("cli_start", zap.String("match_id", id), zap.String("player", player.String()), zap.String("client_id", client.ID()))

	r.println(r.text("cli.welcome", map[string]any{"MatchID": id, "Player": playerLabel(player)}))

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || r.Handle(ctx, line) {
				return
			}
		}
	}
}

func parsePlayer(raw string) (checkers.Color, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "hot", "both", "hotseat":
		return checkers.NoColor, nil
	}
	c, ok := checkers.ParseColor(raw)
	if !ok {
		return checkers.NoColor, fmt.Errorf("unknown color %q (white, black or hot)", raw)
	}
	return c, nil
}

func playerLabel(c checkers.Color) string {
	if c == checkers.NoColor {
		return "both sides"
	}
	return c.String()
}
