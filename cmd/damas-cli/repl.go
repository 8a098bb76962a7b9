package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/internal/presenter"
	"github.com/park285/damas-online/pkg/damasdto"
)

// matchClient is the part of matchsync.Client the terminal drives.
type matchClient interface {
	View() damasdto.View
	SelectSquare(row, col int) bool
	Options(row, col int) []checkers.Move
	ChooseOption(ctx context.Context, row, col, n int) (checkers.Move, bool)
	Resign(ctx context.Context) bool
}

type repl struct {
	client matchClient
	f      *presenter.Formatter
	mu     sync.Mutex
	out    io.Writer
}

func newREPL(client matchClient, f *presenter.Formatter, out io.Writer) *repl {
	return &repl{client: client, f: f, out: out}
}

func (r *repl) println(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, s)
}

func (r *repl) text(key string, data any) string { return r.f.Catalog().Text(key, data) }

// Show prints the board and status for v.
func (r *repl) Show(v damasdto.View) { r.println(r.f.Render(v) + "\n") }

// Handle runs one input line and reports whether the user asked to leave.
func (r *repl) Handle(ctx context.Context, line string) bool {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) == 0 {
		return false
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "h", "?":
		r.println(r.text("cli.help", nil))
	case "show", "board":
		r.Show(r.client.View())
	case "resign":
		if !r.client.Resign(ctx) {
			r.println(r.text("cli.resign_rejected", nil))
		}
	case "sel", "select":
		if len(args) != 1 {
			r.println(r.text("cli.help", nil))
			return false
		}
		r.selectSquare(args[0])
	case "go", "to":
		if len(args) < 1 || len(args) > 2 {
			r.println(r.text("cli.help", nil))
			return false
		}
		r.moveTo(ctx, args[0], args[1:])
	case "move", "mv":
		if len(args) < 2 || len(args) > 3 {
			r.println(r.text("cli.help", nil))
			return false
		}
		if r.selectSquare(args[0]) {
			r.moveTo(ctx, args[1], args[2:])
		}
	default:
		r.println(r.text("cli.unknown_command", map[string]any{"Command": fields[0]}))
	}
	return false
}

func (r *repl) selectSquare(raw string) bool {
	p, ok := r.square(raw)
	if !ok || !r.myTurn() {
		return false
	}
	if !r.client.SelectSquare(p.Row, p.Col) {
		r.println(r.text("cli.cannot_select", map[string]any{"Square": p.String()}))
		return false
	}
	return true
}

// moveTo plays to raw. When several capture chains end there, path (1-based)
// picks one; without it the chains are listed and nothing is played.
func (r *repl) moveTo(ctx context.Context, raw string, path []string) {
	p, ok := r.square(raw)
	if !ok || !r.myTurn() {
		return
	}
	opts := r.client.Options(p.Row, p.Col)
	n := 0
	switch {
	case len(path) == 1:
		k, err := strconv.Atoi(path[0])
		if err != nil || k < 1 || k > len(opts) {
			r.println(r.text("cli.bad_path", map[string]any{"Input": path[0], "Square": p.String()}))
			return
		}
		n = k - 1
	case len(opts) > 1:
		r.println(r.text("cli.choose_path", map[string]any{"Square": p.String()}))
		for i, m := range opts {
			r.println(r.text("cli.path", map[string]any{
				"Index":    i + 1,
				"Notation": m.String(),
				"Captured": squares(m.Captured),
			}))
		}
		return
	}
	m, ok := r.client.ChooseOption(ctx, p.Row, p.Col, n)
	if !ok {
		r.println(r.text("cli.cannot_move", map[string]any{"Square": p.String()}))
		return
	}
	r.println(r.text("cli.moved", map[string]any{"Notation": m.String()}))
}

func squares(ps []checkers.Position) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = p.String()
	}
	return strings.Join(names, " ")
}

func (r *repl) square(raw string) (checkers.Position, bool) {
	p, err := checkers.ParsePosition(raw)
	if err != nil {
		r.println(r.text("cli.bad_square", map[string]any{"Input": raw}))
		return checkers.Position{}, false
	}
	return p, true
}

func (r *repl) myTurn() bool {
	v := r.client.View()
	if v.GameOver {
		r.println(r.f.Status(v))
		return false
	}
	if !v.IsMyTurn {
		r.println(r.text("cli.not_your_turn", v))
		return false
	}
	return true
}
