package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/park285/damas-online/internal/domain"
	"github.com/park285/damas-online/internal/game"
	"github.com/park285/damas-online/pkg/damasdto"
)

// BuildOutcome converts a finished state into the ledger payload.
func BuildOutcome(matchID string, st *game.State, endedAt time.Time) damasdto.Outcome {
	o := st.Outcome()
	out := damasdto.Outcome{
		MatchID:         matchID,
		Kind:            damasdto.OutcomeWin,
		Winner:          string(o.Winner),
		Method:          string(o.Termination),
		MoveNumber:      o.MoveNumber,
		WhitePieces:     o.WhitePieces,
		BlackPieces:     o.BlackPieces,
		WhiteKings:      o.WhiteKings,
		BlackKings:      o.BlackKings,
		CapturedByWhite: o.CapturedByWhite,
		CapturedByBlack: o.CapturedByBlack,
		Moves:           o.Moves,
		EndedAt:         endedAt.UTC(),
	}
	if o.Winner == game.Draw {
		out.Kind = damasdto.OutcomeDraw
		out.Winner = ""
	}
	if out.Moves == nil {
		out.Moves = []string{}
	}
	return out
}

// BuildResult converts a finished state into the persisted record.
func BuildResult(matchID string, st *game.State, endedAt time.Time) *domain.MatchResult {
	o := st.Outcome()
	r := &domain.MatchResult{
		MatchID:         matchID,
		Winner:          string(o.Winner),
		Method:          string(o.Termination),
		MoveNumber:      o.MoveNumber,
		WhitePieces:     o.WhitePieces,
		BlackPieces:     o.BlackPieces,
		WhiteKings:      o.WhiteKings,
		BlackKings:      o.BlackKings,
		CapturedByWhite: o.CapturedByWhite,
		CapturedByBlack: o.CapturedByBlack,
		Moves:           o.Moves,
		EndedAt:         endedAt.UTC(),
	}
	r.Record = buildRecord(r)
	return r
}

func resultToken(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "2-0"
	case "black":
		return "0-2"
	case "draw":
		return "1-1"
	default:
		return "*"
	}
}

// buildRecord renders a PDN game record. White moves first in Brazilian draughts.
func buildRecord(r *domain.MatchResult) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	date := r.EndedAt
	if date.IsZero() {
		date = time.Now()
	}
	res := resultToken(r.Winner)
	b.WriteString("[Event \"Damas Online\"]\n")
	b.WriteString(fmt.Sprintf("[Round \"%s\"]\n", sanitizeTag(r.MatchID)))
	b.WriteString(fmt.Sprintf("[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day()))
	b.WriteString("[GameType \"26\"]\n")
	if strings.TrimSpace(r.Method) != "" {
		b.WriteString(fmt.Sprintf("[Termination \"%s\"]\n", sanitizeTag(r.Method)))
	}
	b.WriteString(fmt.Sprintf("[Result \"%s\"]\n\n", res))

	for i := 0; i < len(r.Moves); i += 2 {
		b.WriteString(fmt.Sprintf("%d. %s", i/2+1, r.Moves[i]))
		if i+1 < len(r.Moves) {
			b.WriteString(" ")
			b.WriteString(r.Moves[i+1])
		}
		b.WriteString(" ")
	}
	b.WriteString(res)
	return b.String()
}

func sanitizeTag(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
