package presenter

import (
	"strings"

	"github.com/park285/damas-online/internal/msgcat"
	"github.com/park285/damas-online/pkg/damasdto"
)

const (
	cellLight       = "   "
	cellEmpty       = " . "
	cellDestination = " * "
)

// Formatter renders match views as plain text for terminal tools.
type Formatter struct {
	cat *msgcat.Catalog
}

func NewFormatter(cat *msgcat.Catalog) *Formatter {
	return &Formatter{cat: cat}
}

// Catalog exposes the message catalog for callers that print their own lines.
func (f *Formatter) Catalog() *msgcat.Catalog { return f.cat }

// Render is the board followed by the status block.
func (f *Formatter) Render(v damasdto.View) string {
	return f.Board(v) + "\n" + f.Status(v)
}

// Board draws the 8x8 grid from white's side: rank 8 on top, files a to h.
// Pieces are w/W (white man/king) and b/B; the selected piece is bracketed
// and legal destinations are marked with *.
func (f *Formatter) Board(v damasdto.View) string {
	dest := make(map[[2]int]bool, len(v.Destinations))
	for _, s := range v.Destinations {
		dest[[2]int{s.Row, s.Col}] = true
	}

	var sb strings.Builder
	header := "   " + " a  b  c  d  e  f  g  h"
	sb.WriteString(header)
	sb.WriteString("\n")
	for row := 0; row < len(v.Board); row++ {
		rank := string(rune('8' - row))
		sb.WriteString(rank)
		sb.WriteString(" |")
		for col := 0; col < len(v.Board[row]); col++ {
			sb.WriteString(cell(v, row, col, dest))
		}
		sb.WriteString("| ")
		sb.WriteString(rank)
		sb.WriteString("\n")
	}
	sb.WriteString(header)
	return sb.String()
}

func cell(v damasdto.View, row, col int, dest map[[2]int]bool) string {
	if (row+col)%2 == 0 {
		return cellLight
	}
	sym := pieceSymbol(v.Board[row][col])
	if v.Selected != nil && v.Selected.Row == row && v.Selected.Col == col {
		return "[" + sym + "]"
	}
	if dest[[2]int{row, col}] {
		return cellDestination
	}
	if sym == "" {
		return cellEmpty
	}
	return " " + sym + " "
}

func pieceSymbol(name string) string {
	switch name {
	case "white":
		return "w"
	case "white_king":
		return "W"
	case "black":
		return "b"
	case "black_king":
		return "B"
	default:
		return ""
	}
}

// Status summarizes turn, material and the last move.
func (f *Formatter) Status(v damasdto.View) string {
	var lines []string
	switch {
	case v.GameOver && v.Winner == "draw":
		lines = append(lines, f.cat.Text("status.draw", v))
	case v.GameOver:
		lines = append(lines, f.cat.Text("status.game_over", v))
	case v.IsMyTurn:
		lines = append(lines, f.cat.Text("status.your_turn", v))
	default:
		lines = append(lines, f.cat.Text("status.turn", v))
	}
	if v.MustCapture && !v.GameOver {
		lines = append(lines, f.cat.Text("status.must_capture", nil))
	}
	lines = append(lines, f.cat.Text("status.pieces", v))
	if v.LastMove != nil {
		lines = append(lines, f.cat.Text("status.last_move", v.LastMove))
	}
	if v.Selected != nil {
		var dests []string
		for _, d := range v.Destinations {
			dests = append(dests, d.Notation)
		}
		lines = append(lines, f.cat.Text("status.selected", map[string]any{
			"Square":       v.Selected.Notation,
			"Destinations": strings.Join(dests, " "),
		}))
	}
	return strings.Join(lines, "\n")
}
