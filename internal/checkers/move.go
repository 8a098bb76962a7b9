package checkers

import "strings"

// Move is one complete turn. A capturing move may chain several jumps; Captured
// lists the jumped squares in order and is nil for a simple move. Promotion is
// set when a man became a king at any point during the move.
type Move struct {
	From      Position
	To        Position
	Captured  []Position
	Promotion bool
}

func (m Move) IsCapture() bool { return len(m.Captured) > 0 }

// Equal compares two moves including the captured squares, in order.
func (m Move) Equal(o Move) bool {
	if m.From != o.From || m.To != o.To || m.Promotion != o.Promotion || len(m.Captured) != len(o.Captured) {
		return false
	}
	for i := range m.Captured {
		if m.Captured[i] != o.Captured[i] {
			return false
		}
	}
	return true
}

// String renders the move in draughts style: "c3-d4" for a step, "c3xg7" for a capture.
func (m Move) String() string {
	sep := "-"
	if m.IsCapture() {
		sep = "x"
	}
	var b strings.Builder
	b.WriteString(m.From.String())
	b.WriteString(sep)
	b.WriteString(m.To.String())
	if m.Promotion {
		b.WriteString("=K")
	}
	return b.String()
}

// Apply returns the board that results from playing m: captured pieces are
// removed, the piece is relocated, and it is crowned when the move promoted it
// or it ends on its far row. The input board is not modified.
func Apply(b Board, m Move) Board {
	piece := b.At(m.From)
	if piece.IsEmpty() || !m.To.InBounds() {
		return b
	}
	for _, c := range m.Captured {
		if c.InBounds() {
			b.set(c, Empty)
		}
	}
	b.set(m.From, Empty)
	if !piece.IsKing() && (m.Promotion || m.To.Row == PromotionRow(piece.Color())) {
		piece = piece.Promoted()
	}
	b.set(m.To, piece)
	return b
}
