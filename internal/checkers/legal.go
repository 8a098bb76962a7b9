package checkers

// LegalSet is the authoritative move set for the side to move.
type LegalSet struct {
	MustCapture     bool
	Moves           []Move
	MaxCaptureCount int
}

// LegalMoves applies the mandatory-capture and maximal-capture rules across
// every piece of side. When any capture exists only the longest chains are
// legal; otherwise the set is the union of all simple moves.
func LegalMoves(b Board, side Color) LegalSet {
	pieces := b.Pieces(side)

	var captures []Move
	longest := 0
	for _, from := range pieces {
		for _, m := range CaptureSequences(b, from) {
			switch n := len(m.Captured); {
			case n > longest:
				longest = n
				captures = append(captures[:0], m)
			case n == longest:
				captures = append(captures, m)
			}
		}
	}
	if longest > 0 {
		return LegalSet{MustCapture: true, Moves: captures, MaxCaptureCount: longest}
	}

	var moves []Move
	for _, from := range pieces {
		moves = append(moves, SimpleMoves(b, from)...)
	}
	return LegalSet{Moves: moves}
}

func (s LegalSet) Empty() bool { return len(s.Moves) == 0 }

// From returns the legal moves starting on p, in generation order.
func (s LegalSet) From(p Position) []Move {
	var out []Move
	for _, m := range s.Moves {
		if m.From == p {
			out = append(out, m)
		}
	}
	return out
}

// Contains reports whether m is a member of the set.
func (s LegalSet) Contains(m Move) bool {
	for _, lm := range s.Moves {
		if lm.Equal(m) {
			return true
		}
	}
	return false
}

// Movable lists the distinct origin squares of the set, in generation order.
func (s LegalSet) Movable() []Position {
	seen := make(map[Position]bool, len(s.Moves))
	var out []Position
	for _, m := range s.Moves {
		if !seen[m.From] {
			seen[m.From] = true
			out = append(out, m.From)
		}
	}
	return out
}

// Destinations lists the distinct landing squares reachable from p.
func (s LegalSet) Destinations(p Position) []Position {
	seen := make(map[Position]bool)
	var out []Position
	for _, m := range s.From(p) {
		if !seen[m.To] {
			seen[m.To] = true
			out = append(out, m.To)
		}
	}
	return out
}
