package checkers

type direction struct{ dr, dc int }

// diagonals in a fixed order: up-left, up-right, down-left, down-right.
var diagonals = [4]direction{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}}

// SimpleMoves lists the non-capturing moves of the piece on from. A man steps
// one square diagonally forward; a king slides any distance along a clear
// diagonal. Empty squares yield nil.
func SimpleMoves(b Board, from Position) []Move {
	piece := b.At(from)
	if piece.IsEmpty() {
		return nil
	}
	var out []Move
	if piece.IsKing() {
		for _, d := range diagonals {
			for n := 1; ; n++ {
				to := from.step(d, n)
				if !to.InBounds() || !b.At(to).IsEmpty() {
					break
				}
				out = append(out, Move{From: from, To: to})
			}
		}
		return out
	}
	color := piece.Color()
	for _, d := range diagonals {
		if d.dr != forward(color) {
			continue
		}
		to := from.step(d, 1)
		if !to.InBounds() || !b.At(to).IsEmpty() {
			continue
		}
		out = append(out, Move{From: from, To: to, Promotion: to.Row == PromotionRow(color)})
	}
	return out
}

// CaptureSequences enumerates every complete capture chain of the piece on
// from. Each returned move ends on a square from which no further capture is
// available. Chains are not merged or deduplicated; the caller filters by length.
func CaptureSequences(b Board, from Position) []Move {
	piece := b.At(from)
	if piece.IsEmpty() {
		return nil
	}
	s := &captureSearch{board: b, from: from}
	s.walk(from, piece, false)
	return s.out
}

// captureSearch runs the depth-first search on a single scratch board. Each
// jump is applied in place and undone on the way back, so the search never
// copies the board per node.
type captureSearch struct {
	board    Board
	from     Position
	captured []Position
	out      []Move
}

type jump struct {
	victim   Position
	landings []Position
}

func (s *captureSearch) walk(at Position, piece Piece, promoted bool) {
	found := false
	for _, d := range diagonals {
		j, ok := s.jumpFrom(at, piece, d)
		if !ok {
			continue
		}
		found = true
		victim := s.board.At(j.victim)
		for _, land := range j.landings {
			next := piece
			crowned := promoted
			if !piece.IsKing() && land.Row == PromotionRow(piece.Color()) {
				next = piece.Promoted()
				crowned = true
			}
			s.board.set(at, Empty)
			s.board.set(j.victim, Empty)
			s.board.set(land, next)
			s.captured = append(s.captured, j.victim)

			s.walk(land, next, crowned)

			s.captured = s.captured[:len(s.captured)-1]
			s.board.set(land, Empty)
			s.board.set(j.victim, victim)
			s.board.set(at, piece)
		}
	}
	if !found && len(s.captured) > 0 {
		s.out = append(s.out, Move{
			From:      s.from,
			To:        at,
			Captured:  append([]Position(nil), s.captured...),
			Promotion: promoted,
		})
	}
}

// jumpFrom finds the capture available from at along d, if any. A man needs an
// adjacent enemy with an empty square right behind it; a king may fly over
// empty squares to the first piece and land on any empty square beyond it.
func (s *captureSearch) jumpFrom(at Position, piece Piece, d direction) (jump, bool) {
	color := piece.Color()
	if !piece.IsKing() {
		victim := at.step(d, 1)
		land := at.step(d, 2)
		if !land.InBounds() {
			return jump{}, false
		}
		if s.board.At(victim).Color() != color.Opponent() || !s.board.At(land).IsEmpty() {
			return jump{}, false
		}
		return jump{victim: victim, landings: []Position{land}}, true
	}

	n := 1
	for {
		sq := at.step(d, n)
		if !sq.InBounds() {
			return jump{}, false
		}
		if !s.board.At(sq).IsEmpty() {
			break
		}
		n++
	}
	victim := at.step(d, n)
	if s.board.At(victim).Color() != color.Opponent() {
		return jump{}, false
	}
	var landings []Position
	for k := n + 1; ; k++ {
		land := at.step(d, k)
		if !land.InBounds() || !s.board.At(land).IsEmpty() {
			break
		}
		landings = append(landings, land)
	}
	if len(landings) == 0 {
		return jump{}, false
	}
	return jump{victim: victim, landings: landings}, true
}
