package game

import (
	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/pkg/damasdto"
)

// Session is one client's view of a match: the authoritative State plus the
// local-only selection derived from it. Invalid input is ignored rather than
// reported, so clicks that arrive after a reconciliation cannot corrupt state.
//
// A Session is not safe for concurrent use; matchsync.Client serializes access.
type Session struct {
	player     checkers.Color
	state      *State
	legal      checkers.LegalSet
	selected   *checkers.Position
	candidates []checkers.Move
}

// NewSession binds a state to the local player. checkers.NoColor makes the
// session control whichever side is to move (hot-seat play).
func NewSession(player checkers.Color, st *State) *Session {
	if st == nil {
		st = New()
	}
	s := &Session{player: player}
	s.Adopt(st)
	return s
}

func (s *Session) Player() checkers.Color { return s.player }

// State returns a copy of the authoritative state.
func (s *Session) State() *State { return s.state.Clone() }

func (s *Session) MoveNumber() int { return s.state.MoveNumber }

func (s *Session) GameOver() bool { return s.state.GameOver }

// IsMyTurn reports whether the local player may act now.
func (s *Session) IsMyTurn() bool {
	if s.state.GameOver {
		return false
	}
	return s.player == checkers.NoColor || s.player == s.state.CurrentPlayer
}

// Legal is the cached legal-move set of the side to move.
func (s *Session) Legal() checkers.LegalSet { return s.legal }

// Adopt replaces the authoritative state and recomputes every derived field.
// Any selection in progress is dropped.
func (s *Session) Adopt(st *State) {
	s.state = st.Clone()
	s.legal = s.state.Legal()
	s.clearSelection()
}

func (s *Session) clearSelection() {
	s.selected = nil
	s.candidates = nil
}

// SelectSquare selects an own piece that has at least one legal move. Any other
// square is ignored and the previous selection is kept.
func (s *Session) SelectSquare(row, col int) bool {
	if !s.IsMyTurn() || !checkers.InBounds(row, col) {
		return false
	}
	pos := checkers.Pos(row, col)
	if s.state.Board.At(pos).Color() != s.state.CurrentPlayer {
		return false
	}
	moves := s.legal.From(pos)
	if len(moves) == 0 {
		return false
	}
	s.selected = &pos
	s.candidates = moves
	return true
}

// Candidates returns the legal moves of the selected piece in generation order.
func (s *Session) Candidates() []checkers.Move {
	out := make([]checkers.Move, 0, len(s.candidates))
	for _, m := range s.candidates {
		out = append(out, cloneMove(m))
	}
	return out
}

// Options lists the candidates landing on (row, col). More than one option
// means several capture chains end on the same square.
func (s *Session) Options(row, col int) []checkers.Move {
	to := checkers.Pos(row, col)
	var out []checkers.Move
	for _, m := range s.candidates {
		if m.To == to {
			out = append(out, cloneMove(m))
		}
	}
	return out
}

// ChooseDestination plays the first offered move of the selected piece that
// lands on (row, col). It returns the applied move, or false when nothing was played.
func (s *Session) ChooseDestination(row, col int) (checkers.Move, bool) {
	return s.ChooseOption(row, col, 0)
}

// ChooseOption plays the n-th (0-based) entry of Options(row, col).
func (s *Session) ChooseOption(row, col, n int) (checkers.Move, bool) {
	if s.selected == nil || !s.IsMyTurn() || n < 0 {
		return checkers.Move{}, false
	}
	opts := s.Options(row, col)
	if n >= len(opts) {
		return checkers.Move{}, false
	}
	m := opts[n]
	if !s.state.Apply(m) {
		return checkers.Move{}, false
	}
	s.legal = s.state.Legal()
	s.clearSelection()
	return m, true
}

// Resign concedes the game for the local player. In hot-seat mode the side to
// move resigns.
func (s *Session) Resign() bool {
	who := s.player
	if who == checkers.NoColor {
		who = s.state.CurrentPlayer
	}
	if !s.state.Resign(who) {
		return false
	}
	s.legal = checkers.LegalSet{}
	s.clearSelection()
	return true
}

// View projects the session for collaborators.
func (s *Session) View() damasdto.View {
	st := s.state
	v := damasdto.View{
		Player:        s.player.String(),
		CurrentPlayer: st.CurrentPlayer.String(),
		IsMyTurn:      s.IsMyTurn(),
		MustCapture:   s.legal.MustCapture,
		MoveNumber:    st.MoveNumber,
		GameOver:      st.GameOver,
		Winner:        string(st.Winner),
		Termination:   string(st.Termination),
	}
	for row := 0; row < checkers.Size; row++ {
		for col := 0; col < checkers.Size; col++ {
			v.Board[row][col] = st.Board[row][col].String()
		}
	}
	wm, wk := st.Board.Count(checkers.White)
	bm, bk := st.Board.Count(checkers.Black)
	v.WhitePieces, v.WhiteKings = wm+wk, wk
	v.BlackPieces, v.BlackKings = bm+bk, bk

	if s.IsMyTurn() {
		for _, p := range s.legal.Movable() {
			v.Movable = append(v.Movable, SquareOf(p))
		}
	}
	if s.selected != nil {
		sel := SquareOf(*s.selected)
		v.Selected = &sel
		for _, p := range s.legal.Destinations(*s.selected) {
			v.Destinations = append(v.Destinations, SquareOf(p))
		}
	}
	if st.LastMove != nil {
		lm := MoveViewOf(*st.LastMove)
		v.LastMove = &lm
	}
	return v
}

func SquareOf(p checkers.Position) damasdto.Square {
	return damasdto.Square{Row: p.Row, Col: p.Col, Notation: p.String()}
}

func MoveViewOf(m checkers.Move) damasdto.MoveView {
	mv := damasdto.MoveView{
		From:      SquareOf(m.From),
		To:        SquareOf(m.To),
		Promotion: m.Promotion,
		Notation:  m.String(),
	}
	for _, c := range m.Captured {
		mv.Captured = append(mv.Captured, SquareOf(c))
	}
	return mv
}
