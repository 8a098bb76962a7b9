package game

import (
	"errors"
	"fmt"

	"github.com/park285/damas-online/internal/checkers"
)

// Winner is the result of a finished game. The engine itself only produces
// White or Black; Draw exists for outcomes agreed outside the engine.
type Winner string

const (
	NoWinner    Winner = ""
	WinnerWhite Winner = "white"
	WinnerBlack Winner = "black"
	Draw        Winner = "draw"
)

// WinnerOf maps a side to its winner value.
func WinnerOf(c checkers.Color) Winner {
	switch c {
	case checkers.White:
		return WinnerWhite
	case checkers.Black:
		return WinnerBlack
	default:
		return NoWinner
	}
}

// Termination records how a game ended.
type Termination string

const (
	NotTerminated Termination = ""
	Elimination   Termination = "elimination"
	Stalemate     Termination = "stalemate"
	Resignation   Termination = "resignation"
)

var ErrInconsistentState = errors.New("inconsistent game state")

// State is the authoritative, shared part of a match. Everything derived from
// it (selection, candidate moves, mustCapture) is recomputed locally.
type State struct {
	Board         checkers.Board
	CurrentPlayer checkers.Color
	MoveHistory   []checkers.Move
	MoveNumber    int
	GameOver      bool
	Winner        Winner
	LastMove      *checkers.Move
	Termination   Termination
}

// New returns a fresh match: initial board, white to move, move number 0.
func New() *State {
	return &State{
		Board:         checkers.InitialBoard(),
		CurrentPlayer: checkers.White,
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.MoveHistory != nil {
		c.MoveHistory = make([]checkers.Move, len(s.MoveHistory))
		for i, m := range s.MoveHistory {
			c.MoveHistory[i] = cloneMove(m)
		}
	}
	if s.LastMove != nil {
		lm := cloneMove(*s.LastMove)
		c.LastMove = &lm
	}
	return &c
}

func cloneMove(m checkers.Move) checkers.Move {
	if m.Captured != nil {
		m.Captured = append([]checkers.Position(nil), m.Captured...)
	}
	return m
}

// Legal returns the legal-move set of the side to move; empty once the game is over.
func (s *State) Legal() checkers.LegalSet {
	if s.GameOver {
		return checkers.LegalSet{}
	}
	return checkers.LegalMoves(s.Board, s.CurrentPlayer)
}

// Apply plays m if it is a member of the current legal set and reports whether
// it did. Anything else leaves the state untouched.
func (s *State) Apply(m checkers.Move) bool {
	if s.GameOver || !s.Legal().Contains(m) {
		return false
	}
	mover := s.CurrentPlayer
	played := cloneMove(m)

	s.Board = checkers.Apply(s.Board, played)
	s.CurrentPlayer = mover.Opponent()
	s.MoveNumber++
	s.MoveHistory = append(s.MoveHistory, played)
	last := cloneMove(played)
	s.LastMove = &last

	switch {
	case s.Board.Total(s.CurrentPlayer) == 0:
		s.finish(WinnerOf(mover), Elimination)
	case checkers.LegalMoves(s.Board, s.CurrentPlayer).Empty():
		s.finish(WinnerOf(mover), Stalemate)
	}
	return true
}

// Resign ends the game in favour of the opponent of c, regardless of whose turn it is.
func (s *State) Resign(c checkers.Color) bool {
	if s.GameOver || c.Opponent() == checkers.NoColor {
		return false
	}
	s.MoveNumber++
	s.finish(WinnerOf(c.Opponent()), Resignation)
	return true
}

func (s *State) finish(w Winner, t Termination) {
	s.GameOver = true
	s.Winner = w
	s.Termination = t
}

// Validate checks the invariants a state must satisfy before it is adopted.
func (s *State) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil state", ErrInconsistentState)
	}
	if s.CurrentPlayer != checkers.White && s.CurrentPlayer != checkers.Black {
		return fmt.Errorf("%w: no side to move", ErrInconsistentState)
	}
	if s.MoveNumber < 0 {
		return fmt.Errorf("%w: negative move number %d", ErrInconsistentState, s.MoveNumber)
	}
	switch {
	case !s.GameOver && s.Winner != NoWinner:
		return fmt.Errorf("%w: winner %q on a running game", ErrInconsistentState, s.Winner)
	case s.GameOver && s.Winner == NoWinner:
		return fmt.Errorf("%w: finished game without winner", ErrInconsistentState)
	}
	for row := 0; row < checkers.Size; row++ {
		for col := 0; col < checkers.Size; col++ {
			p := checkers.Pos(row, col)
			if !s.Board.At(p).IsEmpty() && !p.Playable() {
				return fmt.Errorf("%w: piece on light square %s", ErrInconsistentState, p)
			}
		}
	}
	for _, c := range []checkers.Color{checkers.White, checkers.Black} {
		if n := s.Board.Total(c); n > checkers.PiecesPerSide {
			return fmt.Errorf("%w: %d %s pieces", ErrInconsistentState, n, c)
		}
	}
	return nil
}

// Outcome summarizes the raw signals handed to settlement.
type Outcome struct {
	Winner          Winner
	Termination     Termination
	MoveNumber      int
	WhitePieces     int
	BlackPieces     int
	WhiteKings      int
	BlackKings      int
	CapturedByWhite int
	CapturedByBlack int
	Moves           []string
}

// Outcome derives capture counts from the remaining material: each side starts
// with twelve men, so pieces missing from one side were captured by the other.
func (s *State) Outcome() Outcome {
	wm, wk := s.Board.Count(checkers.White)
	bm, bk := s.Board.Count(checkers.Black)
	o := Outcome{
		Winner:          s.Winner,
		Termination:     s.Termination,
		MoveNumber:      s.MoveNumber,
		WhitePieces:     wm + wk,
		BlackPieces:     bm + bk,
		WhiteKings:      wk,
		BlackKings:      bk,
		CapturedByWhite: checkers.PiecesPerSide - (bm + bk),
		CapturedByBlack: checkers.PiecesPerSide - (wm + wk),
	}
	for _, m := range s.MoveHistory {
		o.Moves = append(o.Moves, m.String())
	}
	return o
}
