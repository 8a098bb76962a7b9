package checkers

import (
	"fmt"
	"strings"
)

// Size is the board edge length. Brazilian draughts is played on 8x8.
const Size = 8

// PiecesPerSide is the number of men each side starts with.
const PiecesPerSide = 12

// Color identifies a side.
type Color uint8

const (
	NoColor Color = iota
	White
	Black
)

func (c Color) String() string {
	switch c {
	case White:
		return "white"
	case Black:
		return "black"
	default:
		return ""
	}
}

// Opponent returns the other side. NoColor has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return NoColor
	}
}

// ParseColor accepts "white"/"w" and "black"/"b" (case-insensitive).
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return NoColor, false
	}
}

// Piece is the content of a square. The zero value is an empty square.
type Piece uint8

const (
	Empty Piece = iota
	WhiteMan
	WhiteKing
	BlackMan
	BlackKing
)

func (p Piece) IsEmpty() bool { return p == Empty }

func (p Piece) Color() Color {
	switch p {
	case WhiteMan, WhiteKing:
		return White
	case BlackMan, BlackKing:
		return Black
	default:
		return NoColor
	}
}

func (p Piece) IsKing() bool { return p == WhiteKing || p == BlackKing }

// Promoted returns the king of the same color. Kings and empty squares are returned unchanged.
func (p Piece) Promoted() Piece {
	switch p {
	case WhiteMan:
		return WhiteKing
	case BlackMan:
		return BlackKing
	default:
		return p
	}
}

// String returns the wire name of the piece; empty squares render as "".
func (p Piece) String() string {
	switch p {
	case WhiteMan:
		return "white"
	case WhiteKing:
		return "white_king"
	case BlackMan:
		return "black"
	case BlackKing:
		return "black_king"
	default:
		return ""
	}
}

// ParsePiece is the inverse of Piece.String.
func ParsePiece(s string) (Piece, error) {
	switch strings.TrimSpace(s) {
	case "":
		return Empty, nil
	case "white":
		return WhiteMan, nil
	case "white_king":
		return WhiteKing, nil
	case "black":
		return BlackMan, nil
	case "black_king":
		return BlackKing, nil
	default:
		return Empty, fmt.Errorf("unknown piece %q", s)
	}
}

// Position addresses a square by row (0 = top, black's home edge) and column.
type Position struct {
	Row int
	Col int
}

func Pos(row, col int) Position { return Position{Row: row, Col: col} }

// InBounds reports whether row and col address a square of the board.
func InBounds(row, col int) bool {
	return row >= 0 && row < Size && col >= 0 && col < Size
}

func (p Position) InBounds() bool { return InBounds(p.Row, p.Col) }

// Playable reports whether the square is a dark one; pieces never leave them.
func (p Position) Playable() bool { return p.InBounds() && (p.Row+p.Col)%2 == 1 }

func (p Position) step(d direction, n int) Position {
	return Position{Row: p.Row + d.dr*n, Col: p.Col + d.dc*n}
}

// String renders the square as a column letter and a rank, a8 being the top-left corner.
func (p Position) String() string {
	if !p.InBounds() {
		return fmt.Sprintf("(%d,%d)", p.Row, p.Col)
	}
	return fmt.Sprintf("%c%d", 'a'+p.Col, Size-p.Row)
}

// ParsePosition reads the notation produced by Position.String.
func ParsePosition(s string) (Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	col := int(s[0] - 'a')
	rank := int(s[1] - '0')
	p := Position{Row: Size - rank, Col: col}
	if !p.InBounds() {
		return Position{}, fmt.Errorf("invalid square %q", s)
	}
	return p, nil
}

// Board is an 8x8 grid of pieces. It is a value: assignment copies it.
type Board [Size][Size]Piece

func EmptyBoard() Board { return Board{} }

// InitialBoard places black men on the playable squares of rows 0-2 and white men on rows 5-7.
func InitialBoard() Board {
	var b Board
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if (row+col)%2 == 0 {
				continue
			}
			switch {
			case row < 3:
				b[row][col] = BlackMan
			case row > 4:
				b[row][col] = WhiteMan
			}
		}
	}
	return b
}

// At returns the piece on p, or Empty when p is off the board.
func (b Board) At(p Position) Piece {
	if !p.InBounds() {
		return Empty
	}
	return b[p.Row][p.Col]
}

// With returns a copy of the board with piece placed on p.
func (b Board) With(p Position, piece Piece) Board {
	if p.InBounds() {
		b[p.Row][p.Col] = piece
	}
	return b
}

func (b *Board) set(p Position, piece Piece) { b[p.Row][p.Col] = piece }

// Count returns the number of men and kings of the given color.
func (b Board) Count(c Color) (men, kings int) {
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			p := b[row][col]
			if p.Color() != c {
				continue
			}
			if p.IsKing() {
				kings++
			} else {
				men++
			}
		}
	}
	return men, kings
}

// Total returns the number of pieces of the given color.
func (b Board) Total(c Color) int {
	men, kings := b.Count(c)
	return men + kings
}

// Pieces lists the squares occupied by the given color in row-major order.
func (b Board) Pieces(c Color) []Position {
	var out []Position
	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			if b[row][col].Color() == c {
				out = append(out, Position{Row: row, Col: col})
			}
		}
	}
	return out
}

// PromotionRow is the far edge for the color: row 0 for white, row 7 for black.
func PromotionRow(c Color) int {
	if c == White {
		return 0
	}
	return Size - 1
}

// forward is the row delta of a man's non-capturing step.
func forward(c Color) int {
	if c == White {
		return -1
	}
	return 1
}
