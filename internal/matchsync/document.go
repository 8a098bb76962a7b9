package matchsync

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/park285/damas-online/internal/checkers"
	"github.com/park285/damas-online/internal/game"
)

var ErrMalformedDocument = errors.New("malformed match document")

const boardCells = checkers.Size * checkers.Size

// Square is a board coordinate on the wire.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type MoveDoc struct {
	From      Square   `json:"from"`
	To        Square   `json:"to"`
	Captured  []Square `json:"captured,omitempty"`
	Promotion bool     `json:"promotion,omitempty"`
}

// CapturedCounts holds how many opposing pieces each side has taken.
type CapturedCounts struct {
	White int `json:"white"`
	Black int `json:"black"`
}

// Document is the shared snapshot of one match. The board is flattened
// row-major into 64 entries, null for an empty square.
type Document struct {
	MatchID       string         `json:"match_id"`
	Board         []*string      `json:"board"`
	CurrentPlayer string         `json:"current_player"`
	MoveHistory   []MoveDoc      `json:"move_history"`
	MoveNumber    int            `json:"move_number"`
	GameOver      bool           `json:"game_over"`
	Winner        *string        `json:"winner"`
	LastMove      *MoveDoc       `json:"last_move"`
	Termination   string         `json:"termination,omitempty"`
	Captured      CapturedCounts `json:"captured"`
	UpdatedAt     time.Time      `json:"updated_at"`
	Writer        string         `json:"writer,omitempty"`
}

// Encode builds the wire document for st. Writer and UpdatedAt are filled in
// by the caller.
func Encode(matchID string, st *game.State) *Document {
	doc := &Document{
		MatchID:       matchID,
		Board:         make([]*string, boardCells),
		CurrentPlayer: st.CurrentPlayer.String(),
		MoveHistory:   make([]MoveDoc, 0, len(st.MoveHistory)),
		MoveNumber:    st.MoveNumber,
		GameOver:      st.GameOver,
		Termination:   string(st.Termination),
	}
	for row := 0; row < checkers.Size; row++ {
		for col := 0; col < checkers.Size; col++ {
			if p := st.Board[row][col]; !p.IsEmpty() {
				name := p.String()
				doc.Board[row*checkers.Size+col] = &name
			}
		}
	}
	for _, m := range st.MoveHistory {
		doc.MoveHistory = append(doc.MoveHistory, encodeMove(m))
	}
	if st.LastMove != nil {
		lm := encodeMove(*st.LastMove)
		doc.LastMove = &lm
	}
	if st.Winner != game.NoWinner {
		w := string(st.Winner)
		doc.Winner = &w
	}
	o := st.Outcome()
	doc.Captured = CapturedCounts{White: o.CapturedByWhite, Black: o.CapturedByBlack}
	return doc
}

func encodeMove(m checkers.Move) MoveDoc {
	md := MoveDoc{
		From:      Square{Row: m.From.Row, Col: m.From.Col},
		To:        Square{Row: m.To.Row, Col: m.To.Col},
		Promotion: m.Promotion,
	}
	for _, c := range m.Captured {
		md.Captured = append(md.Captured, Square{Row: c.Row, Col: c.Col})
	}
	return md
}

// Decode rebuilds a game state from doc and checks it for consistency.
// Every failure wraps ErrMalformedDocument.
func Decode(doc *Document) (*game.State, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrMalformedDocument)
	}
	if len(doc.Board) != boardCells {
		return nil, fmt.Errorf("%w: board has %d cells", ErrMalformedDocument, len(doc.Board))
	}
	st := &game.State{
		MoveNumber:  doc.MoveNumber,
		GameOver:    doc.GameOver,
		Termination: game.Termination(doc.Termination),
	}
	for i, cell := range doc.Board {
		if cell == nil {
			continue
		}
		p, err := checkers.ParsePiece(*cell)
		if err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", ErrMalformedDocument, i, err)
		}
		st.Board[i/checkers.Size][i%checkers.Size] = p
	}

	side, ok := checkers.ParseColor(doc.CurrentPlayer)
	if !ok {
		return nil, fmt.Errorf("%w: current player %q", ErrMalformedDocument, doc.CurrentPlayer)
	}
	st.CurrentPlayer = side

	if doc.Winner != nil {
		switch w := game.Winner(*doc.Winner); w {
		case game.WinnerWhite, game.WinnerBlack, game.Draw:
			st.Winner = w
		default:
			return nil, fmt.Errorf("%w: winner %q", ErrMalformedDocument, *doc.Winner)
		}
	}
	switch st.Termination {
	case game.NotTerminated, game.Elimination, game.Stalemate, game.Resignation:
	default:
		return nil, fmt.Errorf("%w: termination %q", ErrMalformedDocument, doc.Termination)
	}

	for i, md := range doc.MoveHistory {
		m, err := decodeMove(md)
		if err != nil {
			return nil, fmt.Errorf("%w: move %d: %v", ErrMalformedDocument, i, err)
		}
		st.MoveHistory = append(st.MoveHistory, m)
	}
	if doc.LastMove != nil {
		m, err := decodeMove(*doc.LastMove)
		if err != nil {
			return nil, fmt.Errorf("%w: last move: %v", ErrMalformedDocument, err)
		}
		st.LastMove = &m
	}
	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return st, nil
}

func decodeMove(md MoveDoc) (checkers.Move, error) {
	m := checkers.Move{
		From:      checkers.Pos(md.From.Row, md.From.Col),
		To:        checkers.Pos(md.To.Row, md.To.Col),
		Promotion: md.Promotion,
	}
	if !m.From.InBounds() || !m.To.InBounds() {
		return checkers.Move{}, fmt.Errorf("square out of range")
	}
	for _, c := range md.Captured {
		p := checkers.Pos(c.Row, c.Col)
		if !p.InBounds() {
			return checkers.Move{}, fmt.Errorf("captured square out of range")
		}
		m.Captured = append(m.Captured, p)
	}
	return m, nil
}

// Marshal serializes doc as stored in the document store.
func Marshal(doc *Document) ([]byte, error) { return json.Marshal(doc) }

// Unmarshal parses a stored document. Syntax errors wrap ErrMalformedDocument.
func Unmarshal(raw []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	return &doc, nil
}
