package damasdto

import "time"

// OutcomeKind mirrors the ledger's settlement kinds.
type OutcomeKind string

const (
	OutcomeWin  OutcomeKind = "WIN"
	OutcomeDraw OutcomeKind = "DRAW"
)

// Outcome is the settlement payload for a finished match. It carries raw
// signals only; balances and ratings are the ledger's business.
type Outcome struct {
	MatchID         string      `json:"match_id"`
	Kind            OutcomeKind `json:"type"`
	Winner          string      `json:"winner,omitempty"`
	Method          string      `json:"method"`
	MoveNumber      int         `json:"move_number"`
	WhitePieces     int         `json:"white_pieces"`
	BlackPieces     int         `json:"black_pieces"`
	WhiteKings      int         `json:"white_kings"`
	BlackKings      int         `json:"black_kings"`
	CapturedByWhite int         `json:"captured_by_white"`
	CapturedByBlack int         `json:"captured_by_black"`
	Moves           []string    `json:"moves"`
	EndedAt         time.Time   `json:"ended_at"`
}
