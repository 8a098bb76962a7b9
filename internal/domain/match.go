package domain

import "time"

// MatchResult is the persisted record of a settled match.
type MatchResult struct {
	MatchID         string
	Winner          string
	Method          string
	MoveNumber      int
	WhitePieces     int
	BlackPieces     int
	WhiteKings      int
	BlackKings      int
	CapturedByWhite int
	CapturedByBlack int
	Moves           []string
	Record          string
	EndedAt         time.Time
}
