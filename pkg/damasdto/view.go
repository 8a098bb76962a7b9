package damasdto

// Square is a board coordinate as exposed to collaborators.
type Square struct {
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Notation string `json:"notation,omitempty"`
}

type MoveView struct {
	From      Square   `json:"from"`
	To        Square   `json:"to"`
	Captured  []Square `json:"captured,omitempty"`
	Promotion bool     `json:"promotion,omitempty"`
	Notation  string   `json:"notation"`
}

// View is the read-only projection of a client's match: the shared state plus
// the local selection.
type View struct {
	MatchID       string       `json:"match_id,omitempty"`
	Player        string       `json:"player,omitempty"`
	Board         [8][8]string `json:"board"`
	CurrentPlayer string       `json:"current_player"`
	IsMyTurn      bool         `json:"is_my_turn"`
	Selected      *Square      `json:"selected,omitempty"`
	Destinations  []Square     `json:"destinations,omitempty"`
	Movable       []Square     `json:"movable,omitempty"`
	MustCapture   bool         `json:"must_capture"`
	WhitePieces   int          `json:"white_pieces"`
	BlackPieces   int          `json:"black_pieces"`
	WhiteKings    int          `json:"white_kings"`
	BlackKings    int          `json:"black_kings"`
	MoveNumber    int          `json:"move_number"`
	GameOver      bool         `json:"game_over"`
	Winner        string       `json:"winner,omitempty"`
	Termination   string       `json:"termination,omitempty"`
	LastMove      *MoveView    `json:"last_move,omitempty"`
}
