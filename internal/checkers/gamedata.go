package checkers

// GameData is the move payload relayed between the two players.
// OpponentPieceColor is the mover's color as seen by the receiver; IsOpponentStep
// tells the receiver the mover keeps the turn (a capture sequence continues).
type GameData struct {
	OpponentPieceColor    Color     `json:"opponent_piece_color" validate:"required,oneof=White Black"`
	PiecePreviousPosition Position  `json:"piece_previous_position"`
	PieceNewPosition      Position  `json:"piece_new_position"`
	CapturedPiecePosition *Position `json:"captured_piece_position" validate:"omitempty"`
	IsOpponentStep        bool      `json:"is_opponent_step"`
}

// GameDataFor converts an applied outcome into the payload forwarded to the
// opponent.
func GameDataFor(o Outcome) GameData {
	d := GameData{
		OpponentPieceColor:    o.Color,
		PiecePreviousPosition: o.From,
		PieceNewPosition:      o.Move.Next,
		IsOpponentStep:        o.Continue,
	}
	if o.Move.Captured != nil {
		c := *o.Move.Captured
		d.CapturedPiecePosition = &c
	}
	return d
}
