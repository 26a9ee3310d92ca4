package checkers

import "fmt"

// LegalMoves returns every move color may make on b. Captures are mandatory:
// when any piece of color can capture, only capturing moves are returned.
// The order is deterministic: board order of pieces, then direction order.
func LegalMoves(b Board, color Color) []Move {
	if !color.Valid() {
		return nil
	}
	if captures := captureMoves(b, color); len(captures) > 0 {
		return captures
	}
	return simpleMoves(b, color)
}

// MovesForPiece filters LegalMoves down to one piece. A piece without a
// capture has no moves while any other piece of its color can capture.
func MovesForPiece(b Board, color Color, pieceID int) []Move {
	var out []Move
	for _, m := range LegalMoves(b, color) {
		if m.PieceID == pieceID {
			out = append(out, m)
		}
	}
	return out
}

// CanContinueCapture reports whether the piece that just captured can capture
// again from where it landed.
func CanContinueCapture(b Board, color Color, pieceID int) bool {
	moves := MovesForPiece(b, color, pieceID)
	if len(moves) == 0 {
		return false
	}
	for _, m := range moves {
		if !m.IsCapture() {
			return false
		}
	}
	return true
}

func captureMoves(b Board, color Color) []Move {
	opponent := color.Opposite()
	var out []Move
	for _, p := range b.pieces(color) {
		for _, d := range directionsFor(color, p) {
			over := p.Position.offset(d, 1)
			land := p.Position.offset(d, 2)
			if c, _, ok := b.At(over); !ok || c != opponent {
				continue
			}
			if !IsAllowablePosition(land) || b.Occupied(land) {
				continue
			}
			captured := over
			out = append(out, Move{PieceID: p.ID, Captured: &captured, Next: land})
		}
	}
	return out
}

func simpleMoves(b Board, color Color) []Move {
	var out []Move
	for _, p := range b.pieces(color) {
		for _, d := range directionsFor(color, p) {
			next := p.Position.offset(d, 1)
			if !IsAllowablePosition(next) || b.Occupied(next) {
				continue
			}
			out = append(out, Move{PieceID: p.ID, Next: next})
		}
	}
	return out
}

// ApplyMove relocates the moving piece, removes the captured opponent piece
// and crowns a man that reaches the opponent's back rank. It checks board
// invariants only; legality is the caller's concern (see Game.Play). b is not
// modified.
func ApplyMove(b Board, color Color, m Move) (Board, error) {
	if !color.Valid() {
		return Board{}, ErrUnknownColor
	}
	if !IsAllowablePosition(m.Next) {
		return Board{}, fmt.Errorf("%w: %s", ErrOffBoard, m.Next)
	}
	mover, ok := b.PieceByID(color, m.PieceID)
	if !ok {
		return Board{}, fmt.Errorf("%w: %s %d", ErrPieceNotFound, color, m.PieceID)
	}
	if c, p, taken := b.At(m.Next); taken && !(c == color && p.ID == mover.ID) {
		return Board{}, fmt.Errorf("%w: %s", ErrSquareOccupied, m.Next)
	}

	out := b.Clone()
	own := out.pieces(color)
	for i := range own {
		if own[i].ID != mover.ID {
			continue
		}
		own[i].Position = m.Next
		if m.Next.Line == color.promotionLine() {
			own[i].Crowned = true
		}
	}

	if m.Captured != nil {
		opponent := color.Opposite()
		victims := out.pieces(opponent)
		idx := -1
		for i, p := range victims {
			if p.Position == *m.Captured {
				idx = i
				break
			}
		}
		if idx < 0 {
			return Board{}, fmt.Errorf("%w: %s", ErrNoCapturedPiece, *m.Captured)
		}
		victims = append(victims[:idx], victims[idx+1:]...)
		out.setPieces(opponent, victims)
	}
	return out, nil
}

func (b *Board) setPieces(c Color, ps []Piece) {
	switch c {
	case White:
		b.white = ps
	case Black:
		b.black = ps
	}
}

// Notation renders a move as "c3-d4" or "c3xe5".
func Notation(from Position, m Move) string {
	sep := "-"
	if m.IsCapture() {
		sep = "x"
	}
	return from.String() + sep + m.Next.String()
}
