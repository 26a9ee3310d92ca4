package checkers

import (
	"encoding/json"
	"fmt"
)

// Board maps each color to its ordered piece collection. The zero value is an
// empty board. Boards are values: every mutation goes through ApplyMove, which
// returns a fresh copy.
type Board struct {
	white []Piece
	black []Piece
}

// NewBoard builds a board and checks its invariants: on-board positions, no
// two pieces on one square, ids unique within a color.
func NewBoard(white, black []Piece) (Board, error) {
	b := Board{
		white: append([]Piece(nil), white...),
		black: append([]Piece(nil), black...),
	}
	seen := make(map[Position]struct{}, len(white)+len(black))
	for _, c := range []Color{White, Black} {
		ids := make(map[int]struct{})
		for _, p := range b.pieces(c) {
			if !IsAllowablePosition(p.Position) {
				return Board{}, fmt.Errorf("%w: %s piece %d at %s", ErrInvalidBoard, c, p.ID, p.Position)
			}
			if _, dup := seen[p.Position]; dup {
				return Board{}, fmt.Errorf("%w: square %s used twice", ErrInvalidBoard, p.Position)
			}
			if _, dup := ids[p.ID]; dup {
				return Board{}, fmt.Errorf("%w: %s id %d used twice", ErrInvalidBoard, c, p.ID)
			}
			seen[p.Position] = struct{}{}
			ids[p.ID] = struct{}{}
		}
	}
	return b, nil
}

// InitialBoard is the fixed 12-per-side opening layout on the dark squares.
// Ids run column by column, so White 1 is at a1 and Black 1 at a7.
func InitialBoard() Board {
	return Board{
		white: openingRows(1, 3),
		black: openingRows(6, BoardSize),
	}
}

func openingRows(fromLine, toLine int) []Piece {
	var out []Piece
	for column := 1; column <= BoardSize; column++ {
		for line := fromLine; line <= toLine; line++ {
			if (column+line)%2 != 0 {
				continue
			}
			out = append(out, Piece{ID: len(out) + 1, Position: Position{Column: column, Line: line}})
		}
	}
	return out
}

func (b Board) pieces(c Color) []Piece {
	switch c {
	case White:
		return b.white
	case Black:
		return b.black
	default:
		return nil
	}
}

// Pieces returns a copy of c's pieces in board order.
func (b Board) Pieces(c Color) []Piece {
	return append([]Piece(nil), b.pieces(c)...)
}

func (b Board) Count(c Color) int { return len(b.pieces(c)) }

func (b Board) PieceByID(c Color, id int) (Piece, bool) {
	for _, p := range b.pieces(c) {
		if p.ID == id {
			return p, true
		}
	}
	return Piece{}, false
}

// At reports which piece, if any, stands on pos.
func (b Board) At(pos Position) (Color, Piece, bool) {
	for _, c := range []Color{White, Black} {
		for _, p := range b.pieces(c) {
			if p.Position == pos {
				return c, p, true
			}
		}
	}
	return "", Piece{}, false
}

func (b Board) Occupied(pos Position) bool {
	_, _, ok := b.At(pos)
	return ok
}

func (b Board) Clone() Board {
	return Board{white: b.Pieces(White), black: b.Pieces(Black)}
}

type boardJSON struct {
	White []Piece `json:"White"`
	Black []Piece `json:"Black"`
}

func (b Board) MarshalJSON() ([]byte, error) {
	return json.Marshal(boardJSON{White: b.Pieces(White), Black: b.Pieces(Black)})
}

func (b *Board) UnmarshalJSON(raw []byte) error {
	var v boardJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	nb, err := NewBoard(v.White, v.Black)
	if err != nil {
		return err
	}
	*b = nb
	return nil
}
