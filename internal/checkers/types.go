package checkers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownColor    = errors.New("unknown piece color")
	ErrPieceNotFound   = errors.New("piece not found")
	ErrOffBoard        = errors.New("position is off the board")
	ErrSquareOccupied  = errors.New("square is occupied")
	ErrNoCapturedPiece = errors.New("no opponent piece at captured position")
	ErrInvalidBoard    = errors.New("invalid board")
)

// Color identifies a side. The string form is the wire form.
type Color string

const (
	White Color = "White"
	Black Color = "Black"
)

func (c Color) Valid() bool { return c == White || c == Black }

func (c Color) Opposite() Color {
	switch c {
	case White:
		return Black
	case Black:
		return White
	default:
		return c
	}
}

// promotionLine is the opponent's back rank.
func (c Color) promotionLine() int {
	if c == White {
		return BoardSize
	}
	return 1
}

// ParseColor accepts "white", "w", "black", "b" in any case.
func ParseColor(s string) (Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, nil
	case "black", "b":
		return Black, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownColor, s)
	}
}

const BoardSize = 8

// Position is a board coordinate; both axes run 1..8 and equality is structural.
type Position struct {
	Column int `json:"column" validate:"min=1,max=8"`
	Line   int `json:"line" validate:"min=1,max=8"`
}

// IsAllowablePosition reports whether p lies on the board.
func IsAllowablePosition(p Position) bool {
	return 1 <= p.Column && p.Column <= BoardSize && 1 <= p.Line && p.Line <= BoardSize
}

func (p Position) offset(d direction, steps int) Position {
	return Position{Column: p.Column + d.dc*steps, Line: p.Line + d.dl*steps}
}

// String renders p as "a1".."h8"; off-board positions render as "(c,l)".
func (p Position) String() string {
	if !IsAllowablePosition(p) {
		return fmt.Sprintf("(%d,%d)", p.Column, p.Line)
	}
	return fmt.Sprintf("%c%d", 'a'+rune(p.Column-1), p.Line)
}

type Piece struct {
	ID       int      `json:"id"`
	Crowned  bool     `json:"is_crowned"`
	Position Position `json:"position"`
}

// Move is an allowable move. Captured is nil for a simple move.
type Move struct {
	PieceID  int       `json:"checker_id"`
	Captured *Position `json:"captured_piece_position"`
	Next     Position  `json:"next_position"`
}

func (m Move) IsCapture() bool { return m.Captured != nil }

func (m Move) equal(o Move) bool {
	if m.PieceID != o.PieceID || m.Next != o.Next {
		return false
	}
	if m.Captured == nil || o.Captured == nil {
		return m.Captured == nil && o.Captured == nil
	}
	return *m.Captured == *o.Captured
}

type direction struct{ dc, dl int }

var kingDirections = []direction{{1, 1}, {-1, 1}, {-1, -1}, {1, -1}}

var forwardDirections = map[Color][]direction{
	White: {{1, 1}, {-1, 1}},
	Black: {{1, -1}, {-1, -1}},
}

func directionsFor(c Color, p Piece) []direction {
	if p.Crowned {
		return kingDirections
	}
	return forwardDirections[c]
}
