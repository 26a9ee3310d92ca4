// Package match is the authoritative side of a checkers game: it replays each
// relayed move against the rules engine before the relay forwards it.
package match

import (
	"errors"
	"time"

	"github.com/park285/checkers-relay/internal/checkers"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

var (
	ErrInvalidArgs  = errors.New("invalid arguments")
	ErrSamePlayer   = errors.New("cannot play against yourself")
	ErrPlayerBusy   = errors.New("player already has an active game")
	ErrNotInGame    = errors.New("player has no active game")
	ErrWrongColor   = errors.New("move claims the wrong color")
	ErrGameNotFound = errors.New("game not found")
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusFinished Status = "FINISHED"
)

// Finish reasons beyond the engine's own.
const (
	ReasonLeft         = "left"
	ReasonDisconnected = "disconnected"
	ReasonRoomChanged  = "room_changed"
)

// Match is one game between two named players in a room. Fields are guarded
// by the owning Manager.
type Match struct {
	ID          string
	Room        string
	White       string
	Black       string
	Status      Status
	Winner      string
	WinnerColor checkers.Color
	Reason      string
	CreatedAt   time.Time
	UpdatedAt   time.Time

	game     *checkers.Game
	lastFrom *checkers.Position
	lastTo   *checkers.Position
}

// ColorOf returns the side name plays in this match.
func (m *Match) ColorOf(name string) (checkers.Color, bool) {
	switch name {
	case m.White:
		return checkers.White, true
	case m.Black:
		return checkers.Black, true
	default:
		return "", false
	}
}

func (m *Match) Opponent(name string) string {
	if name == m.White {
		return m.Black
	}
	return m.White
}

func (m *Match) playerOf(c checkers.Color) string {
	if c == checkers.White {
		return m.White
	}
	return m.Black
}

// Snapshot is a read-only copy of a match for rendering and status calls.
type Snapshot struct {
	ID       string
	Room     string
	White    string
	Black    string
	Turn     checkers.Color
	Status   Status
	Board    checkers.Board
	History  []string
	LastFrom *checkers.Position
	LastTo   *checkers.Position
}

func (m *Match) snapshot() Snapshot {
	s := Snapshot{
		ID:      m.ID,
		Room:    m.Room,
		White:   m.White,
		Black:   m.Black,
		Turn:    m.game.Turn(),
		Status:  m.Status,
		Board:   m.game.Board(),
		History: m.game.History(),
	}
	if m.lastFrom != nil {
		from, to := *m.lastFrom, *m.lastTo
		s.LastFrom, s.LastTo = &from, &to
	}
	return s
}

// MoveResult is what the caller forwards after an accepted move.
type MoveResult struct {
	MatchID  string
	Room     string
	Opponent string
	// Data is the authoritative payload; IsOpponentStep is set while the mover
	// continues a capture sequence.
	Data     checkers.GameData
	Notation string
	GameOver *relaydto.GameOver
}
