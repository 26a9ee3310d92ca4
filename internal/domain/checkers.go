package domain

import "time"

// CheckersGame is a finished game as stored by a result recorder.
type CheckersGame struct {
	ID           string
	Room         string
	WhiteName    string
	BlackName    string
	Result       string // white | black
	ResultMethod string
	Moves        []string
	PDN          string
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

// Involves reports whether name played either side.
func (g *CheckersGame) Involves(name string) bool {
	return g.WhiteName == name || g.BlackName == name
}

// WinnerName maps Result back to a player name.
func (g *CheckersGame) WinnerName() string {
	switch g.Result {
	case "white":
		return g.WhiteName
	case "black":
		return g.BlackName
	default:
		return ""
	}
}
