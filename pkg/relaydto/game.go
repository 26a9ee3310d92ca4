package relaydto

import "time"

// GameOver is the data of a game_over envelope.
type GameOver struct {
	GameID      string `json:"game_id"`
	Room        string `json:"room"`
	Winner      string `json:"winner"`
	Loser       string `json:"loser"`
	WinnerColor string `json:"winner_color"`
	Reason      string `json:"reason"`
}

// GameRecord is a finished game as listed by the history endpoint.
type GameRecord struct {
	GameID       string    `json:"game_id"`
	Room         string    `json:"room"`
	WhiteName    string    `json:"white_name"`
	BlackName    string    `json:"black_name"`
	Result       string    `json:"result"`
	ResultMethod string    `json:"result_method"`
	Moves        []string  `json:"moves"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	DurationMS   int64     `json:"duration_ms"`
}
