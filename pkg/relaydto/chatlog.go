package relaydto

import "time"

type ChatEntry struct {
	Room      string    `json:"chat_room"`
	UserName  string    `json:"user_name"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
