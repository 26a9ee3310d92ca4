package relaydto

// RoomInfo summarises one relay room.
type RoomInfo struct {
	Name      string   `json:"name"`
	Members   int      `json:"members"`
	UserNames []string `json:"user_names"`
}
