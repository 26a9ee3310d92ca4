package relaydto

// Action names the intent carried by an Envelope.
type Action string

const (
	ActionJoinToRoom               Action = "join_to_room"
	ActionSetName                  Action = "set_name"
	ActionRequestOnlineUsers       Action = "request_online_users"
	ActionResponseOnlineUsers      Action = "response_online_users"
	ActionSendMessage              Action = "send_message"
	ActionReceivedMessage          Action = "received_message"
	ActionInvitation               Action = "invitation"
	ActionAcceptInvitation         Action = "accept_invitation"
	ActionDeclineInvitation        Action = "decline_invitation"
	ActionConnect                  Action = "connect"
	ActionDisconnect               Action = "disconnect"
	ActionSendCheckerPieceMove     Action = "send_checker_piece_move"
	ActionReceivedCheckerPieceMove Action = "received_checker_piece_move"
	ActionLeaveGame                Action = "leave_game"
	ActionReceivedLeaveGame        Action = "received_leave_game"
	ActionMoveRejected             Action = "move_rejected"
	ActionGameOver                 Action = "game_over"
	ActionUnknown                  Action = "unknown"
)

// IsInvitation reports whether a is one of the three invitation actions.
func (a Action) IsInvitation() bool {
	switch a {
	case ActionInvitation, ActionAcceptInvitation, ActionDeclineInvitation:
		return true
	default:
		return false
	}
}

// Envelope is the wire frame in both directions. Data is often itself JSON.
type Envelope struct {
	Action Action `json:"action"`
	Data   string `json:"data"`
}

func NewEnvelope(action Action, data string) Envelope {
	return Envelope{Action: action, Data: data}
}
