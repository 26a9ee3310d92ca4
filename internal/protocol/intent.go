// Package protocol decodes inbound relay envelopes into typed intents.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/park285/checkers-relay/internal/checkers"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

var (
	ErrMalformed     = errors.New("malformed envelope")
	ErrUnknownAction = errors.New("unknown action")
	ErrEmptyPayload  = errors.New("empty payload")
	ErrInvalidMove   = errors.New("invalid move payload")
)

// MaxNameLength bounds room and display names.
const MaxNameLength = 64

// Intent is one decoded client request. The concrete types below are the
// closed set; handlers switch over them.
type Intent interface {
	isIntent()
}

type JoinRoom struct{ Room string }

type SetName struct{ Name string }

// RequestOnlineUsers with an empty Room means the sender's current room.
type RequestOnlineUsers struct{ Room string }

type SendMessage struct{ Text string }

// Invite carries one of the three invitation actions addressed to To.
type Invite struct {
	Action relaydto.Action
	To     string
}

// SendMove keeps the raw payload for verbatim forwarding next to the parsed form.
type SendMove struct {
	Raw  string
	Data checkers.GameData
}

type LeaveGame struct{}

// Unknown is any envelope that could not be decoded. Data is what the client
// sent as payload (or the whole frame when it was not JSON).
type Unknown struct {
	Action string
	Data   string
	Err    error
}

func (JoinRoom) isIntent()           {}
func (SetName) isIntent()            {}
func (RequestOnlineUsers) isIntent() {}
func (SendMessage) isIntent()        {}
func (Invite) isIntent()             {}
func (SendMove) isIntent()           {}
func (LeaveGame) isIntent()          {}
func (Unknown) isIntent()            {}

var validate = validator.New()

// Decode parses one text frame. It never fails: anything it cannot make sense
// of comes back as Unknown.
func Decode(raw []byte) Intent {
	var env relaydto.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Unknown{Data: strings.TrimSpace(string(raw)), Err: fmt.Errorf("%w: %v", ErrMalformed, err)}
	}
	action := relaydto.Action(strings.TrimSpace(string(env.Action)))
	data := strings.TrimSpace(env.Data)
	unknown := func(err error) Intent {
		return Unknown{Action: string(action), Data: data, Err: err}
	}

	switch action {
	case relaydto.ActionJoinToRoom:
		if err := checkName(data); err != nil {
			return unknown(err)
		}
		return JoinRoom{Room: data}
	case relaydto.ActionSetName:
		if err := checkName(data); err != nil {
			return unknown(err)
		}
		return SetName{Name: data}
	case relaydto.ActionRequestOnlineUsers:
		if len(data) > MaxNameLength {
			return unknown(fmt.Errorf("%w: room name too long", ErrMalformed))
		}
		return RequestOnlineUsers{Room: data}
	case relaydto.ActionSendMessage:
		if data == "" {
			return unknown(ErrEmptyPayload)
		}
		return SendMessage{Text: data}
	case relaydto.ActionInvitation, relaydto.ActionAcceptInvitation, relaydto.ActionDeclineInvitation:
		if err := checkName(data); err != nil {
			return unknown(err)
		}
		return Invite{Action: action, To: data}
	case relaydto.ActionSendCheckerPieceMove:
		gd, err := DecodeGameData(data)
		if err != nil {
			return unknown(err)
		}
		return SendMove{Raw: data, Data: gd}
	case relaydto.ActionLeaveGame:
		return LeaveGame{}
	default:
		return unknown(fmt.Errorf("%w: %q", ErrUnknownAction, action))
	}
}

// DecodeGameData parses and validates a move payload.
func DecodeGameData(data string) (checkers.GameData, error) {
	var gd checkers.GameData
	if data == "" {
		return gd, ErrEmptyPayload
	}
	if err := json.Unmarshal([]byte(data), &gd); err != nil {
		return gd, fmt.Errorf("%w: %v", ErrInvalidMove, err)
	}
	if err := validate.Struct(gd); err != nil {
		return gd, fmt.Errorf("%w: %s", ErrInvalidMove, describe(err))
	}
	return gd, nil
}

// EncodeGameData is the inverse of DecodeGameData.
func EncodeGameData(gd checkers.GameData) (string, error) {
	b, err := json.Marshal(gd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnknownReply is the diagnostic envelope sent back for an Unknown intent.
func UnknownReply(u Unknown) relaydto.Envelope {
	return relaydto.NewEnvelope(relaydto.ActionUnknown, fmt.Sprintf("!!! unknown command: %q", u.Data))
}

func checkName(s string) error {
	if err := validate.Var(s, fmt.Sprintf("required,max=%d", MaxNameLength)); err != nil {
		if s == "" {
			return ErrEmptyPayload
		}
		return fmt.Errorf("%w: %s", ErrMalformed, describe(err))
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if field == "" {
			field = "value"
		}
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
