package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/checkers-relay/internal/checkers"
	"github.com/park285/checkers-relay/internal/protocol"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

var errUsage = errors.New("usage")

// command is one parsed input line. Exactly one of env or local is set.
type command struct {
	env   *relaydto.Envelope
	local string
	args  []string
}

// session is what the client remembers between lines.
type session struct {
	name  string
	room  string
	color checkers.Color
}

const helpText = `commands:
  /join <room>            /name <name>         /who [room]
  /invite <name>          /accept <name>       /decline <name>
  /color white|black      /move <from> <to>    /leave
  /log [room]             /rooms               /history [player]
  /board [player]         /health              /help
  /quit
anything else is sent as chat`

func parseLine(s *session, line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return send(relaydto.ActionSendMessage, line), nil
	}
	fields := strings.Fields(line)
	verb, args := strings.ToLower(fields[0]), fields[1:]

	switch verb {
	case "/join":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: /join <room>", errUsage)
		}
		s.room = args[0]
		return send(relaydto.ActionJoinToRoom, args[0]), nil
	case "/name":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: /name <name>", errUsage)
		}
		s.name = args[0]
		return send(relaydto.ActionSetName, args[0]), nil
	case "/who":
		room := ""
		if len(args) > 0 {
			room = args[0]
		}
		return send(relaydto.ActionRequestOnlineUsers, room), nil
	case "/invite", "/accept", "/decline":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: %s <name>", errUsage, verb)
		}
		action := map[string]relaydto.Action{
			"/invite":  relaydto.ActionInvitation,
			"/accept":  relaydto.ActionAcceptInvitation,
			"/decline": relaydto.ActionDeclineInvitation,
		}[verb]
		return send(action, args[0]), nil
	case "/color":
		if len(args) != 1 {
			return command{}, fmt.Errorf("%w: /color white|black", errUsage)
		}
		c, err := checkers.ParseColor(args[0])
		if err != nil {
			return command{}, err
		}
		s.color = c
		return command{local: "color"}, nil
	case "/move":
		gd, err := parseMove(s.color, args)
		if err != nil {
			return command{}, err
		}
		raw, err := protocol.EncodeGameData(gd)
		if err != nil {
			return command{}, err
		}
		return send(relaydto.ActionSendCheckerPieceMove, raw), nil
	case "/leave":
		return send(relaydto.ActionLeaveGame, ""), nil
	case "/log", "/rooms", "/history", "/board", "/health", "/help", "/quit":
		return command{local: strings.TrimPrefix(verb, "/"), args: args}, nil
	default:
		return command{}, fmt.Errorf("unknown command %s (try /help)", verb)
	}
}

func send(action relaydto.Action, data string) command {
	env := relaydto.NewEnvelope(action, data)
	return command{env: &env}
}

// parseMove accepts "c3 d4" or "3 3 4 4". A two-square diagonal jump captures
// the square in between.
func parseMove(color checkers.Color, args []string) (checkers.GameData, error) {
	var from, to checkers.Position
	var err error
	switch len(args) {
	case 2:
		if from, err = parseSquare(args[0]); err != nil {
			return checkers.GameData{}, err
		}
		if to, err = parseSquare(args[1]); err != nil {
			return checkers.GameData{}, err
		}
	case 4:
		n := make([]int, 4)
		for i, a := range args {
			if n[i], err = strconv.Atoi(a); err != nil {
				return checkers.GameData{}, fmt.Errorf("%w: /move <from> <to>", errUsage)
			}
		}
		from = checkers.Position{Column: n[0], Line: n[1]}
		to = checkers.Position{Column: n[2], Line: n[3]}
	default:
		return checkers.GameData{}, fmt.Errorf("%w: /move <from> <to>", errUsage)
	}
	if !checkers.IsAllowablePosition(from) || !checkers.IsAllowablePosition(to) {
		return checkers.GameData{}, fmt.Errorf("%w: %s or %s", checkers.ErrOffBoard, from, to)
	}
	if !color.Valid() {
		color = checkers.White
	}
	gd := checkers.GameData{OpponentPieceColor: color, PiecePreviousPosition: from, PieceNewPosition: to}
	if dc, dl := to.Column-from.Column, to.Line-from.Line; abs(dc) == 2 && abs(dl) == 2 {
		gd.CapturedPiecePosition = &checkers.Position{Column: from.Column + dc/2, Line: from.Line + dl/2}
	}
	return gd, nil
}

// parseSquare reads "a1".."h8".
func parseSquare(s string) (checkers.Position, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return checkers.Position{}, fmt.Errorf("bad square %q", s)
	}
	return checkers.Position{Column: int(s[0]-'a') + 1, Line: int(s[1] - '0')}, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// describe renders an inbound envelope for the terminal.
func describe(env relaydto.Envelope) string {
	switch env.Action {
	case relaydto.ActionReceivedMessage:
		return env.Data
	case relaydto.ActionResponseOnlineUsers:
		return "  online: " + env.Data
	case relaydto.ActionInvitation:
		return fmt.Sprintf("* %s invites you (/accept %s)", env.Data, env.Data)
	case relaydto.ActionAcceptInvitation:
		return fmt.Sprintf("* %s accepted", env.Data)
	case relaydto.ActionDeclineInvitation:
		return fmt.Sprintf("* %s declined", env.Data)
	case relaydto.ActionConnect:
		return "* " + env.Data
	case relaydto.ActionDisconnect:
		return "* left: " + env.Data
	case relaydto.ActionReceivedCheckerPieceMove:
		gd, err := protocol.DecodeGameData(env.Data)
		if err != nil {
			return "* move (unreadable): " + env.Data
		}
		line := fmt.Sprintf("* %s moved %s -> %s", gd.OpponentPieceColor, gd.PiecePreviousPosition, gd.PieceNewPosition)
		if gd.IsOpponentStep {
			line += " (continues)"
		}
		return line
	case relaydto.ActionReceivedLeaveGame:
		return "* " + env.Data + " left the game"
	case relaydto.ActionMoveRejected:
		return "! rejected: " + env.Data
	case relaydto.ActionGameOver:
		return "* game over: " + env.Data
	default:
		return fmt.Sprintf("[%s] %s", env.Action, env.Data)
	}
}
