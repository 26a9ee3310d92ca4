package relay

import (
	"github.com/park285/checkers-relay/internal/invite"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

// op is one request to the hub goroutine.
type op interface{ isOp() }

type connectOp struct {
	out   chan<- relaydto.Envelope
	reply chan SessionID
}

type disconnectOp struct{ id SessionID }

type joinOp struct {
	id   SessionID
	room string
}

type setNameOp struct {
	id   SessionID
	name string
}

type claimNameOp struct {
	id    SessionID
	name  string
	reply chan error
}

type listOp struct {
	id    SessionID
	room  string
	reply chan []string
}

type chatOp struct {
	id   SessionID
	room string
	text string
}

type inviteOp struct {
	id     SessionID
	room   string
	to     string
	action relaydto.Action
}

type moveOp struct {
	id      SessionID
	room    string
	payload string
}

type announceOp struct {
	room   string
	env    relaydto.Envelope
	except SessionID
}

type roomsOp struct{ reply chan []relaydto.RoomInfo }

type inviteExpiredOp struct {
	key invite.Key
	seq uint64
}

func (connectOp) isOp()       {}
func (disconnectOp) isOp()    {}
func (joinOp) isOp()          {}
func (setNameOp) isOp()       {}
func (claimNameOp) isOp()     {}
func (listOp) isOp()          {}
func (chatOp) isOp()          {}
func (inviteOp) isOp()        {}
func (moveOp) isOp()          {}
func (announceOp) isOp()      {}
func (roomsOp) isOp()         {}
func (inviteExpiredOp) isOp() {}
