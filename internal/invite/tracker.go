// Package invite tracks pending game invitations and their expiry timers.
package invite

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrInvalidArgs = staticErr("invalid invitation arguments")
	ErrSelfInvite  = staticErr("cannot invite yourself")
	ErrNoPending   = staticErr("no pending invitation")
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
	StatusDropped  Status = "DROPPED"
)

// Key identifies one inviter→invitee pair inside a room.
type Key struct {
	Room string
	From string
	To   string
}

type Invitation struct {
	ID        string
	Key       Key
	CreatedAt time.Time
	Status    Status

	seq   uint64
	timer *time.Timer
}

// Seq is the arming sequence number; an expiry carrying an older seq is stale.
func (inv *Invitation) Seq() uint64 { return inv.seq }

// ExpireFunc is called from the timer goroutine. It must not touch the
// Tracker; the owner posts (key, seq) back to its own goroutine and calls
// Tracker.Expire there.
type ExpireFunc func(key Key, seq uint64)

// Tracker is not safe for concurrent use. The relay goroutine owns it.
type Tracker struct {
	timeout  time.Duration
	onExpire ExpireFunc
	pending  map[Key]*Invitation
	seq      uint64
	now      func() time.Time
}

func NewTracker(timeout time.Duration, onExpire ExpireFunc) *Tracker {
	return &Tracker{
		timeout:  timeout,
		onExpire: onExpire,
		pending:  make(map[Key]*Invitation),
		now:      time.Now,
	}
}

// Open registers an invitation and arms its timer. Inviting the same person
// again in the same room re-arms the existing invitation.
func (t *Tracker) Open(room, from, to string) (*Invitation, error) {
	if room == "" || from == "" || to == "" {
		return nil, ErrInvalidArgs
	}
	if from == to {
		return nil, ErrSelfInvite
	}
	key := Key{Room: room, From: from, To: to}
	inv, ok := t.pending[key]
	if ok {
		inv.timer.Stop()
	} else {
		inv = &Invitation{ID: uuid.NewString(), Key: key, Status: StatusPending}
		t.pending[key] = inv
	}
	inv.CreatedAt = t.now()
	t.arm(inv)
	return inv, nil
}

func (t *Tracker) arm(inv *Invitation) {
	t.seq++
	inv.seq = t.seq
	key, seq := inv.Key, inv.seq
	inv.timer = time.AfterFunc(t.timeout, func() {
		if t.onExpire != nil {
			t.onExpire(key, seq)
		}
	})
}

// Resolve settles the invitation from inviter to invitee and stops its timer.
func (t *Tracker) Resolve(room, inviter, invitee string, accepted bool) (*Invitation, error) {
	key := Key{Room: room, From: inviter, To: invitee}
	inv, ok := t.pending[key]
	if !ok {
		return nil, ErrNoPending
	}
	if accepted {
		t.remove(inv, StatusAccepted)
	} else {
		t.remove(inv, StatusDeclined)
	}
	return inv, nil
}

// Expire removes the invitation when seq still matches. A timer that fired
// after Resolve or a re-arm returns false.
func (t *Tracker) Expire(key Key, seq uint64) (*Invitation, bool) {
	inv, ok := t.pending[key]
	if !ok || inv.seq != seq {
		return nil, false
	}
	t.remove(inv, StatusExpired)
	return inv, true
}

// DropUser cancels every invitation name sent or received.
func (t *Tracker) DropUser(name string) []*Invitation {
	var out []*Invitation
	for key, inv := range t.pending {
		if key.From == name || key.To == name {
			out = append(out, inv)
		}
	}
	for _, inv := range out {
		t.remove(inv, StatusDropped)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// DropUserIn cancels the invitations name sent or received in room.
func (t *Tracker) DropUserIn(room, name string) []*Invitation {
	var out []*Invitation
	for key, inv := range t.pending {
		if key.Room == room && (key.From == name || key.To == name) {
			out = append(out, inv)
		}
	}
	for _, inv := range out {
		t.remove(inv, StatusDropped)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

func (t *Tracker) Pending(room, from, to string) (*Invitation, bool) {
	inv, ok := t.pending[Key{Room: room, From: from, To: to}]
	return inv, ok
}

func (t *Tracker) Len() int { return len(t.pending) }

// Stop cancels all timers without notifying anyone.
func (t *Tracker) Stop() {
	for _, inv := range t.pending {
		t.remove(inv, StatusDropped)
	}
}

func (t *Tracker) remove(inv *Invitation, status Status) {
	if inv.timer != nil {
		inv.timer.Stop()
	}
	inv.Status = status
	delete(t.pending, inv.Key)
}
