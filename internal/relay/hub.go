// Package relay is the presence and message router. One goroutine (Hub.Run)
// owns every session and room; everything else talks to it through the
// methods below, which only post messages.
package relay

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/invite"
	"github.com/park285/checkers-relay/internal/msgcat"
	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

var (
	ErrClosed         = errors.New("relay hub is closed")
	ErrNameTaken      = errors.New("name is used by another session")
	ErrUnknownSession = errors.New("unknown relay session")
)

// SessionID is opaque and unguessable.
type SessionID string

const (
	DefaultRoom          = "Main"
	DefaultInviteTimeout = 30 * time.Second
	defaultInboxSize     = 256
)

type Options struct {
	DefaultRoom   string
	InviteTimeout time.Duration
	InboxSize     int
	Notices       *msgcat.Catalog
	// OnAccept runs on its own goroutine after an accept_invitation settled a
	// pending invitation.
	OnAccept func(room, inviter, invitee string)
}

type session struct {
	id   SessionID
	name string
	room string
	out  chan<- relaydto.Envelope
}

type notices struct {
	joined       string
	connected    string
	disconnected string
}

type Hub struct {
	opts    Options
	inbox   chan op
	done    chan struct{}
	notices notices
	dropped atomic.Uint64

	// owned by Run
	sessions map[SessionID]*session
	rooms    map[string]map[SessionID]struct{}
	invites  *invite.Tracker
	newID    func() string
}

func New(opts Options) *Hub {
	if opts.DefaultRoom == "" {
		opts.DefaultRoom = DefaultRoom
	}
	if opts.InviteTimeout <= 0 {
		opts.InviteTimeout = DefaultInviteTimeout
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = defaultInboxSize
	}
	h := &Hub{
		opts:     opts,
		inbox:    make(chan op, opts.InboxSize),
		done:     make(chan struct{}),
		sessions: make(map[SessionID]*session),
		rooms:    map[string]map[SessionID]struct{}{opts.DefaultRoom: {}},
		newID:    uuid.NewString,
	}
	h.notices = notices{
		joined:       opts.Notices.Text(msgcat.KeySomeoneJoined, nil, "Someone joined"),
		connected:    opts.Notices.Text(msgcat.KeySomeoneConnected, nil, "Someone connected"),
		disconnected: opts.Notices.Text(msgcat.KeySomeoneDisconnected, nil, "Someone disconnected"),
	}
	h.invites = invite.NewTracker(opts.InviteTimeout, func(key invite.Key, seq uint64) {
		h.post(inviteExpiredOp{key: key, seq: seq})
	})
	return h
}

func (h *Hub) DefaultRoom() string { return h.opts.DefaultRoom }

// Dropped counts envelopes discarded because a recipient's buffer was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

// Run processes operations in arrival order until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	obslog.L().Info("relay_started", zap.String("default_room", h.opts.DefaultRoom))
	defer func() {
		close(h.done)
		h.invites.Stop()
		obslog.L().Info("relay_stopped", zap.Int("sessions", len(h.sessions)))
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case o := <-h.inbox:
			h.handle(o)
		}
	}
}

func (h *Hub) handle(o op) {
	switch o := o.(type) {
	case connectOp:
		o.reply <- h.connect(o.out)
	case disconnectOp:
		h.disconnect(o.id)
	case joinOp:
		h.join(o.id, o.room)
	case setNameOp:
		h.setName(o.id, o.name)
	case claimNameOp:
		o.reply <- h.claimName(o.id, o.name)
	case listOp:
		o.reply <- h.listUserNames(o.id, o.room)
	case chatOp:
		h.chat(o.id, o.room, o.text)
	case inviteOp:
		h.invitation(o.id, o.room, o.to, o.action)
	case moveOp:
		h.move(o.id, o.room, o.payload)
	case announceOp:
		h.broadcast(o.room, o.env, o.except)
	case roomsOp:
		o.reply <- h.roomInfos()
	case inviteExpiredOp:
		h.inviteExpired(o.key, o.seq)
	default:
		obslog.L().Error("relay_unknown_op", zap.Any("op", o))
	}
}

func (h *Hub) post(o op) bool {
	select {
	case h.inbox <- o:
		return true
	case <-h.done:
		return false
	}
}

// Connect registers out and returns the new session id. The hub never closes
// out; the caller owns it.
func (h *Hub) Connect(ctx context.Context, out chan<- relaydto.Envelope) (SessionID, error) {
	reply := make(chan SessionID, 1)
	if err := h.request(ctx, connectOp{out: out, reply: reply}); err != nil {
		return "", err
	}
	select {
	case id := <-reply:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-h.done:
		return "", ErrClosed
	}
}

// ClaimName sets id's display name unless another session already uses it.
// SetName skips that check and is meant for token-verified names.
func (h *Hub) ClaimName(ctx context.Context, id SessionID, name string) error {
	reply := make(chan error, 1)
	if err := h.request(ctx, claimNameOp{id: id, name: name, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}

// ListUserNames returns the sorted names of the other named sessions in room.
func (h *Hub) ListUserNames(ctx context.Context, id SessionID, room string) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.request(ctx, listOp{id: id, room: room, reply: reply}); err != nil {
		return nil, err
	}
	select {
	case names := <-reply:
		return names, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrClosed
	}
}

// Rooms lists every room with its member count and names.
func (h *Hub) Rooms(ctx context.Context) ([]relaydto.RoomInfo, error) {
	reply := make(chan []relaydto.RoomInfo, 1)
	if err := h.request(ctx, roomsOp{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-h.done:
		return nil, ErrClosed
	}
}

func (h *Hub) request(ctx context.Context, o op) error {
	select {
	case h.inbox <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		return ErrClosed
	}
}

func (h *Hub) Disconnect(id SessionID)           { h.post(disconnectOp{id: id}) }
func (h *Hub) Join(id SessionID, room string)    { h.post(joinOp{id: id, room: room}) }
func (h *Hub) SetName(id SessionID, name string) { h.post(setNameOp{id: id, name: name}) }
func (h *Hub) SendChatMessage(id SessionID, room, text string) {
	h.post(chatOp{id: id, room: room, text: text})
}

// SendInvitation forwards action to the sessions in room named to.
func (h *Hub) SendInvitation(id SessionID, room, to string, action relaydto.Action) {
	h.post(inviteOp{id: id, room: room, to: to, action: action})
}

// SendGameMove forwards payload untouched to everyone else in room.
func (h *Hub) SendGameMove(id SessionID, room, payload string) {
	h.post(moveOp{id: id, room: room, payload: payload})
}

// Announce sends env to every member of room except the given session (pass
// "" to reach everyone).
func (h *Hub) Announce(room string, env relaydto.Envelope, except SessionID) {
	h.post(announceOp{room: room, env: env, except: except})
}

func (h *Hub) connect(out chan<- relaydto.Envelope) SessionID {
	// 새 세션은 아직 방에 없으므로 자기 자신에게는 가지 않는다
	h.broadcast(h.opts.DefaultRoom, relaydto.NewEnvelope(relaydto.ActionConnect, h.notices.joined), "")

	id := SessionID(h.newID())
	for _, taken := h.sessions[id]; taken; _, taken = h.sessions[id] {
		id = SessionID(h.newID())
	}
	h.sessions[id] = &session{id: id, room: h.opts.DefaultRoom, out: out}
	h.members(h.opts.DefaultRoom)[id] = struct{}{}
	obslog.L().Info("relay_connect", zap.String("session_id", string(id)), zap.Int("sessions", len(h.sessions)))
	return id
}

func (h *Hub) disconnect(id SessionID) {
	s, ok := h.sessions[id]
	if !ok {
		return
	}
	delete(h.sessions, id)
	left := h.leaveAll(id)
	notice := h.departureNotice(s)
	for _, room := range left {
		h.broadcast(room, relaydto.NewEnvelope(relaydto.ActionDisconnect, notice), "")
		h.collect(room)
	}
	if s.name != "" {
		for _, inv := range h.invites.DropUser(s.name) {
			obslog.L().Debug("relay_invite_dropped", zap.String("from", inv.Key.From), zap.String("to", inv.Key.To))
		}
	}
	obslog.L().Info("relay_disconnect",
		zap.String("session_id", string(id)),
		zap.String("name", s.name),
		zap.Int("sessions", len(h.sessions)),
	)
}

func (h *Hub) join(id SessionID, room string) {
	s, ok := h.lookup(id, "join")
	if !ok {
		return
	}
	left := h.leaveAll(id)
	notice := h.departureNotice(s)
	for _, r := range left {
		h.broadcast(r, relaydto.NewEnvelope(relaydto.ActionDisconnect, notice), "")
		if r == room {
			continue
		}
		if s.name != "" {
			for _, inv := range h.invites.DropUserIn(r, s.name) {
				obslog.L().Debug("relay_invite_dropped", zap.String("room", r), zap.String("from", inv.Key.From), zap.String("to", inv.Key.To))
			}
		}
		h.collect(r)
	}
	s.room = room
	h.members(room)[id] = struct{}{}
	h.broadcast(room, relaydto.NewEnvelope(relaydto.ActionConnect, h.notices.connected), id)
	obslog.L().Info("relay_join", zap.String("session_id", string(id)), zap.String("name", s.name), zap.String("room", room))
}

func (h *Hub) setName(id SessionID, name string) {
	s, ok := h.lookup(id, "set_name")
	if !ok {
		return
	}
	if s.name != "" && s.name != name {
		h.invites.DropUser(s.name)
	}
	s.name = name
	obslog.L().Debug("relay_set_name", zap.String("session_id", string(id)), zap.String("name", name))
}

func (h *Hub) claimName(id SessionID, name string) error {
	if _, ok := h.lookup(id, "claim_name"); !ok {
		return ErrUnknownSession
	}
	for other, s := range h.sessions {
		if other != id && s.name == name {
			return ErrNameTaken
		}
	}
	h.setName(id, name)
	return nil
}

func (h *Hub) listUserNames(id SessionID, room string) []string {
	names := []string{}
	for member := range h.rooms[room] {
		if member == id {
			continue
		}
		if s := h.sessions[member]; s != nil && s.name != "" {
			names = append(names, s.name)
		}
	}
	sort.Strings(names)
	return names
}

func (h *Hub) chat(id SessionID, room, text string) {
	if _, ok := h.lookup(id, "send_message"); !ok {
		return
	}
	h.broadcast(room, relaydto.NewEnvelope(relaydto.ActionReceivedMessage, text), id)
}

func (h *Hub) move(id SessionID, room, payload string) {
	if _, ok := h.lookup(id, "send_checker_piece_move"); !ok {
		return
	}
	h.broadcast(room, relaydto.NewEnvelope(relaydto.ActionReceivedCheckerPieceMove, payload), id)
}

func (h *Hub) invitation(id SessionID, room, to string, action relaydto.Action) {
	s, ok := h.lookup(id, string(action))
	if !ok {
		return
	}
	if s.name == "" {
		obslog.L().Warn("relay_invite_unnamed", zap.String("session_id", string(id)), zap.String("action", string(action)))
		return
	}
	log := obslog.L().With(zap.String("room", room), zap.String("from", s.name), zap.String("to", to))

	switch action {
	case relaydto.ActionInvitation:
		if _, err := h.invites.Open(room, s.name, to); err != nil {
			log.Warn("relay_invite_rejected", zap.Error(err))
			return
		}
	case relaydto.ActionAcceptInvitation:
		if !h.present(room, s.name) || !h.present(room, to) {
			// a player moved away since the invitation was sent
			if _, err := h.invites.Resolve(room, to, s.name, false); err == nil {
				log.Info("relay_accept_stale")
			}
			break
		}
		if _, err := h.invites.Resolve(room, to, s.name, true); err != nil {
			// still forwarded; the inviter's client decides what to do with it
			log.Info("relay_accept_without_invite")
		} else if h.opts.OnAccept != nil {
			go h.opts.OnAccept(room, to, s.name)
		}
	case relaydto.ActionDeclineInvitation:
		// invitee declining, or the inviter withdrawing
		if _, err := h.invites.Resolve(room, to, s.name, false); err != nil {
			_, _ = h.invites.Resolve(room, s.name, to, false)
		}
	default:
		log.Warn("relay_invite_bad_action", zap.String("action", string(action)))
		return
	}

	env := relaydto.NewEnvelope(action, s.name)
	delivered := 0
	for member := range h.rooms[room] {
		if t := h.sessions[member]; t != nil && t.name == to {
			h.deliver(t, env)
			delivered++
		}
	}
	if delivered == 0 {
		log.Info("relay_invite_no_recipient", zap.String("action", string(action)))
	}
}

// inviteExpired tells the inviter the invitee never answered.
func (h *Hub) inviteExpired(key invite.Key, seq uint64) {
	inv, ok := h.invites.Expire(key, seq)
	if !ok {
		return
	}
	env := relaydto.NewEnvelope(relaydto.ActionDeclineInvitation, inv.Key.To)
	for member := range h.rooms[key.Room] {
		if s := h.sessions[member]; s != nil && s.name == key.From {
			h.deliver(s, env)
		}
	}
	obslog.L().Info("relay_invite_expired", zap.String("room", key.Room), zap.String("from", key.From), zap.String("to", key.To))
}

func (h *Hub) roomInfos() []relaydto.RoomInfo {
	out := make([]relaydto.RoomInfo, 0, len(h.rooms))
	for name, members := range h.rooms {
		info := relaydto.RoomInfo{Name: name, Members: len(members), UserNames: h.listUserNames("", name)}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (h *Hub) broadcast(room string, env relaydto.Envelope, except SessionID) {
	for member := range h.rooms[room] {
		if member == except {
			continue
		}
		if s := h.sessions[member]; s != nil {
			h.deliver(s, env)
		}
	}
}

// deliver never blocks; a full buffer drops the envelope for that recipient.
func (h *Hub) deliver(s *session, env relaydto.Envelope) {
	select {
	case s.out <- env:
	default:
		h.dropped.Add(1)
		obslog.L().Warn("relay_drop_slow",
			zap.String("session_id", string(s.id)),
			zap.String("name", s.name),
			zap.String("action", string(env.Action)),
		)
	}
}

func (h *Hub) lookup(id SessionID, what string) (*session, bool) {
	s, ok := h.sessions[id]
	if !ok {
		obslog.L().Warn("relay_unknown_session", zap.String("session_id", string(id)), zap.String("op", what))
	}
	return s, ok
}

func (h *Hub) members(room string) map[SessionID]struct{} {
	m, ok := h.rooms[room]
	if !ok {
		m = make(map[SessionID]struct{})
		h.rooms[room] = m
	}
	return m
}

// present reports whether a session named name is a member of room.
func (h *Hub) present(room, name string) bool {
	for member := range h.rooms[room] {
		if s := h.sessions[member]; s != nil && s.name == name {
			return true
		}
	}
	return false
}

func (h *Hub) leaveAll(id SessionID) []string {
	var left []string
	for name, members := range h.rooms {
		if _, ok := members[id]; ok {
			delete(members, id)
			left = append(left, name)
		}
	}
	sort.Strings(left)
	return left
}

// collect removes room once it is empty. The default room always exists.
func (h *Hub) collect(room string) {
	if room == h.opts.DefaultRoom {
		return
	}
	if members, ok := h.rooms[room]; ok && len(members) == 0 {
		delete(h.rooms, room)
		obslog.L().Debug("relay_room_collected", zap.String("room", room))
	}
}

func (h *Hub) departureNotice(s *session) string {
	if s.name != "" {
		return s.name
	}
	return h.notices.disconnected
}
