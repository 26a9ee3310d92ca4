package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/checkers-relay/internal/checkers"
	"github.com/park285/checkers-relay/internal/identity"
	"github.com/park285/checkers-relay/internal/match"
	"github.com/park285/checkers-relay/internal/msgcat"
	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/internal/protocol"
	"github.com/park285/checkers-relay/internal/relay"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

// conn is one client session. Only the reader goroutine touches name and room.
type conn struct {
	s    *Server
	ws   *websocket.Conn
	id   relay.SessionID
	out  chan relaydto.Envelope
	log  *zap.Logger
	name string
	room string
	// verified names come from the token and cannot be changed with set_name
	verified bool
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var verifiedName string
	if s.deps.Verifier.Enabled() {
		name, err := s.deps.Verifier.FromRequest(r)
		switch {
		case err == nil:
			verifiedName = name
		case errors.Is(err, identity.ErrNoToken):
		default:
			obslog.L().Info("ws_auth_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
			writeError(w, http.StatusUnauthorized, relaydto.ErrCodeUnauthorized, "invalid or expired token", "")
			return
		}
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		obslog.L().Warn("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	defer ws.CloseNow()
	ws.SetReadLimit(readLimit)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := make(chan relaydto.Envelope, s.opts.SendBuffer)
	id, err := s.deps.Hub.Connect(ctx, out)
	if err != nil {
		obslog.L().Warn("ws_connect_failed", zap.Error(err))
		_ = ws.Close(websocket.StatusTryAgainLater, "relay unavailable")
		return
	}
	c := &conn{
		s:    s,
		ws:   ws,
		id:   id,
		out:  out,
		log:  obslog.L().With(zap.String("session_id", string(id))),
		room: s.deps.Hub.DefaultRoom(),
	}
	if verifiedName != "" {
		c.name, c.verified = verifiedName, true
		s.deps.Hub.SetName(id, verifiedName)
	}
	c.log.Info("ws_open", zap.String("remote", r.RemoteAddr), zap.Bool("verified", c.verified))

	go c.writeLoop(ctx, cancel)
	go c.heartbeat(ctx, cancel)
	c.readLoop(ctx)

	cancel()
	c.forfeit(match.ReasonDisconnected)
	s.deps.Hub.Disconnect(id)
	_ = ws.Close(websocket.StatusNormalClosure, "")
	c.log.Info("ws_closed", zap.String("name", c.name))
}

func (c *conn) readLoop(ctx context.Context) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
				c.log.Debug("ws_read_failed", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			c.log.Debug("ws_binary_ignored")
			continue
		}
		c.dispatch(ctx, protocol.Decode(data))
	}
}

func (c *conn) writeLoop(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.out:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, env)
			wcancel()
			if err != nil {
				c.log.Debug("ws_write_failed", zap.Error(err))
				return
			}
		}
	}
}

// heartbeat pings every interval; a pong missing for ClientTimeout ends the
// session.
func (c *conn) heartbeat(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(c.s.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pctx, pcancel := context.WithTimeout(ctx, c.s.opts.ClientTimeout)
			err := c.ws.Ping(pctx)
			pcancel()
			if err != nil {
				if ctx.Err() == nil {
					c.log.Info("ws_heartbeat_timeout", zap.String("name", c.name), zap.Error(err))
				}
				cancel()
				return
			}
		}
	}
}

// send queues an envelope for this session only.
func (c *conn) send(env relaydto.Envelope) {
	select {
	case c.out <- env:
	default:
		c.log.Warn("relay_drop_slow", zap.String("name", c.name), zap.String("action", string(env.Action)))
	}
}

func (c *conn) dispatch(ctx context.Context, in protocol.Intent) {
	switch in := in.(type) {
	case protocol.JoinRoom:
		c.join(in.Room)
	case protocol.SetName:
		c.setName(ctx, in.Name)
	case protocol.RequestOnlineUsers:
		c.onlineUsers(ctx, in.Room)
	case protocol.SendMessage:
		c.chat(ctx, in.Text)
	case protocol.Invite:
		c.s.deps.Hub.SendInvitation(c.id, c.room, in.To, in.Action)
	case protocol.SendMove:
		c.move(ctx, in)
	case protocol.LeaveGame:
		c.leaveGame()
	case protocol.Unknown:
		c.log.Info("ws_unknown_command", zap.String("action", in.Action), zap.Error(in.Err))
		reply := protocol.UnknownReply(in)
		reply.Data = c.s.deps.Notices.Text(msgcat.KeyUnknownCommand, map[string]string{"Data": in.Data}, reply.Data)
		c.send(reply)
	default:
		c.log.Error("ws_unhandled_intent", zap.Any("intent", in))
	}
}

func (c *conn) join(room string) {
	if room != c.room {
		c.forfeit(match.ReasonRoomChanged)
	}
	c.s.deps.Hub.Join(c.id, room)
	c.room = room
	c.send(relaydto.NewEnvelope(relaydto.ActionJoinToRoom, c.s.deps.Notices.Text(msgcat.KeyJoined, nil, "joined")))
}

func (c *conn) setName(ctx context.Context, name string) {
	if c.verified && name != c.name {
		c.log.Info("ws_set_name_ignored", zap.String("verified", c.name), zap.String("requested", name))
		return
	}
	if name == c.name {
		return
	}
	if err := c.s.deps.Hub.ClaimName(ctx, c.id, name); err != nil {
		c.log.Info("ws_set_name_rejected", zap.String("name", c.name), zap.String("requested", name), zap.Error(err))
		if errors.Is(err, relay.ErrNameTaken) {
			text := c.s.deps.Notices.Text(msgcat.KeyNameTaken, map[string]string{"Name": name}, "the name "+name+" is already taken")
			c.send(relaydto.NewEnvelope(relaydto.ActionReceivedMessage, text))
		}
		return
	}
	if c.name != "" {
		c.forfeit(match.ReasonLeft)
	}
	c.name = name
}

func (c *conn) onlineUsers(ctx context.Context, room string) {
	if room == "" {
		room = c.room
	}
	names, err := c.s.deps.Hub.ListUserNames(ctx, c.id, room)
	if err != nil {
		c.log.Debug("ws_list_users_failed", zap.Error(err))
		return
	}
	for _, name := range names {
		c.send(relaydto.NewEnvelope(relaydto.ActionResponseOnlineUsers, name))
	}
}

func (c *conn) chat(ctx context.Context, text string) {
	if c.name == "" {
		c.s.deps.Hub.SendChatMessage(c.id, c.room, text)
		return
	}
	line := c.s.deps.Notices.Text(msgcat.KeyChatLine, map[string]string{"Name": c.name, "Text": text}, c.name+": "+text)
	c.s.deps.Hub.SendChatMessage(c.id, c.room, line)

	if c.s.deps.Chat == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	if err := c.s.deps.Chat.Insert(sctx, c.room, c.name, text); err != nil {
		c.log.Warn("chatlog_insert_failed", zap.String("room", c.room), zap.Error(err))
	}
}

func (c *conn) move(ctx context.Context, in protocol.SendMove) {
	if !c.s.opts.Arbiter {
		c.s.deps.Hub.SendGameMove(c.id, c.room, in.Raw)
		return
	}
	if c.name == "" {
		c.reject(match.ErrNotInGame, in.Data)
		return
	}
	res, err := c.s.deps.Matches.Play(ctx, c.name, in.Data)
	if err != nil {
		c.log.Info("move_rejected", zap.String("name", c.name), zap.Error(err))
		c.reject(err, in.Data)
		return
	}
	payload, err := protocol.EncodeGameData(res.Data)
	if err != nil {
		c.log.Error("move_encode_failed", zap.Error(err))
		return
	}
	c.s.deps.Hub.SendGameMove(c.id, res.Room, payload)
	c.s.announceGameOver(res.GameOver)
}

func (c *conn) reject(err error, gd checkers.GameData) {
	c.send(relaydto.NewEnvelope(relaydto.ActionMoveRejected, c.rejectText(err, gd)))
}

func (c *conn) rejectText(err error, gd checkers.GameData) string {
	n := c.s.deps.Notices
	switch {
	case errors.Is(err, match.ErrNotInGame):
		return n.Text(msgcat.KeyNotInGame, nil, "you are not in a game")
	case errors.Is(err, checkers.ErrNotYourTurn):
		return n.Text(msgcat.KeyNotYourTurn, nil, "it is not your turn")
	case errors.Is(err, checkers.ErrGameOver):
		return n.Text(msgcat.KeyGameOver, nil, "the game is already over")
	case errors.Is(err, match.ErrWrongColor):
		snap, ok := c.s.deps.Matches.ActiveByPlayer(c.name)
		own := ""
		if ok {
			if snap.White == c.name {
				own = string(checkers.White)
			} else {
				own = string(checkers.Black)
			}
		}
		return n.Text(msgcat.KeyWrongColor, map[string]string{"Color": own, "Claimed": string(gd.OpponentPieceColor)}, err.Error())
	default:
		return n.Text(msgcat.KeyIllegalMove, map[string]string{
			"From": gd.PiecePreviousPosition.String(),
			"To":   gd.PieceNewPosition.String(),
		}, err.Error())
	}
}

func (c *conn) leaveGame() {
	if c.name == "" {
		return
	}
	c.s.deps.Hub.Announce(c.room, relaydto.NewEnvelope(relaydto.ActionReceivedLeaveGame, c.name), c.id)
	c.forfeit(match.ReasonLeft)
}

// forfeit ends c's active match, if any, and announces the result.
func (c *conn) forfeit(reason string) {
	if c.name == "" {
		return
	}
	if _, ok := c.s.deps.Matches.ActiveByPlayer(c.name); !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	over, err := c.s.deps.Matches.Forfeit(ctx, c.name, reason)
	if err != nil {
		if !errors.Is(err, match.ErrNotInGame) {
			c.log.Warn("match_forfeit_failed", zap.String("name", c.name), zap.Error(err))
		}
		return
	}
	c.s.announceGameOver(over)
}
