// Package server exposes the relay over HTTP: the /ws session endpoint plus a
// few read-only REST routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/chatlog"
	"github.com/park285/checkers-relay/internal/identity"
	"github.com/park285/checkers-relay/internal/match"
	"github.com/park285/checkers-relay/internal/msgcat"
	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/internal/relay"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

const (
	DefaultHeartbeat     = 5 * time.Second
	DefaultClientTimeout = 10 * time.Second
	DefaultSendBuffer    = 64
	readLimit            = 32 << 10
	writeTimeout         = 5 * time.Second
	storeTimeout         = 3 * time.Second
	timeout              = 10 * time.Second
)

type Options struct {
	Bind string
	Port int

	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	SendBuffer        int
	ChatLogLimit      int

	// Arbiter makes the server replay every move before forwarding it.
	Arbiter   bool
	PublicURL string

	TLSCert string
	TLSKey  string
}

// Deps are the collaborators a Server routes to. Chat, Matches and Verifier
// may be nil.
type Deps struct {
	Hub      *relay.Hub
	Chat     chatlog.Store
	Matches  *match.Manager
	Verifier *identity.Verifier
	Notices  *msgcat.Catalog
}

type Server struct {
	opts Options
	deps Deps
	mux  *httprouter.Router
}

func New(opts Options, deps Deps) *Server {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeat
	}
	if opts.ClientTimeout <= 0 {
		opts.ClientTimeout = DefaultClientTimeout
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}
	if opts.ChatLogLimit <= 0 {
		opts.ChatLogLimit = chatlog.DefaultLimit
	}
	if deps.Notices == nil {
		deps.Notices = msgcat.Default()
	}
	if deps.Matches == nil {
		deps.Matches = match.NewManager(nil)
	}
	s := &Server{opts: opts, deps: deps}
	s.mux = s.routes()
	return s
}

func (s *Server) routes() *httprouter.Router {
	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		obslog.L().Error("http_panic", zap.String("path", r.URL.Path), zap.Any("panic", v))
		writeError(w, http.StatusInternalServerError, relaydto.ErrCodeInternal, "internal error", "")
	}

	mux.GET("/ws", s.serveWS)
	mux.GET("/healthz", s.serveHealth)
	mux.GET("/rooms", s.serveRooms)
	mux.GET("/rooms/:room/qr", s.serveRoomQR)
	mux.GET("/chat_log/:room", s.serveChatLog)
	mux.GET("/games/:player/board.png", s.serveBoard)
	mux.GET("/players/:player/games", s.serveHistory)
	return mux
}

func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              net.JoinHostPort(s.opts.Bind, strconv.Itoa(s.opts.Port)),
		Handler:           s.mux,
		IdleTimeout:       10 * time.Minute,
		ReadHeaderTimeout: timeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errs := make(chan error, 1)
	go func() {
		var err error
		if s.opts.TLSCert != "" && s.opts.TLSKey != "" {
			obslog.L().Info("server_listening", zap.String("addr", srv.Addr), zap.String("scheme", "https"))
			err = srv.ListenAndServeTLS(s.opts.TLSCert, s.opts.TLSKey)
		} else {
			obslog.L().Info("server_listening", zap.String("addr", srv.Addr), zap.String("scheme", "http"))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err, ok := <-errs:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		obslog.L().Warn("server_shutdown", zap.Error(err))
		return err
	}
	obslog.L().Info("server_stopped")
	return nil
}

// StartMatch is the relay's accept hook: the inviter plays White.
func (s *Server) StartMatch(room, inviter, invitee string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	snap, err := s.deps.Matches.Start(ctx, room, inviter, invitee)
	if err != nil {
		obslog.L().Info("match_not_started",
			zap.String("room", room),
			zap.String("white", inviter),
			zap.String("black", invitee),
			zap.Error(err),
		)
		s.deps.Hub.Announce(room, relaydto.NewEnvelope(relaydto.ActionReceivedMessage, s.notStartedText(inviter, invitee, err)), "")
		return
	}
	text := s.deps.Notices.Text(msgcat.KeyStarted, map[string]string{"White": snap.White, "Black": snap.Black},
		snap.White+" (White) vs "+snap.Black+" (Black)")
	s.deps.Hub.Announce(room, relaydto.NewEnvelope(relaydto.ActionReceivedMessage, text), "")
}

func (s *Server) notStartedText(white, black string, err error) string {
	if errors.Is(err, match.ErrPlayerBusy) {
		for _, name := range []string{white, black} {
			if _, busy := s.deps.Matches.ActiveByPlayer(name); busy {
				return s.deps.Notices.Text(msgcat.KeyBusy, map[string]string{"Name": name}, name+" is already playing")
			}
		}
	}
	return s.deps.Notices.Text(msgcat.KeyNotStarted, map[string]string{"White": white, "Black": black},
		white+" vs "+black+" could not start")
}

func (s *Server) announceGameOver(over *relaydto.GameOver) {
	if over == nil {
		return
	}
	raw, err := json.Marshal(over)
	if err != nil {
		obslog.L().Error("game_over_encode", zap.Error(err))
		return
	}
	s.deps.Hub.Announce(over.Room, relaydto.NewEnvelope(relaydto.ActionGameOver, string(raw)), "")
}
