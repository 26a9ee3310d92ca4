// Package relaybuilder wires a configured relay: stores, arbiter, hub and
// HTTP server.
package relaybuilder

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/chatlog"
	"github.com/park285/checkers-relay/internal/config"
	"github.com/park285/checkers-relay/internal/identity"
	"github.com/park285/checkers-relay/internal/match"
	"github.com/park285/checkers-relay/internal/msgcat"
	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/internal/relay"
	"github.com/park285/checkers-relay/internal/server"
)

type Deps struct {
	Hub     *relay.Hub
	Server  *server.Server
	Chat    chatlog.Store
	Matches *match.Manager
}

func New(ctx context.Context, cfg *config.AppConfig) (*Deps, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}

	notices, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load notices: %w", err)
	}

	chat, err := chatlog.Open(ctx, cfg.ChatLogURL, cfg.ChatLogLimit)
	if err != nil {
		return nil, fmt.Errorf("open chat log: %w", err)
	}

	// 결과 저장소: DATABASE_URL 없으면 메모리
	var rec match.Recorder
	if cfg.DatabaseURL != "" {
		pg, err := match.NewPostgresRecorder(ctx, cfg.DatabaseURL)
		if err != nil {
			_ = chat.Close()
			return nil, fmt.Errorf("open result store: %w", err)
		}
		rec = pg
	}
	matches := match.NewManager(rec)

	verifier := identity.New(cfg.AuthJWTSecret)

	d := &Deps{Chat: chat, Matches: matches}
	d.Hub = relay.New(relay.Options{
		DefaultRoom:   cfg.DefaultRoom,
		InviteTimeout: cfg.InviteTimeout,
		Notices:       notices,
		OnAccept: func(room, inviter, invitee string) {
			if cfg.Arbiter {
				d.Server.StartMatch(room, inviter, invitee)
			}
		},
	})
	d.Server = server.New(server.Options{
		Bind:              cfg.Bind,
		Port:              cfg.Port,
		HeartbeatInterval: cfg.HeartbeatInterval,
		ClientTimeout:     cfg.ClientTimeout,
		SendBuffer:        cfg.SendBuffer,
		ChatLogLimit:      cfg.ChatLogLimit,
		Arbiter:           cfg.Arbiter,
		PublicURL:         cfg.PublicURL,
		TLSCert:           cfg.TLSCert,
		TLSKey:            cfg.TLSKey,
	}, server.Deps{
		Hub:      d.Hub,
		Chat:     chat,
		Matches:  matches,
		Verifier: verifier,
		Notices:  notices,
	})

	obslog.L().Info("relay_built",
		zap.String("chatlog", mustScheme(cfg.ChatLogURL)),
		zap.Bool("results_db", cfg.DatabaseURL != ""),
		zap.Bool("arbiter", cfg.Arbiter),
		zap.Bool("verified_names", verifier.Enabled()),
	)
	return d, nil
}

// Run serves until ctx is cancelled.
func (d *Deps) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hubDone := make(chan error, 1)
	go func() { hubDone <- d.Hub.Run(ctx) }()

	err := d.Server.ListenAndServe(ctx)
	cancel()
	<-hubDone
	return err
}

func (d *Deps) Close() error {
	return errors.Join(d.Chat.Close(), d.Matches.Close())
}

func mustScheme(raw string) string {
	s, err := config.ChatLogScheme(raw)
	if err != nil {
		return "invalid"
	}
	return s
}
