package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/config"
	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/internal/relaybuilder"
)

const releaseVersion = "0.1.0"

func newCmd() *cobra.Command {
	v := config.New()

	cmd := &cobra.Command{
		Use:           "checkers-server",
		Short:         "WebSocket relay for two-player checkers with chat, invitations and server-side move validation.",
		Args:          cobra.ExactArgs(0),
		Version:       releaseVersion,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	config.RegisterFlags(fs)
	cobra.CheckErr(config.Bind(v, fs))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("checkers-server v{{.Version}}\n")
	return cmd
}

func run(ctx context.Context, cfg *config.AppConfig) error {
	log := obslog.L()
	log.Info("checkers_server_start",
		zap.String("version", releaseVersion),
		zap.String("addr", cfg.Addr()),
		zap.String("scheme", cfg.Scheme()),
		zap.String("default_room", cfg.DefaultRoom),
	)

	deps, err := relaybuilder.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			log.Warn("checkers_server_close", zap.Error(err))
		}
	}()

	return deps.Run(ctx)
}

func main() {
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		os.Exit(1)
	}
	defer obslog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		obslog.L().Error("checkers_server_exit", zap.Error(err))
		obslog.Sync()
		stop()
		os.Exit(1)
	}
	obslog.L().Info("checkers_server_stopped")
}
