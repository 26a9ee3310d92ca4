// relaycheck is an interactive client for a running checkers relay.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/pflag"

	"github.com/park285/checkers-relay/internal/relayclient"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

func main() {
	baseURL := pflag.String("url", envOr("RELAY_URL", "http://localhost:8080"), "relay base URL (env: RELAY_URL)")
	name := pflag.String("name", os.Getenv("RELAY_NAME"), "display name sent on connect (env: RELAY_NAME)")
	room := pflag.String("room", "", "room joined on connect")
	token := pflag.String("token", os.Getenv("RELAY_TOKEN"), "HS256 token for a verified name (env: RELAY_TOKEN)")
	pflag.Parse()

	if err := run(strings.TrimRight(*baseURL, "/"), *name, *room, *token); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(baseURL, name, room, token string) error {
	headers := func() map[string]string {
		if token == "" {
			return nil
		}
		return map[string]string{"Authorization": "Bearer " + token}
	}
	client := relayclient.NewClient(baseURL, relayclient.WithHeaderProvider(headers), relayclient.WithTimeout(8*time.Second))

	wsURL, err := toWebSocketURL(baseURL)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "relay> ",
		HistoryFile:     ".relaycheck_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	out := rl.Stdout()

	s := &session{name: name, room: room}
	ws := relayclient.NewWebSocket(wsURL, 5)
	ws.SetHeaderProvider(headers)
	ws.OnMessage(func(env relaydto.Envelope) {
		fmt.Fprintln(out, describe(env))
	})
	ws.OnStateChange(func(state relayclient.State) {
		fmt.Fprintf(out, "-- %s\n", state)
		if state == relayclient.StateConnected {
			// every connection is a new relay session
			go restore(ws, s)
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	err = ws.Connect(ctx)
	cancel()
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer ccancel()
		_ = ws.Close(cctx)
	}()

	fmt.Fprintf(out, "connected to %s, /help for commands\n", baseURL)
	for {
		rl.SetPrompt(prompt(s))
		line, err := rl.Readline()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		cmd, err := parseLine(s, line)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		if cmd.env != nil {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := ws.Send(sctx, *cmd.env); err != nil {
				fmt.Fprintln(out, "send:", err)
			}
			scancel()
			continue
		}
		if cmd.local == "quit" {
			return nil
		}
		runLocal(client, s, cmd, out)
	}
}

func restore(ws *relayclient.WebSocket, s *session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.name != "" {
		_ = ws.Send(ctx, relaydto.NewEnvelope(relaydto.ActionSetName, s.name))
	}
	if s.room != "" {
		_ = ws.Send(ctx, relaydto.NewEnvelope(relaydto.ActionJoinToRoom, s.room))
	}
}

func runLocal(client *relayclient.Client, s *session, cmd command, out io.Writer) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cmd.local {
	case "help":
		fmt.Fprintln(out, helpText)
	case "color":
		fmt.Fprintf(out, "playing %s\n", s.color)
	case "rooms":
		rooms, err := client.Rooms(ctx)
		if err != nil {
			fmt.Fprintln(out, "rooms:", err)
			return
		}
		for _, r := range rooms {
			fmt.Fprintf(out, "  %-16s %d member(s) %s\n", r.Name, r.Members, strings.Join(r.UserNames, ", "))
		}
	case "log":
		room := s.room
		if len(cmd.args) > 0 {
			room = cmd.args[0]
		}
		if room == "" {
			room = "Main"
		}
		entries, err := client.ChatLog(ctx, room, 20)
		if err != nil {
			fmt.Fprintln(out, "log:", err)
			return
		}
		for _, e := range entries {
			fmt.Fprintf(out, "  %s %s: %s\n", e.CreatedAt.Format("15:04:05"), e.UserName, e.Message)
		}
	case "health":
		if err := client.Health(ctx); err != nil {
			fmt.Fprintln(out, "health:", err)
			return
		}
		fmt.Fprintln(out, "  ok")
	case "board":
		player := s.name
		if len(cmd.args) > 0 {
			player = cmd.args[0]
		}
		png, err := client.BoardPNG(ctx, player)
		if err != nil {
			fmt.Fprintln(out, "board:", err)
			return
		}
		file := "board-" + player + ".png"
		if err := os.WriteFile(file, png, 0o644); err != nil {
			fmt.Fprintln(out, "board:", err)
			return
		}
		fmt.Fprintf(out, "  saved %s (%d bytes)\n", file, len(png))
	case "history":
		player := s.name
		if len(cmd.args) > 0 {
			player = cmd.args[0]
		}
		games, err := client.History(ctx, player, 10)
		if err != nil {
			fmt.Fprintln(out, "history:", err)
			return
		}
		for _, g := range games {
			fmt.Fprintf(out, "  %s %s vs %s: %s (%s) %d moves\n",
				g.EndedAt.Format("2006-01-02 15:04"), g.WhiteName, g.BlackName, g.Result, g.ResultMethod, len(g.Moves))
		}
	}
}

func prompt(s *session) string {
	parts := []string{"relay"}
	if s.name != "" {
		parts = append(parts, s.name)
	}
	if s.room != "" {
		parts = append(parts, "@"+s.room)
	}
	return strings.Join(parts, " ") + "> "
}

func toWebSocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func envOr(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
