package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func load(t *testing.T, args ...string) (*AppConfig, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	v := New()
	if err := Bind(v, fs); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return Load(v)
}

func TestDefaults(t *testing.T) {
	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 || cfg.DefaultRoom != "Main" || cfg.Bind != "0.0.0.0" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.HeartbeatInterval != 5*time.Second || cfg.ClientTimeout != 10*time.Second || cfg.InviteTimeout != 30*time.Second {
		t.Fatalf("unexpected timing defaults %+v", cfg)
	}
	if !cfg.Arbiter || cfg.ChatLogURL != "memory://" || cfg.Scheme() != "http" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestEnvOverridesDefault(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHATLOG_URL", "redis://localhost:6379/0")
	t.Setenv("INVITE_TIMEOUT", "45s")
	cfg, err := load(t)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 9090 || cfg.InviteTimeout != 45*time.Second || cfg.ChatLogURL != "redis://localhost:6379/0" {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestFlagBeatsEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg, err := load(t, "--port", "7070", "--default_room", "Lobby")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 7070 || cfg.DefaultRoom != "Lobby" {
		t.Fatalf("flags not applied: %+v", cfg)
	}
	if cfg.Addr() != "0.0.0.0:7070" {
		t.Fatalf("addr %s", cfg.Addr())
	}
}

func TestValidation(t *testing.T) {
	cases := map[string][]string{
		"port":     {"--port", "70000"},
		"timeouts": {"--client-timeout", "1s", "--heartbeat-interval", "5s"},
		"scheme":   {"--chatlog-url", "mongodb://x"},
		"tls":      {"--tls-cert", "cert.pem"},
		"buffer":   {"--send-buffer", "0"},
	}
	for name, args := range cases {
		if _, err := load(t, args...); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestChatLogScheme(t *testing.T) {
	for raw, want := range map[string]string{
		"":                      "memory",
		"memory://":             "memory",
		"postgresql://u@h/db":   "postgres",
		"sqlite:///tmp/chat.db": "sqlite",
		"rediss://cache:6380/1": "rediss",
	} {
		got, err := ChatLogScheme(raw)
		if err != nil || got != want {
			t.Fatalf("ChatLogScheme(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ChatLogScheme("ftp://x"); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Fatalf("expected unsupported scheme error, got %v", err)
	}
}
