package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Bind string
	Port int

	DefaultRoom       string
	HeartbeatInterval time.Duration
	ClientTimeout     time.Duration
	InviteTimeout     time.Duration
	SendBuffer        int

	ChatLogURL   string
	ChatLogLimit int
	DatabaseURL  string

	AuthJWTSecret string
	Arbiter       bool
	PublicURL     string
	MessagesDir   string

	TLSCert string
	TLSKey  string
}

// Flag names double as viper keys; env names are the upper-cased key with
// '-' replaced by '_' (PORT, CHATLOG_URL, ...).
const (
	KeyBind              = "bind"
	KeyPort              = "port"
	KeyDefaultRoom       = "default-room"
	KeyHeartbeatInterval = "heartbeat-interval"
	KeyClientTimeout     = "client-timeout"
	KeyInviteTimeout     = "invite-timeout"
	KeySendBuffer        = "send-buffer"
	KeyChatLogURL        = "chatlog-url"
	KeyChatLogLimit      = "chatlog-limit"
	KeyDatabaseURL       = "database-url"
	KeyAuthJWTSecret     = "auth-jwt-secret"
	KeyArbiter           = "arbiter"
	KeyPublicURL         = "public-url"
	KeyMessagesDir       = "messages-dir"
	KeyTLSCert           = "tls-cert"
	KeyTLSKey            = "tls-key"
)

// New returns a viper instance reading unprefixed env vars.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags adds every setting to fs with its default.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringP(KeyBind, "b", "0.0.0.0", "address to bind to (env: BIND)")
	fs.IntP(KeyPort, "p", 8080, "port to listen on (env: PORT)")
	fs.String(KeyDefaultRoom, "Main", "room every session starts in (env: DEFAULT_ROOM)")
	fs.Duration(KeyHeartbeatInterval, 5*time.Second, "server ping period (env: HEARTBEAT_INTERVAL)")
	fs.Duration(KeyClientTimeout, 10*time.Second, "disconnect when no pong arrives within this window (env: CLIENT_TIMEOUT)")
	fs.Duration(KeyInviteTimeout, 30*time.Second, "unanswered invitations expire after this (env: INVITE_TIMEOUT)")
	fs.Int(KeySendBuffer, 64, "per-session outbound buffer (env: SEND_BUFFER)")
	fs.String(KeyChatLogURL, "memory://", "chat log store: memory://, redis://, postgres://, sqlite://path (env: CHATLOG_URL)")
	fs.Int(KeyChatLogLimit, 200, "max chat entries kept and returned per room (env: CHATLOG_LIMIT)")
	fs.String(KeyDatabaseURL, "", "postgres DSN for finished game results; memory when empty (env: DATABASE_URL)")
	fs.String(KeyAuthJWTSecret, "", "HS256 secret; enables verified display names (env: AUTH_JWT_SECRET)")
	fs.Bool(KeyArbiter, true, "validate moves on the server (env: ARBITER)")
	fs.String(KeyPublicURL, "", "base URL used in room share codes (env: PUBLIC_URL)")
	fs.String(KeyMessagesDir, "", "directory of yaml files overriding notice texts (env: MESSAGES_DIR)")
	fs.String(KeyTLSCert, "", "path to tls certificate (env: TLS_CERT)")
	fs.String(KeyTLSKey, "", "path to tls keyfile (env: TLS_KEY)")
}

// Bind ties every flag in fs to v and its env var. A set env var wins over a
// flag default; an explicit flag wins over both.
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, err)
		}
		if err := v.BindEnv(f.Name); err != nil {
			errs = append(errs, err)
		}
	})
	return errors.Join(errs...)
}

// Load reads the bound values and validates them.
func Load(v *viper.Viper) (*AppConfig, error) {
	cfg := &AppConfig{
		Bind:              strings.TrimSpace(v.GetString(KeyBind)),
		Port:              v.GetInt(KeyPort),
		DefaultRoom:       strings.TrimSpace(v.GetString(KeyDefaultRoom)),
		HeartbeatInterval: v.GetDuration(KeyHeartbeatInterval),
		ClientTimeout:     v.GetDuration(KeyClientTimeout),
		InviteTimeout:     v.GetDuration(KeyInviteTimeout),
		SendBuffer:        v.GetInt(KeySendBuffer),
		ChatLogURL:        strings.TrimSpace(v.GetString(KeyChatLogURL)),
		ChatLogLimit:      v.GetInt(KeyChatLogLimit),
		DatabaseURL:       strings.TrimSpace(v.GetString(KeyDatabaseURL)),
		AuthJWTSecret:     v.GetString(KeyAuthJWTSecret),
		Arbiter:           v.GetBool(KeyArbiter),
		PublicURL:         strings.TrimRight(strings.TrimSpace(v.GetString(KeyPublicURL)), "/"),
		MessagesDir:       strings.TrimSpace(v.GetString(KeyMessagesDir)),
		TLSCert:           strings.TrimSpace(v.GetString(KeyTLSCert)),
		TLSKey:            strings.TrimSpace(v.GetString(KeyTLSKey)),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.DefaultRoom == "" {
		return errors.New("default room is required")
	}
	if c.HeartbeatInterval <= 0 || c.ClientTimeout <= 0 || c.InviteTimeout <= 0 {
		return errors.New("heartbeat-interval, client-timeout and invite-timeout must be positive")
	}
	if c.ClientTimeout <= c.HeartbeatInterval {
		return fmt.Errorf("client-timeout (%s) must exceed heartbeat-interval (%s)", c.ClientTimeout, c.HeartbeatInterval)
	}
	if c.SendBuffer < 1 {
		return fmt.Errorf("send-buffer must be at least 1: %d", c.SendBuffer)
	}
	if c.ChatLogLimit < 1 {
		return fmt.Errorf("chatlog-limit must be at least 1: %d", c.ChatLogLimit)
	}
	if _, err := ChatLogScheme(c.ChatLogURL); err != nil {
		return err
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	return nil
}

// ChatLogScheme returns the store kind named by raw.
func ChatLogScheme(raw string) (string, error) {
	if raw == "" {
		return "memory", nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse chatlog-url: %w", err)
	}
	switch s := strings.ToLower(u.Scheme); s {
	case "memory", "redis", "rediss", "sqlite":
		return s, nil
	case "postgres", "postgresql":
		return "postgres", nil
	default:
		return "", fmt.Errorf("unsupported chatlog-url scheme %q", u.Scheme)
	}
}

func (c *AppConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Bind, c.Port) }

func (c *AppConfig) Scheme() string {
	if c.TLSCert != "" && c.TLSKey != "" {
		return "https"
	}
	return "http"
}
