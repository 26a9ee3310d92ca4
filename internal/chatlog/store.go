// Package chatlog persists room chat lines. The relay only appends and
// queries; storage is picked by URL scheme.
package chatlog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/park285/checkers-relay/internal/config"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

var (
	ErrInvalidEntry = errors.New("chat entry needs room, user and message")
	ErrClosed       = errors.New("chat log store is closed")
)

const DefaultLimit = 200

// Store is an append-only log per room. Query returns at most limit entries,
// oldest first.
type Store interface {
	Insert(ctx context.Context, room, user, text string) error
	Query(ctx context.Context, room string, limit int) ([]relaydto.ChatEntry, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open picks the backend from rawURL's scheme: memory://, redis://,
// rediss://, postgres://, sqlite://path.
func Open(ctx context.Context, rawURL string, limit int) (Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	scheme, err := config.ChatLogScheme(rawURL)
	if err != nil {
		return nil, err
	}
	switch scheme {
	case "memory":
		return NewMemoryStore(limit), nil
	case "redis", "rediss":
		return OpenRedis(ctx, rawURL, limit)
	case "postgres":
		return OpenPostgres(ctx, rawURL, limit)
	case "sqlite":
		return OpenSQLite(ctx, sqlitePath(rawURL), limit)
	default:
		return nil, fmt.Errorf("unsupported chat log scheme %q", scheme)
	}
}

func sqlitePath(rawURL string) string {
	p := strings.TrimPrefix(rawURL, "sqlite://")
	if p == "" {
		return "chatlog.db"
	}
	return p
}

func validEntry(room, user, text string) error {
	if strings.TrimSpace(room) == "" || strings.TrimSpace(user) == "" || text == "" {
		return ErrInvalidEntry
	}
	return nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}
