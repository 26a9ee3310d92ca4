package chatlog

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

const ttlRoomLog = 7 * 24 * time.Hour

// RedisStore keeps one capped list per room under chat:<room>.
type RedisStore struct {
	rdb   *redis.Client
	limit int
	now   func() time.Time
}

func NewRedisStore(rdb *redis.Client, limit int) *RedisStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RedisStore{rdb: rdb, limit: limit, now: time.Now}
}

func OpenRedis(ctx context.Context, rawURL string, limit int) (*RedisStore, error) {
	opts, err := ParseRedisURL(rawURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisStore(rdb, limit), nil
}

// ParseRedisURL accepts redis://[:pass@]host:port/db and rediss:// for TLS.
func ParseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid redis db %q: %w", p, err)
		}
		db = n
	}
	pass, _ := u.User.Password()
	opts := &redis.Options{Addr: u.Host, Username: u.User.Username(), Password: pass, DB: db}
	if u.Scheme == "rediss" {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: u.Hostname()}
	}
	return opts, nil
}

func (s *RedisStore) key(room string) string { return "chat:" + strings.TrimSpace(room) }

func (s *RedisStore) Insert(ctx context.Context, room, user, text string) error {
	if err := validEntry(room, user, text); err != nil {
		return err
	}
	raw, err := json.Marshal(relaydto.ChatEntry{Room: room, UserName: user, Message: text, CreatedAt: s.now().UTC()})
	if err != nil {
		return err
	}
	key := s.key(room)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, int64(-s.limit), -1)
	pipe.Expire(ctx, key, ttlRoomLog)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append chat line: %w", err)
	}
	return nil
}

func (s *RedisStore) Query(ctx context.Context, room string, limit int) ([]relaydto.ChatEntry, error) {
	n := clampLimit(limit, s.limit)
	raws, err := s.rdb.LRange(ctx, s.key(room), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat log: %w", err)
	}
	out := make([]relaydto.ChatEntry, 0, len(raws))
	for _, raw := range raws {
		var e relaydto.ChatEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			obslog.L().Warn("chatlog_corrupt_entry", zap.String("room", room), zap.Error(err))
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error { return s.rdb.Ping(ctx).Err() }

func (s *RedisStore) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}
