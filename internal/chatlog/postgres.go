package chatlog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/checkers-relay/pkg/relaydto"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS checkers_game_chat (
    id         BIGSERIAL PRIMARY KEY,
    chat_room  TEXT NOT NULL,
    user_name  TEXT NOT NULL,
    message    TEXT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS checkers_game_chat_room_idx ON checkers_game_chat (chat_room, id);`

type PostgresStore struct {
	db    *sql.DB
	limit int
}

// OpenPostgres connects and bootstraps the table. Query returns at most limit
// entries per call.
func OpenPostgres(ctx context.Context, dsn string, limit int) (*PostgresStore, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := &PostgresStore{db: db, limit: limit}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create chat schema: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Insert(ctx context.Context, room, user, text string) error {
	if err := validEntry(room, user, text); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO checkers_game_chat (chat_room, user_name, message) VALUES ($1, $2, $3)`,
		room, user, text)
	return err
}

func (s *PostgresStore) Query(ctx context.Context, room string, limit int) ([]relaydto.ChatEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_room, user_name, message, created_at FROM (
        SELECT id, chat_room, user_name, message, created_at
        FROM checkers_game_chat WHERE chat_room = $1
        ORDER BY id DESC LIMIT $2
    ) recent ORDER BY id ASC`, room, clampLimit(limit, s.limit))
	if err != nil {
		return nil, fmt.Errorf("query chat log: %w", err)
	}
	defer rows.Close()
	out := []relaydto.ChatEntry{}
	for rows.Next() {
		var e relaydto.ChatEntry
		if err := rows.Scan(&e.Room, &e.UserName, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
