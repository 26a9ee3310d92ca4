package match

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/checkers-relay/internal/domain"
)

const gamesSchema = `CREATE TABLE IF NOT EXISTS checkers_games (
    game_id       TEXT PRIMARY KEY,
    room          TEXT NOT NULL,
    white_name    TEXT NOT NULL,
    black_name    TEXT NOT NULL,
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL,
    moves         JSONB NOT NULL,
    pdn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL
)`

// PostgresRecorder persists finished games to checkers_games.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(ctx context.Context, databaseURL string) (*PostgresRecorder, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
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
		return nil, err
	}
	if _, err := db.ExecContext(ctx, gamesSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create games schema: %w", err)
	}
	return &PostgresRecorder{db: db}, nil
}

func (r *PostgresRecorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts a finished game.
func (r *PostgresRecorder) SaveResult(ctx context.Context, g *domain.CheckersGame) error {
	if g == nil {
		return ErrInvalidArgs
	}
	moves, err := json.Marshal(g.Moves)
	if err != nil {
		return err
	}
	q := `INSERT INTO checkers_games (
        game_id, room, white_name, black_name, result, result_method,
        moves, pdn, started_at, ended_at, duration_ms
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
      ON CONFLICT (game_id) DO UPDATE SET
        result=EXCLUDED.result,
        result_method=EXCLUDED.result_method,
        moves=EXCLUDED.moves,
        pdn=EXCLUDED.pdn,
        ended_at=EXCLUDED.ended_at,
        duration_ms=EXCLUDED.duration_ms`
	_, err = r.db.ExecContext(ctx, q,
		g.ID, g.Room, g.WhiteName, g.BlackName,
		g.Result, strings.TrimSpace(g.ResultMethod), string(moves), g.PDN,
		g.StartedAt, g.EndedAt, g.Duration.Milliseconds(),
	)
	return err
}

func (r *PostgresRecorder) RecentGames(ctx context.Context, player string, limit int) ([]*domain.CheckersGame, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `SELECT game_id, room, white_name, black_name, result, result_method,
        moves, pdn, started_at, ended_at, duration_ms
      FROM checkers_games WHERE white_name = $1 OR black_name = $1
      ORDER BY ended_at DESC LIMIT $2`, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []*domain.CheckersGame{}
	for rows.Next() {
		var (
			g        domain.CheckersGame
			moves    []byte
			duration int64
		)
		if err := rows.Scan(&g.ID, &g.Room, &g.WhiteName, &g.BlackName, &g.Result, &g.ResultMethod,
			&moves, &g.PDN, &g.StartedAt, &g.EndedAt, &duration); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(moves, &g.Moves); err != nil {
			return nil, fmt.Errorf("decode moves of %s: %w", g.ID, err)
		}
		g.Duration = time.Duration(duration) * time.Millisecond
		out = append(out, &g)
	}
	return out, rows.Err()
}
