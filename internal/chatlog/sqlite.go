package chatlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS checkers_game_chat (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    chat_room  TEXT NOT NULL,
    user_name  TEXT NOT NULL,
    message    TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS checkers_game_chat_room_idx ON checkers_game_chat (chat_room, id);`

var ErrDegraded = errors.New("chat log storage degraded")

// SQLiteStore appends through a single writer goroutine; reads go straight to
// the pool. A failed write marks the store degraded and later writes are
// skipped.
type SQLiteStore struct {
	db        *sql.DB
	writeChan chan func(*sql.Tx) error
	healthy   atomic.Bool
	closed    atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	now       func() time.Time
	limit     int
}

func OpenSQLite(ctx context.Context, path string, limit int) (*SQLiteStore, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)

	wctx, cancel := context.WithCancel(context.Background())
	s := &SQLiteStore{
		db:        db,
		writeChan: make(chan func(*sql.Tx) error, 1000),
		ctx:       wctx,
		cancel:    cancel,
		now:       time.Now,
		limit:     limit,
	}
	s.healthy.Store(true)
	s.wg.Add(1)
	go s.writerLoop()
	return s, nil
}

func (s *SQLiteStore) writerLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			// 남은 쓰기는 비우고 종료
			for {
				select {
				case fn := <-s.writeChan:
					if s.healthy.Load() {
						s.executeWrite(fn)
					}
				default:
					return
				}
			}
		case fn := <-s.writeChan:
			if !s.healthy.Load() {
				continue
			}
			s.executeWrite(fn)
		}
	}
}

func (s *SQLiteStore) executeWrite(fn func(*sql.Tx) error) {
	tx, err := s.db.Begin()
	if err != nil {
		obslog.L().Error("chatlog_sqlite_degraded", zap.String("stage", "begin"), zap.Error(err))
		s.healthy.Store(false)
		return
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		obslog.L().Error("chatlog_sqlite_degraded", zap.String("stage", "write"), zap.Error(err))
		s.healthy.Store(false)
		return
	}
	if err := tx.Commit(); err != nil {
		obslog.L().Error("chatlog_sqlite_degraded", zap.String("stage", "commit"), zap.Error(err))
		s.healthy.Store(false)
	}
}

// Insert queues the line; it is written asynchronously.
func (s *SQLiteStore) Insert(ctx context.Context, room, user, text string) error {
	if err := validEntry(room, user, text); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if !s.healthy.Load() {
		return ErrDegraded
	}
	at := s.now().UTC()
	fn := func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO checkers_game_chat (chat_room, user_name, message, created_at) VALUES (?, ?, ?, ?)`,
			room, user, text, at)
		return err
	}
	select {
	case s.writeChan <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every write queued before the call has been applied.
func (s *SQLiteStore) Flush(ctx context.Context) error {
	done := make(chan struct{})
	fn := func(*sql.Tx) error {
		close(done)
		return nil
	}
	select {
	case s.writeChan <- fn:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteStore) Query(ctx context.Context, room string, limit int) ([]relaydto.ChatEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_room, user_name, message, created_at FROM (
        SELECT id, chat_room, user_name, message, created_at
        FROM checkers_game_chat WHERE chat_room = ?
        ORDER BY id DESC LIMIT ?
    ) ORDER BY id ASC`, room, clampLimit(limit, s.limit))
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

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if !s.healthy.Load() {
		return ErrDegraded
	}
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		obslog.L().Warn("chatlog_sqlite_shutdown_timeout")
	}
	return s.db.Close()
}
