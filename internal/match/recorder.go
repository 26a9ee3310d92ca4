package match

import (
	"context"
	"sort"
	"sync"

	"github.com/park285/checkers-relay/internal/domain"
)

// Recorder stores finished games.
type Recorder interface {
	SaveResult(ctx context.Context, g *domain.CheckersGame) error
	RecentGames(ctx context.Context, player string, limit int) ([]*domain.CheckersGame, error)
	Close() error
}

// MemoryRecorder is used when no database is configured.
type MemoryRecorder struct {
	mu    sync.RWMutex
	games map[string]*domain.CheckersGame
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{games: make(map[string]*domain.CheckersGame)}
}

func (r *MemoryRecorder) SaveResult(_ context.Context, g *domain.CheckersGame) error {
	if g == nil {
		return ErrInvalidArgs
	}
	cp := *g
	cp.Moves = append([]string(nil), g.Moves...)
	r.mu.Lock()
	r.games[g.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *MemoryRecorder) RecentGames(_ context.Context, player string, limit int) ([]*domain.CheckersGame, error) {
	r.mu.RLock()
	items := make([]*domain.CheckersGame, 0)
	for _, g := range r.games {
		if g.Involves(player) {
			cp := *g
			items = append(items, &cp)
		}
	}
	r.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MemoryRecorder) Close() error { return nil }
