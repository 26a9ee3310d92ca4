package chatlog

import (
	"context"
	"sync"
	"time"

	"github.com/park285/checkers-relay/pkg/relaydto"
)

// MemoryStore keeps the newest limit entries per room in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	limit int
	rooms map[string][]relaydto.ChatEntry
	now   func() time.Time
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &MemoryStore{limit: limit, rooms: make(map[string][]relaydto.ChatEntry), now: time.Now}
}

func (s *MemoryStore) Insert(_ context.Context, room, user, text string) error {
	if err := validEntry(room, user, text); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.rooms[room], relaydto.ChatEntry{Room: room, UserName: user, Message: text, CreatedAt: s.now().UTC()})
	if over := len(list) - s.limit; over > 0 {
		list = append([]relaydto.ChatEntry(nil), list[over:]...)
	}
	s.rooms[room] = list
	return nil
}

func (s *MemoryStore) Query(_ context.Context, room string, limit int) ([]relaydto.ChatEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.rooms[room]
	n := clampLimit(limit, s.limit)
	if len(list) > n {
		list = list[len(list)-n:]
	}
	return append([]relaydto.ChatEntry{}, list...), nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
