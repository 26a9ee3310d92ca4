package match

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/checkers-relay/internal/checkers"
	"github.com/park285/checkers-relay/internal/domain"
	"github.com/park285/checkers-relay/internal/obslog"
	"github.com/park285/checkers-relay/pkg/relaydto"
)

// Manager holds every active match in memory. In-progress games are never
// persisted; finished ones go to the Recorder.
type Manager struct {
	mu       sync.Mutex
	byID     map[string]*Match
	byPlayer map[string]*Match
	recorder Recorder
	now      func() time.Time
}

// NewManager uses an in-memory recorder when rec is nil.
func NewManager(rec Recorder) *Manager {
	if rec == nil {
		rec = NewMemoryRecorder()
	}
	return &Manager{
		byID:     make(map[string]*Match),
		byPlayer: make(map[string]*Match),
		recorder: rec,
		now:      time.Now,
	}
}

func (m *Manager) Close() error { return m.recorder.Close() }

// Start opens a match in room. white moves first.
func (m *Manager) Start(ctx context.Context, room, white, black string) (*Snapshot, error) {
	room, white, black = strings.TrimSpace(room), strings.TrimSpace(white), strings.TrimSpace(black)
	if room == "" || white == "" || black == "" {
		return nil, ErrInvalidArgs
	}
	if white == black {
		return nil, ErrSamePlayer
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range []string{white, black} {
		if _, busy := m.byPlayer[name]; busy {
			return nil, fmt.Errorf("%w: %s", ErrPlayerBusy, name)
		}
	}
	now := m.now()
	g := &Match{
		ID:        uuid.NewString(),
		Room:      room,
		White:     white,
		Black:     black,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
		game:      checkers.NewGame(),
	}
	m.byID[g.ID] = g
	m.byPlayer[white] = g
	m.byPlayer[black] = g
	obslog.L().Info("match_started",
		zap.String("game_id", g.ID),
		zap.String("room", room),
		zap.String("white", white),
		zap.String("black", black),
	)
	s := g.snapshot()
	return &s, nil
}

// Play checks a relayed move against the player's active match and applies it.
func (m *Manager) Play(ctx context.Context, player string, gd checkers.GameData) (*MoveResult, error) {
	m.mu.Lock()
	g, ok := m.byPlayer[player]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotInGame
	}
	color, _ := g.ColorOf(player)
	if gd.OpponentPieceColor != color {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s plays %s", ErrWrongColor, player, color)
	}
	mv, err := g.game.FindMove(color, gd.PiecePreviousPosition, gd.PieceNewPosition, gd.CapturedPiecePosition)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	out, err := g.game.Play(color, mv)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	from, to := out.From, out.Move.Next
	g.lastFrom, g.lastTo = &from, &to
	g.UpdatedAt = m.now()

	res := &MoveResult{
		MatchID:  g.ID,
		Room:     g.Room,
		Opponent: g.Opponent(player),
		Data:     checkers.GameDataFor(out),
		Notation: out.Notation,
	}
	var rec *domain.CheckersGame
	if out.Finished {
		res.GameOver, rec = m.finishLocked(g, out.Winner, out.Reason)
	}
	m.mu.Unlock()

	if rec != nil {
		m.persist(ctx, rec)
	}
	return res, nil
}

// Forfeit ends player's active match in the opponent's favour.
func (m *Manager) Forfeit(ctx context.Context, player, reason string) (*relaydto.GameOver, error) {
	m.mu.Lock()
	g, ok := m.byPlayer[player]
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotInGame
	}
	color, _ := g.ColorOf(player)
	if err := g.game.Resign(color, reason); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	g.UpdatedAt = m.now()
	over, rec := m.finishLocked(g, color.Opposite(), g.game.Reason())
	m.mu.Unlock()

	m.persist(ctx, rec)
	return over, nil
}

func (m *Manager) finishLocked(g *Match, winner checkers.Color, reason string) (*relaydto.GameOver, *domain.CheckersGame) {
	g.Status = StatusFinished
	g.Winner = g.playerOf(winner)
	g.WinnerColor = winner
	g.Reason = reason
	delete(m.byPlayer, g.White)
	delete(m.byPlayer, g.Black)
	delete(m.byID, g.ID)

	over := &relaydto.GameOver{
		GameID:      g.ID,
		Room:        g.Room,
		Winner:      g.Winner,
		Loser:       g.playerOf(winner.Opposite()),
		WinnerColor: string(winner),
		Reason:      reason,
	}
	obslog.L().Info("match_finished",
		zap.String("game_id", g.ID),
		zap.String("winner", over.Winner),
		zap.String("loser", over.Loser),
		zap.String("reason", reason),
	)
	return over, recordOf(g)
}

func recordOf(g *Match) *domain.CheckersGame {
	rec := &domain.CheckersGame{
		ID:           g.ID,
		Room:         g.Room,
		WhiteName:    g.White,
		BlackName:    g.Black,
		Result:       strings.ToLower(string(g.WinnerColor)),
		ResultMethod: g.Reason,
		Moves:        g.game.History(),
		StartedAt:    g.CreatedAt,
		EndedAt:      g.UpdatedAt,
		Duration:     g.UpdatedAt.Sub(g.CreatedAt),
	}
	if rec.Duration < 0 {
		rec.Duration = 0
	}
	rec.PDN = buildPDN(rec)
	return rec
}

func (m *Manager) persist(ctx context.Context, rec *domain.CheckersGame) {
	if err := m.recorder.SaveResult(ctx, rec); err != nil {
		obslog.L().Error("match_save_failed", zap.String("game_id", rec.ID), zap.Error(err))
	}
}

// ActiveByPlayer returns a copy of player's active match.
func (m *Manager) ActiveByPlayer(player string) (*Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.byPlayer[player]
	if !ok {
		return nil, false
	}
	s := g.snapshot()
	return &s, true
}

// ActiveCount is the number of matches in progress.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

// History lists player's finished games, newest first.
func (m *Manager) History(ctx context.Context, player string, limit int) ([]relaydto.GameRecord, error) {
	games, err := m.recorder.RecentGames(ctx, player, limit)
	if err != nil {
		return nil, err
	}
	out := make([]relaydto.GameRecord, 0, len(games))
	for _, g := range games {
		out = append(out, relaydto.GameRecord{
			GameID:       g.ID,
			Room:         g.Room,
			WhiteName:    g.WhiteName,
			BlackName:    g.BlackName,
			Result:       g.Result,
			ResultMethod: g.ResultMethod,
			Moves:        append([]string{}, g.Moves...),
			StartedAt:    g.StartedAt,
			EndedAt:      g.EndedAt,
			DurationMS:   g.Duration.Milliseconds(),
		})
	}
	return out, nil
}
