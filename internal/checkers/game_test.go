package checkers

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestNewGameWhiteMovesFirst(t *testing.T) {
	g := NewGame()
	if g.Turn() != White || g.Phase() != PhaseAwaitingFirstMove {
		t.Fatalf("turn=%s phase=%s", g.Turn(), g.Phase())
	}
	if _, err := g.Play(Black, Move{PieceID: 1, Next: pos(2, 6)}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("want ErrNotYourTurn, got %v", err)
	}

	m, err := g.FindMove(White, pos(3, 3), pos(4, 4), nil)
	if err != nil {
		t.Fatalf("FindMove: %v", err)
	}
	if m.PieceID != 5 {
		t.Fatalf("expected white piece 5 on c3, got %d", m.PieceID)
	}
	out, err := g.Play(White, m)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if out.Notation != "c3-d4" || out.Continue || out.Finished {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if g.Turn() != Black || g.Phase() != PhaseActive {
		t.Fatalf("turn=%s phase=%s", g.Turn(), g.Phase())
	}
	if h := g.History(); len(h) != 1 || h[0] != "c3-d4" {
		t.Fatalf("history %v", h)
	}
}

func TestPlayRejectsIllegalMove(t *testing.T) {
	g := NewGame()
	// backwards for a man
	if _, err := g.Play(White, Move{PieceID: 5, Next: pos(2, 2)}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("want ErrIllegalMove, got %v", err)
	}
	if _, err := g.FindMove(White, pos(3, 3), pos(5, 5), nil); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("want ErrIllegalMove for a two-square step, got %v", err)
	}
	if _, err := g.FindMove(White, pos(4, 4), pos(5, 5), nil); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("want ErrIllegalMove for an empty square, got %v", err)
	}
	if g.Turn() != White || len(g.History()) != 0 {
		t.Fatalf("rejected moves must not change state")
	}
}

func TestFindMoveChecksCapturedSquare(t *testing.T) {
	b := mustBoard(t,
		[]Piece{{ID: 1, Position: pos(3, 3)}},
		[]Piece{{ID: 1, Position: pos(4, 4)}, {ID: 2, Position: pos(8, 8)}},
	)
	g, err := NewGameFromBoard(b, White)
	if err != nil {
		t.Fatalf("NewGameFromBoard: %v", err)
	}
	wrong := pos(6, 6)
	if _, err := g.FindMove(White, pos(3, 3), pos(5, 5), &wrong); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("want ErrIllegalMove for mismatched capture, got %v", err)
	}
	m, err := g.FindMove(White, pos(3, 3), pos(5, 5), nil)
	if err != nil {
		t.Fatalf("FindMove: %v", err)
	}
	if m.Captured == nil || *m.Captured != pos(4, 4) {
		t.Fatalf("captured square not filled in: %+v", m)
	}
}

func TestLastCaptureFinishesGame(t *testing.T) {
	b := mustBoard(t,
		[]Piece{{ID: 1, Position: pos(3, 3)}},
		[]Piece{{ID: 1, Position: pos(4, 4)}},
	)
	g, err := NewGameFromBoard(b, White)
	if err != nil {
		t.Fatalf("NewGameFromBoard: %v", err)
	}
	captured := pos(4, 4)
	out, err := g.Play(White, Move{PieceID: 1, Captured: &captured, Next: pos(5, 5)})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !out.Finished || out.Winner != White || out.Reason != ReasonCapturedAll {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if w, ok := g.Winner(); !ok || w != White {
		t.Fatalf("winner=%s ok=%v", w, ok)
	}
	if moves := g.LegalMoves(); len(moves) != 0 {
		t.Fatalf("finished game still offers moves: %+v", moves)
	}
	if _, err := g.Play(Black, Move{PieceID: 1, Next: pos(3, 3)}); !errors.Is(err, ErrGameOver) {
		t.Fatalf("want ErrGameOver, got %v", err)
	}
}

func TestContinuationCaptureKeepsTurn(t *testing.T) {
	b := mustBoard(t,
		[]Piece{{ID: 1, Position: pos(1, 1)}, {ID: 2, Position: pos(7, 1)}},
		[]Piece{{ID: 1, Position: pos(2, 2)}, {ID: 2, Position: pos(4, 4)}},
	)
	g, err := NewGameFromBoard(b, White)
	if err != nil {
		t.Fatalf("NewGameFromBoard: %v", err)
	}
	first := pos(2, 2)
	out, err := g.Play(White, Move{PieceID: 1, Captured: &first, Next: pos(3, 3)})
	if err != nil {
		t.Fatalf("first capture: %v", err)
	}
	if !out.Continue || out.Finished {
		t.Fatalf("expected continuation, got %+v", out)
	}
	if g.Turn() != White {
		t.Fatalf("turn passed during capture sequence")
	}
	if id, ok := g.Continuing(); !ok || id != 1 {
		t.Fatalf("continuing=%d ok=%v", id, ok)
	}
	for _, m := range g.LegalMoves() {
		if m.PieceID != 1 || !m.IsCapture() {
			t.Fatalf("only the locked piece may capture: %+v", m)
		}
	}
	if _, err := g.Play(White, Move{PieceID: 2, Next: pos(8, 2)}); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("other piece moved mid-sequence: %v", err)
	}
	if data := GameDataFor(out); !data.IsOpponentStep || data.CapturedPiecePosition == nil {
		t.Fatalf("game data for continuation: %+v", data)
	}

	second := pos(4, 4)
	out, err = g.Play(White, Move{PieceID: 1, Captured: &second, Next: pos(5, 5)})
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if out.Continue || !out.Finished || out.Reason != ReasonCapturedAll {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if _, ok := g.Continuing(); ok {
		t.Fatalf("continuation lock survived the end of the game")
	}
	if h := g.History(); len(h) != 1 || h[0] != "a1xc3xe5" {
		t.Fatalf("multi-jump should be one ply, got %v", h)
	}
}

func TestBlockedSideLoses(t *testing.T) {
	b := mustBoard(t,
		[]Piece{{ID: 1, Position: pos(1, 1)}},
		[]Piece{{ID: 1, Position: pos(2, 2)}, {ID: 2, Position: pos(4, 4)}},
	)
	g, err := NewGameFromBoard(b, Black)
	if err != nil {
		t.Fatalf("NewGameFromBoard: %v", err)
	}
	if g.Finished() {
		t.Fatalf("game finished before any move")
	}
	out, err := g.Play(Black, Move{PieceID: 2, Next: pos(3, 3)})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !out.Finished || out.Winner != Black || out.Reason != ReasonBlocked {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestNewGameFromBoardDetectsFinishedPosition(t *testing.T) {
	b := mustBoard(t, []Piece{{ID: 1, Position: pos(1, 1)}}, nil)
	g, err := NewGameFromBoard(b, Black)
	if err != nil {
		t.Fatalf("NewGameFromBoard: %v", err)
	}
	if w, ok := g.Winner(); !ok || w != White || g.Reason() != ReasonCapturedAll {
		t.Fatalf("winner=%s ok=%v reason=%s", w, ok, g.Reason())
	}
}

func TestResign(t *testing.T) {
	g := NewGame()
	if err := g.Resign(Black, ""); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	if w, _ := g.Winner(); w != White || g.Reason() != ReasonResigned {
		t.Fatalf("winner=%s reason=%s", w, g.Reason())
	}
	if err := g.Resign(White, "disconnected"); !errors.Is(err, ErrGameOver) {
		t.Fatalf("want ErrGameOver, got %v", err)
	}
}

func TestGameDataWireForm(t *testing.T) {
	g := NewGame()
	m, err := g.FindMove(White, pos(3, 3), pos(4, 4), nil)
	if err != nil {
		t.Fatalf("FindMove: %v", err)
	}
	out, err := g.Play(White, m)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	raw, err := json.Marshal(GameDataFor(out))
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(raw)
	for _, want := range []string{
		`"opponent_piece_color":"White"`,
		`"piece_previous_position":{"column":3,"line":3}`,
		`"piece_new_position":{"column":4,"line":4}`,
		`"captured_piece_position":null`,
		`"is_opponent_step":false`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("%s missing from %s", want, s)
		}
	}
}

func TestParseColor(t *testing.T) {
	for in, want := range map[string]Color{"white": White, "W": White, " Black ": Black, "b": Black} {
		got, err := ParseColor(in)
		if err != nil || got != want {
			t.Fatalf("ParseColor(%q) = %s, %v", in, got, err)
		}
	}
	if _, err := ParseColor("red"); !errors.Is(err, ErrUnknownColor) {
		t.Fatalf("want ErrUnknownColor, got %v", err)
	}
}
