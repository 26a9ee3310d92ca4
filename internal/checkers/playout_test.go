package checkers

import (
	"errors"
	"math/rand"
	"testing"
)

const (
	playoutGames    = 500
	playoutMaxPlies = 400
)

// checkBoard re-validates b through NewBoard and checks every piece stays on
// a dark square.
func checkBoard(t *testing.T, b Board) {
	t.Helper()
	if _, err := NewBoard(b.Pieces(White), b.Pieces(Black)); err != nil {
		t.Fatalf("board invariants: %v", err)
	}
	for _, c := range []Color{White, Black} {
		for _, p := range b.Pieces(c) {
			if (p.Position.Column+p.Position.Line)%2 != 0 {
				t.Fatalf("%s piece %d on light square %s", c, p.ID, p.Position)
			}
		}
	}
}

func crowns(b Board) map[Color]map[int]bool {
	out := map[Color]map[int]bool{White: {}, Black: {}}
	for _, c := range []Color{White, Black} {
		for _, p := range b.Pieces(c) {
			if p.Crowned {
				out[c][p.ID] = true
			}
		}
	}
	return out
}

func TestRandomPlayouts(t *testing.T) {
	finished := 0
	for seed := int64(1); seed <= playoutGames; seed++ {
		rng := rand.New(rand.NewSource(seed))
		g := NewGame()
		var last Move

		for ply := 0; ply < playoutMaxPlies && !g.Finished(); ply++ {
			b := g.Board()
			turn := g.Turn()
			assertNoMixedMoves(t, LegalMoves(b, turn))

			moves := g.LegalMoves()
			if len(moves) == 0 {
				t.Fatalf("seed %d ply %d: %s to move has no moves in an unfinished game", seed, ply, turn)
			}
			assertNoMixedMoves(t, moves)
			if id, ok := g.Continuing(); ok {
				for _, m := range moves {
					if m.PieceID != id || !m.IsCapture() {
						t.Fatalf("seed %d: continuation offered %+v for piece %d", seed, m, id)
					}
				}
			}

			before := crowns(b)
			counts := map[Color]int{White: b.Count(White), Black: b.Count(Black)}
			last = moves[rng.Intn(len(moves))]
			out, err := g.Play(turn, last)
			if err != nil {
				t.Fatalf("seed %d ply %d: Play(%+v): %v", seed, ply, last, err)
			}

			after := g.Board()
			checkBoard(t, after)
			now := crowns(after)
			for c, ids := range before {
				for id := range ids {
					if !now[c][id] {
						if _, alive := after.PieceByID(c, id); alive {
							t.Fatalf("seed %d: %s king %d lost its crown", seed, c, id)
						}
					}
				}
			}
			if after.Count(turn) != counts[turn] {
				t.Fatalf("seed %d: mover lost a piece on its own move", seed)
			}
			if taken := counts[turn.Opposite()] - after.Count(turn.Opposite()); taken != map[bool]int{true: 1, false: 0}[last.IsCapture()] {
				t.Fatalf("seed %d: move %+v removed %d pieces", seed, last, taken)
			}
			if out.Continue {
				if g.Turn() != turn {
					t.Fatalf("seed %d: turn passed during a capture sequence", seed)
				}
				if id, ok := g.Continuing(); !ok || id != last.PieceID {
					t.Fatalf("seed %d: continuing piece = %d, want %d", seed, id, last.PieceID)
				}
			} else if !out.Finished && g.Turn() != turn.Opposite() {
				t.Fatalf("seed %d: turn did not pass", seed)
			}
		}

		if !g.Finished() {
			continue
		}
		finished++
		if _, ok := g.Winner(); !ok {
			t.Fatalf("seed %d: finished without a winner", seed)
		}
		if g.LegalMoves() != nil {
			t.Fatalf("seed %d: finished game still offers moves", seed)
		}
		for _, c := range []Color{White, Black} {
			if _, err := g.Play(c, last); !errors.Is(err, ErrGameOver) {
				t.Fatalf("seed %d: Play after the end = %v", seed, err)
			}
		}
	}
	if finished == 0 {
		t.Fatalf("no playout reached an end in %d plies", playoutMaxPlies)
	}
}
