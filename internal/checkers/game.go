package checkers

import (
	"errors"
	"fmt"
)

var (
	ErrGameOver    = errors.New("game is over")
	ErrNotYourTurn = errors.New("not your turn")
	ErrIllegalMove = errors.New("illegal move")
)

type Phase string

const (
	PhaseAwaitingFirstMove Phase = "awaiting_first_move"
	PhaseActive            Phase = "active"
	PhaseFinished          Phase = "finished"
)

// Finish reasons.
const (
	ReasonCapturedAll = "captured_all"
	ReasonBlocked     = "blocked"
	ReasonResigned    = "resigned"
)

// Outcome describes one applied move.
type Outcome struct {
	Color    Color
	From     Position
	Move     Move
	Notation string
	// Continue is set when the same piece must capture again; the turn did not pass.
	Continue bool
	Finished bool
	Winner   Color
	Reason   string
}

// Game is the per-match state machine. White always moves first. A Game is
// not safe for concurrent use; its owner serialises access.
type Game struct {
	board      Board
	turn       Color
	phase      Phase
	continuing int
	winner     Color
	reason     string
	history    []string
}

func NewGame() *Game {
	return &Game{board: InitialBoard(), turn: White, phase: PhaseAwaitingFirstMove}
}

// NewGameFromBoard starts a game from an arbitrary position with turn to move.
func NewGameFromBoard(b Board, turn Color) (*Game, error) {
	if !turn.Valid() {
		return nil, ErrUnknownColor
	}
	g := &Game{board: b.Clone(), turn: turn, phase: PhaseActive}
	g.checkTerminal(turn.Opposite())
	return g, nil
}

func (g *Game) Board() Board      { return g.board.Clone() }
func (g *Game) Turn() Color       { return g.turn }
func (g *Game) Phase() Phase      { return g.phase }
func (g *Game) Reason() string    { return g.reason }
func (g *Game) History() []string { return append([]string(nil), g.history...) }

func (g *Game) Finished() bool { return g.phase == PhaseFinished }

// Winner is set only once the game has finished.
func (g *Game) Winner() (Color, bool) {
	if g.phase != PhaseFinished {
		return "", false
	}
	return g.winner, true
}

// Continuing returns the id of the piece locked into a capture sequence.
func (g *Game) Continuing() (int, bool) {
	return g.continuing, g.continuing != 0
}

// LegalMoves for the side to move. During a capture sequence only the
// continuing piece's captures are legal.
func (g *Game) LegalMoves() []Move {
	if g.phase == PhaseFinished {
		return nil
	}
	if g.continuing != 0 {
		return MovesForPiece(g.board, g.turn, g.continuing)
	}
	return LegalMoves(g.board, g.turn)
}

// FindMove resolves a from/to pair against the legal set. When captured is
// given it must agree with the legal move; when it is nil the legal move's
// captured square is used.
func (g *Game) FindMove(color Color, from, to Position, captured *Position) (Move, error) {
	if g.phase == PhaseFinished {
		return Move{}, ErrGameOver
	}
	if color != g.turn {
		return Move{}, ErrNotYourTurn
	}
	c, piece, ok := g.board.At(from)
	if !ok || c != color {
		return Move{}, fmt.Errorf("%w: no %s piece at %s", ErrIllegalMove, color, from)
	}
	for _, m := range g.LegalMoves() {
		if m.PieceID != piece.ID || m.Next != to {
			continue
		}
		if captured != nil && (m.Captured == nil || *m.Captured != *captured) {
			break
		}
		return m, nil
	}
	return Move{}, fmt.Errorf("%w: %s to %s", ErrIllegalMove, from, to)
}

// Play validates m against the legal set, applies it, then runs the
// continuation check and the terminal check before passing the turn.
func (g *Game) Play(color Color, m Move) (Outcome, error) {
	if g.phase == PhaseFinished {
		return Outcome{}, ErrGameOver
	}
	if color != g.turn {
		return Outcome{}, ErrNotYourTurn
	}
	legal := false
	for _, lm := range g.LegalMoves() {
		if lm.equal(m) {
			legal = true
			break
		}
	}
	if !legal {
		return Outcome{}, ErrIllegalMove
	}

	mover, _ := g.board.PieceByID(color, m.PieceID)
	next, err := ApplyMove(g.board, color, m)
	if err != nil {
		return Outcome{}, err
	}
	g.board = next
	g.phase = PhaseActive
	out := Outcome{Color: color, From: mover.Position, Move: m, Notation: Notation(mover.Position, m)}
	if g.continuing != 0 && len(g.history) > 0 {
		// one ply per turn: a multi-jump reads "a1xc3xe5"
		g.history[len(g.history)-1] += "x" + m.Next.String()
	} else {
		g.history = append(g.history, out.Notation)
	}

	if m.IsCapture() && CanContinueCapture(next, color, m.PieceID) {
		g.continuing = m.PieceID
		out.Continue = true
		return out, nil
	}
	g.continuing = 0

	g.turn = color.Opposite()
	if g.checkTerminal(color) {
		out.Finished = true
		out.Winner = g.winner
		out.Reason = g.reason
	}
	return out, nil
}

// checkTerminal ends the game in mover's favour when the side now to move has
// no pieces or no legal move.
func (g *Game) checkTerminal(mover Color) bool {
	opponent := mover.Opposite()
	switch {
	case g.board.Count(opponent) == 0:
		g.finish(mover, ReasonCapturedAll)
	case g.turn == opponent && len(LegalMoves(g.board, opponent)) == 0:
		g.finish(mover, ReasonBlocked)
	default:
		return false
	}
	return true
}

// Resign ends the game with color losing. reason defaults to ReasonResigned.
func (g *Game) Resign(color Color, reason string) error {
	if g.phase == PhaseFinished {
		return ErrGameOver
	}
	if !color.Valid() {
		return ErrUnknownColor
	}
	if reason == "" {
		reason = ReasonResigned
	}
	g.finish(color.Opposite(), reason)
	return nil
}

func (g *Game) finish(winner Color, reason string) {
	g.phase = PhaseFinished
	g.winner = winner
	g.reason = reason
	g.continuing = 0
}
