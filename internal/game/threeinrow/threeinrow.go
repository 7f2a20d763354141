// Package threeinrow implements the 3x3 three-in-a-row game.
package threeinrow

import (
	"fmt"
	"strings"
	"time"

	"arena-game-bot/internal/game"
)

const (
	// DefaultIdleTimeout is how long a player may hold the turn before forfeiting.
	DefaultIdleTimeout = 60 * time.Second

	// Size is the number of cells on the board.
	Size = 9
)

// Mark is the content of a single cell.
type Mark uint8

const (
	Empty Mark = iota
	X          // Slot1
	O          // Slot2
)

func (m Mark) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	default:
		return "·"
	}
}

// lines are the 3 rows, 3 columns and 2 diagonals.
var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// MarkFor returns the mark played by a slot.
func MarkFor(s game.Slot) Mark {
	if s == game.Slot1 {
		return X
	}
	return O
}

// Board is a three-in-a-row board.
type Board struct {
	cells [Size]Mark
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// FromCells builds a board from an explicit layout, row-major.
func FromCells(cells [Size]Mark) *Board {
	return &Board{cells: cells}
}

// Cells returns a copy of the cells.
func (b *Board) Cells() [Size]Mark {
	return b.cells
}

// FirstToMove implements game.Board.
func (b *Board) FirstToMove() game.Slot {
	return game.Slot1
}

// Validate implements game.Board.
func (b *Board) Validate(slot game.Slot, m game.Move) error {
	if b.Outcome() != game.Unresolved {
		return fmt.Errorf("%w: game is over", game.ErrIllegalMove)
	}
	if m.Position < 0 || m.Position >= Size {
		return fmt.Errorf("%w: cell %d out of range", game.ErrIllegalMove, m.Position)
	}
	if b.cells[m.Position] != Empty {
		return fmt.Errorf("%w: cell %d is taken", game.ErrIllegalMove, m.Position)
	}
	return nil
}

// Apply implements game.Board.
func (b *Board) Apply(slot game.Slot, m game.Move) (bool, error) {
	if err := b.Validate(slot, m); err != nil {
		return false, err
	}
	b.cells[m.Position] = MarkFor(slot)
	return false, nil
}

// Moves implements game.Board.
func (b *Board) Moves(slot game.Slot) []game.Move {
	if b.Outcome() != game.Unresolved {
		return nil
	}
	open := b.open()
	moves := make([]game.Move, 0, len(open))
	for _, c := range open {
		moves = append(moves, game.Move{Position: c})
	}
	return moves
}

// Winner returns the mark holding a complete line, or Empty.
func (b *Board) Winner() Mark {
	return winner(b.cells)
}

// Outcome implements game.Board.
func (b *Board) Outcome() game.Outcome {
	switch b.Winner() {
	case X:
		return game.Slot1Wins
	case O:
		return game.Slot2Wins
	}
	if len(b.open()) == 0 {
		return game.Draw
	}
	return game.Unresolved
}

// Payouts implements game.Board.
func (b *Board) Payouts(outcome game.Outcome, wager int64, humans [2]bool) [2]int64 {
	return game.StandardPayouts(outcome, wager, humans)
}

// Clone implements game.Board.
func (b *Board) Clone() game.Board {
	c := *b
	return &c
}

// String renders the board as three lines.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			sb.WriteString(b.cells[r*3+c].String())
		}
		if r < 2 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (b *Board) open() []int {
	open := make([]int, 0, Size)
	for i, m := range b.cells {
		if m == Empty {
			open = append(open, i)
		}
	}
	return open
}

// completes reports whether placing mark at cell gives mark a line.
func (b *Board) completes(cell int, mark Mark) bool {
	cells := b.cells
	cells[cell] = mark
	return winner(cells) == mark
}

func winner(cells [Size]Mark) Mark {
	for _, l := range lines {
		m := cells[l[0]]
		if m != Empty && cells[l[1]] == m && cells[l[2]] == m {
			return m
		}
	}
	return Empty
}

// Game implements game.Rules for three-in-a-row.
type Game struct {
	maxWager    int64
	idleTimeout time.Duration
	bot         *Bot
}

// Config holds configuration for the three-in-a-row game.
type Config struct {
	MaxWager    int64
	IdleTimeout time.Duration
}

// New creates a new Game with the given configuration.
func New(cfg *Config) *Game {
	idle := DefaultIdleTimeout
	var maxWager int64

	if cfg != nil {
		if cfg.IdleTimeout > 0 {
			idle = cfg.IdleTimeout
		}
		if cfg.MaxWager > 0 {
			maxWager = cfg.MaxWager
		}
	}

	return &Game{
		maxWager:    maxWager,
		idleTimeout: idle,
		bot:         NewBot(),
	}
}

func (g *Game) Type() game.GameType { return game.ThreeInRow }

func (g *Game) Name() string { return "Three in a Row" }

func (g *Game) NewBoard(wager int64) game.Board { return NewBoard() }

func (g *Game) Opponent() game.Opponent { return g.bot }

func (g *Game) HouseOnly() bool { return false }

func (g *Game) MaxWager() int64 { return g.maxWager }

func (g *Game) IdleTimeout() time.Duration { return g.idleTimeout }

func (g *Game) HouseDelay() time.Duration { return 0 }
