// Package fourinrow implements the 6x7 gravity-drop four-in-a-row game.
package fourinrow

import (
	"fmt"
	"strings"
	"time"

	"arena-game-bot/internal/game"
)

const (
	Rows = 6
	Cols = 7

	// WinLength is the number of contiguous marks needed to win.
	WinLength = 4

	// DefaultIdleTimeout is how long a player may hold the turn before forfeiting.
	DefaultIdleTimeout = 60 * time.Second
)

// Mark is the content of a single cell.
type Mark uint8

const (
	Empty Mark = iota
	Red        // Slot1
	Yellow     // Slot2
)

func (m Mark) String() string {
	switch m {
	case Red:
		return "🔴"
	case Yellow:
		return "🟡"
	default:
		return "⚪"
	}
}

// MarkFor returns the mark dropped by a slot.
func MarkFor(s game.Slot) Mark {
	if s == game.Slot1 {
		return Red
	}
	return Yellow
}

func opponent(m Mark) Mark {
	if m == Red {
		return Yellow
	}
	return Red
}

// Grid is the raw cell layout; row 0 is the top row.
type Grid [Rows][Cols]Mark

// directions scanned for lines: vertical, horizontal and the two diagonals.
var directions = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// Board is a four-in-a-row board.
type Board struct {
	grid Grid
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{}
}

// FromGrid builds a board from an explicit grid.
func FromGrid(g Grid) *Board {
	return &Board{grid: g}
}

// Grid returns a copy of the cells.
func (b *Board) Grid() Grid {
	return b.grid
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
	if m.Position < 0 || m.Position >= Cols {
		return fmt.Errorf("%w: column %d out of range", game.ErrIllegalMove, m.Position)
	}
	if b.grid[0][m.Position] != Empty {
		return fmt.Errorf("%w: column %d is full", game.ErrIllegalMove, m.Position)
	}
	return nil
}

// Apply implements game.Board.
func (b *Board) Apply(slot game.Slot, m game.Move) (bool, error) {
	if err := b.Validate(slot, m); err != nil {
		return false, err
	}
	b.grid.drop(m.Position, MarkFor(slot))
	return false, nil
}

// Moves implements game.Board.
func (b *Board) Moves(slot game.Slot) []game.Move {
	if b.Outcome() != game.Unresolved {
		return nil
	}
	moves := make([]game.Move, 0, Cols)
	for c := 0; c < Cols; c++ {
		if b.grid[0][c] == Empty {
			moves = append(moves, game.Move{Position: c})
		}
	}
	return moves
}

// Outcome implements game.Board.
func (b *Board) Outcome() game.Outcome {
	switch b.grid.winner() {
	case Red:
		return game.Slot1Wins
	case Yellow:
		return game.Slot2Wins
	}
	if b.grid.full() {
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

// String renders the grid top row first, followed by column numbers.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			sb.WriteString(b.grid[r][c].String())
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("1️⃣2️⃣3️⃣4️⃣5️⃣6️⃣7️⃣")
	return sb.String()
}

// drop places mark in the lowest empty row of col.
// Returns the row index or -1 if the column is full.
func (g *Grid) drop(col int, mark Mark) int {
	for r := Rows - 1; r >= 0; r-- {
		if g[r][col] == Empty {
			g[r][col] = mark
			return r
		}
	}
	return -1
}

func (g *Grid) playable(col int) bool {
	return g[0][col] == Empty
}

func (g *Grid) full() bool {
	for c := 0; c < Cols; c++ {
		if g[0][c] == Empty {
			return false
		}
	}
	return true
}

// winner returns the mark owning any four-in-a-row, or Empty.
func (g *Grid) winner() Mark {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			mark := g[r][c]
			if mark == Empty {
				continue
			}
			for _, d := range directions {
				if g.run(r, c, d, mark) {
					return mark
				}
			}
		}
	}
	return Empty
}

// run reports whether WinLength cells starting at (r,c) along d all equal mark.
func (g *Grid) run(r, c int, d [2]int, mark Mark) bool {
	for i := 0; i < WinLength; i++ {
		rr, cc := r+d[0]*i, c+d[1]*i
		if rr < 0 || rr >= Rows || cc < 0 || cc >= Cols || g[rr][cc] != mark {
			return false
		}
	}
	return true
}

// Game implements game.Rules for four-in-a-row.
type Game struct {
	maxWager    int64
	idleTimeout time.Duration
	bot         *Bot
}

// Config holds configuration for the four-in-a-row game.
type Config struct {
	MaxWager    int64
	IdleTimeout time.Duration
	SearchDepth int
}

// New creates a new Game with the given configuration.
func New(cfg *Config) *Game {
	idle := DefaultIdleTimeout
	depth := DefaultDepth
	var maxWager int64

	if cfg != nil {
		if cfg.IdleTimeout > 0 {
			idle = cfg.IdleTimeout
		}
		if cfg.MaxWager > 0 {
			maxWager = cfg.MaxWager
		}
		if cfg.SearchDepth > 0 {
			depth = cfg.SearchDepth
		}
	}

	return &Game{
		maxWager:    maxWager,
		idleTimeout: idle,
		bot:         NewBot(depth),
	}
}

// Type returns the game type.
func (g *Game) Type() game.GameType { return game.FourInRow }

// Name returns the display name.
func (g *Game) Name() string { return "Four in a Row" }

// NewBoard returns an empty board; the wager does not affect the deal.
func (g *Game) NewBoard(wager int64) game.Board { return NewBoard() }

// Opponent returns the minimax bot.
func (g *Game) Opponent() game.Opponent { return g.bot }

// HouseOnly is false: four-in-a-row can be played between two people.
func (g *Game) HouseOnly() bool { return false }

// MaxWager returns the maximum allowed wager.
func (g *Game) MaxWager() int64 { return g.maxWager }

// IdleTimeout returns the forfeit timeout.
func (g *Game) IdleTimeout() time.Duration { return g.idleTimeout }

// HouseDelay defers to the engine's thinking delay.
func (g *Game) HouseDelay() time.Duration { return 0 }
