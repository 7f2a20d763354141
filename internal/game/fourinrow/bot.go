package fourinrow

import (
	"fmt"
	"math"

	"arena-game-bot/internal/game"
)

const (
	// DefaultDepth is the number of plies searched, counting the bot's own move.
	DefaultDepth = 5

	// WinScore values a won (or lost) leaf. It is not normalized against the
	// positional heuristic below.
	WinScore = 1000

	centerWeight      = 3
	fourScore         = 100
	threeOpenScore    = 5
	twoOpenScore      = 2
	oppThreeOpenScore = -4
)

// centerOrder lists columns closest to the center first; searching in this order
// and only replacing the best move on a strictly better score breaks ties toward
// the center.
var centerOrder = [Cols]int{3, 2, 4, 1, 5, 0, 6}

// Bot is the House player: immediate win, immediate block, then minimax.
type Bot struct {
	depth int
}

// NewBot creates a bot searching depth plies.
func NewBot(depth int) *Bot {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Bot{depth: depth}
}

// ChooseMove implements game.Opponent.
func (bt *Bot) ChooseMove(b game.Board, slot game.Slot) (game.Move, error) {
	board, ok := b.(*Board)
	if !ok {
		return game.Move{}, fmt.Errorf("fourinrow: unexpected board %T", b)
	}
	if board.Outcome() != game.Unresolved {
		return game.Move{}, game.ErrNoMoves
	}

	g := board.grid
	me := MarkFor(slot)
	opp := opponent(me)

	if col, ok := winningColumn(&g, me); ok {
		return game.Move{Position: col}, nil
	}
	if col, ok := winningColumn(&g, opp); ok {
		return game.Move{Position: col}, nil
	}

	best, bestScore := -1, math.MinInt
	for _, col := range centerOrder {
		if !g.playable(col) {
			continue
		}
		child := g
		child.drop(col, me)
		score := minimax(&child, bt.depth-1, false, me)
		if score > bestScore {
			best, bestScore = col, score
		}
	}
	if best < 0 {
		return game.Move{}, game.ErrNoMoves
	}
	return game.Move{Position: best}, nil
}

// winningColumn returns a column where dropping mark wins immediately.
func winningColumn(g *Grid, mark Mark) (int, bool) {
	for _, col := range centerOrder {
		if !g.playable(col) {
			continue
		}
		child := *g
		child.drop(col, mark)
		if child.winner() == mark {
			return col, true
		}
	}
	return 0, false
}

// minimax searches every playable column down to depth plies. Leaves are scored
// by outcome (±WinScore, 0 for a full board) or by the positional heuristic.
func minimax(g *Grid, depth int, maximizing bool, me Mark) int {
	switch g.winner() {
	case me:
		return WinScore
	case opponent(me):
		return -WinScore
	}
	if g.full() {
		return 0
	}
	if depth == 0 {
		return Score(g, me)
	}

	if maximizing {
		value := math.MinInt
		for _, col := range centerOrder {
			if !g.playable(col) {
				continue
			}
			child := *g
			child.drop(col, me)
			value = max(value, minimax(&child, depth-1, false, me))
		}
		return value
	}

	value := math.MaxInt
	for _, col := range centerOrder {
		if !g.playable(col) {
			continue
		}
		child := *g
		child.drop(col, opponent(me))
		value = min(value, minimax(&child, depth-1, true, me))
	}
	return value
}

// Score is the positional heuristic from me's point of view.
func Score(g *Grid, me Mark) int {
	score := 0

	center := Cols / 2
	for r := 0; r < Rows; r++ {
		if g[r][center] == me {
			score += centerWeight
		}
	}

	var window [WinLength]Mark
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			for _, d := range directions {
				endR, endC := r+d[0]*(WinLength-1), c+d[1]*(WinLength-1)
				if endR < 0 || endR >= Rows || endC < 0 || endC >= Cols {
					continue
				}
				for i := 0; i < WinLength; i++ {
					window[i] = g[r+d[0]*i][c+d[1]*i]
				}
				score += scoreWindow(window, me)
			}
		}
	}

	return score
}

func scoreWindow(w [WinLength]Mark, me Mark) int {
	var mine, theirs, empty int
	for _, m := range w {
		switch m {
		case me:
			mine++
		case Empty:
			empty++
		default:
			theirs++
		}
	}

	score := 0
	switch {
	case mine == 4:
		score += fourScore
	case mine == 3 && empty == 1:
		score += threeOpenScore
	case mine == 2 && empty == 2:
		score += twoOpenScore
	}
	if theirs == 3 && empty == 1 {
		score += oppThreeOpenScore
	}
	return score
}
