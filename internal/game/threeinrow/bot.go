package threeinrow

import (
	"fmt"
	"math/rand"

	"arena-game-bot/internal/game"
)

const center = 4

var corners = [4]int{0, 2, 6, 8}

// Bot is the House player. It goes, in order: win now, block the opponent's win,
// take the center, take a random open corner, take a random open cell.
type Bot struct {
	intn func(n int) int
}

// NewBot creates a bot drawing randomness from math/rand.
func NewBot() *Bot {
	return &Bot{intn: rand.Intn}
}

// ChooseMove implements game.Opponent.
func (bt *Bot) ChooseMove(b game.Board, slot game.Slot) (game.Move, error) {
	board, ok := b.(*Board)
	if !ok {
		return game.Move{}, fmt.Errorf("threeinrow: unexpected board %T", b)
	}

	open := board.open()
	if len(open) == 0 || board.Winner() != Empty {
		return game.Move{}, game.ErrNoMoves
	}

	me, opp := MarkFor(slot), MarkFor(slot.Other())

	for _, c := range open {
		if board.completes(c, me) {
			return game.Move{Position: c}, nil
		}
	}
	for _, c := range open {
		if board.completes(c, opp) {
			return game.Move{Position: c}, nil
		}
	}

	if board.cells[center] == Empty {
		return game.Move{Position: center}, nil
	}

	openCorners := make([]int, 0, len(corners))
	for _, c := range corners {
		if board.cells[c] == Empty {
			openCorners = append(openCorners, c)
		}
	}
	if len(openCorners) > 0 {
		return game.Move{Position: openCorners[bt.intn(len(openCorners))]}, nil
	}

	return game.Move{Position: open[bt.intn(len(open))]}, nil
}
