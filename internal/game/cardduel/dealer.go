package cardduel

import (
	"fmt"

	"arena-game-bot/internal/game"
)

// Dealer plays the House hand: draw below 17, stand on any 17 or more.
type Dealer struct{}

// ChooseMove implements game.Opponent.
func (d *Dealer) ChooseMove(b game.Board, slot game.Slot) (game.Move, error) {
	board, ok := b.(*Board)
	if !ok {
		return game.Move{}, fmt.Errorf("cardduel: unexpected board %T", b)
	}
	if board.phase != PhaseDealer || slot != game.Slot2 {
		return game.Move{}, game.ErrNoMoves
	}
	if board.dealer.Total() < DealerStand {
		return game.Move{Action: game.ActionHit}, nil
	}
	return game.Move{Action: game.ActionStand}, nil
}
