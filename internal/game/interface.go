// Package game defines the board contracts and shared types for the session engine.
// Every playable game implements Rules, which hands out a fresh Board per session
// and the automated Opponent that plays the House slot.
package game

import (
	"errors"
	"time"
)

// House is the participant id of the automated opponent.
// Real participants are Telegram user ids and are never zero.
const House int64 = 0

// Errors shared by all boards.
var (
	ErrIllegalMove = errors.New("illegal move")
	ErrNoMoves     = errors.New("no legal moves available")
)

// GameType identifies one of the supported games.
type GameType string

const (
	ThreeInRow GameType = "threeinrow"
	FourInRow  GameType = "fourinrow"
	CardDuel   GameType = "cardduel"
)

// Slot is one of the two fixed seats of a session.
type Slot int

const (
	Slot1 Slot = 0 // first mover, always the inviter
	Slot2 Slot = 1
)

// Other returns the opposite slot.
func (s Slot) Other() Slot {
	if s == Slot1 {
		return Slot2
	}
	return Slot1
}

func (s Slot) String() string {
	if s == Slot1 {
		return "slot1"
	}
	return "slot2"
}

// Outcome is the result of a finished session.
type Outcome int

const (
	Unresolved Outcome = iota
	Slot1Wins
	Slot2Wins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case Slot1Wins:
		return "slot1_wins"
	case Slot2Wins:
		return "slot2_wins"
	case Draw:
		return "draw"
	default:
		return "unresolved"
	}
}

// WinFor returns the outcome in which slot s wins.
func WinFor(s Slot) Outcome {
	if s == Slot1 {
		return Slot1Wins
	}
	return Slot2Wins
}

// Action is a card duel player or dealer action.
type Action string

const (
	ActionNone   Action = ""
	ActionHit    Action = "hit"
	ActionStand  Action = "stand"
	ActionDouble Action = "double"
	ActionSplit  Action = "split"
)

// Move is a single submitted move.
// Position is the cell (ThreeInRow) or column (FourInRow); Action is used by CardDuel.
type Move struct {
	Position int
	Action   Action
}

// Board is the mutable state of one session's game.
// Implementations are not safe for concurrent use; the engine serializes access.
type Board interface {
	// FirstToMove returns the slot expected to act on a freshly dealt board.
	FirstToMove() Slot

	// Validate reports ErrIllegalMove if slot may not play m right now.
	Validate(slot Slot, m Move) error

	// Apply plays m for slot. again is true when the same slot keeps the turn.
	Apply(slot Slot, m Move) (again bool, err error)

	// Moves enumerates the legal moves for slot.
	Moves(slot Slot) []Move

	// Outcome is Unresolved until the board reaches a terminal position.
	Outcome() Outcome

	// Payouts returns the amount credited to each slot for the given outcome.
	// outcome may differ from Outcome() when a forfeit was forced.
	// humans marks which slots are held by real participants.
	Payouts(outcome Outcome, wager int64, humans [2]bool) [2]int64

	// Clone returns an independent deep copy.
	Clone() Board

	String() string
}

// Staker is implemented by boards where some moves require an additional wager
// to be escrowed before they are applied.
type Staker interface {
	ExtraStake(slot Slot, m Move) int64
}

// Opponent picks moves for the House.
type Opponent interface {
	ChooseMove(b Board, slot Slot) (Move, error)
}

// Rules describes one game type.
type Rules interface {
	// Type returns the game type handled by these rules.
	Type() GameType

	// Name returns the display name.
	Name() string

	// NewBoard deals a fresh board for a session staked at wager.
	NewBoard(wager int64) Board

	// Opponent returns the House decision function.
	Opponent() Opponent

	// HouseOnly reports whether the second slot must always be the House.
	HouseOnly() bool

	// MaxWager returns the maximum allowed wager, 0 for no maximum.
	MaxWager() int64

	// IdleTimeout is how long a human may sit on their turn before forfeiting.
	IdleTimeout() time.Duration

	// HouseDelay returns the pause before the House applies its next move.
	// Zero means the engine uses its configured thinking delay.
	HouseDelay() time.Duration
}

// StandardPayouts settles a two-player board: a human winner collects both stakes,
// a draw refunds each human, a loser gets nothing.
func StandardPayouts(outcome Outcome, wager int64, humans [2]bool) [2]int64 {
	var out [2]int64
	switch outcome {
	case Slot1Wins:
		if humans[Slot1] {
			out[Slot1] = 2 * wager
		}
	case Slot2Wins:
		if humans[Slot2] {
			out[Slot2] = 2 * wager
		}
	case Draw:
		for s := range out {
			if humans[s] {
				out[s] = wager
			}
		}
	}
	return out
}
