package engine

import (
	"errors"

	"arena-game-bot/internal/game"
)

// Caller errors. None of them change session state.
var (
	ErrIllegalMove       = game.ErrIllegalMove
	ErrNotYourTurn       = errors.New("not your turn")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrAlreadyInSession  = errors.New("participant is already in a session")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrSessionNotFound   = errors.New("session not found")
	ErrNotInvitee        = errors.New("only the invited participant can accept")
	ErrNotParticipant    = errors.New("not a participant of this session")
	ErrInvalidOpponent   = errors.New("invalid opponent")
	ErrUnknownGame       = errors.New("unknown game")
	ErrInvalidWager      = errors.New("invalid wager")
	ErrReplayUnavailable = errors.New("replay is not available")
	ErrClosed            = errors.New("engine is closed")
)

// ErrLedgerUnavailable means a debit failed for a reason other than the balance,
// such as a storage outage. Nothing was taken.
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// ErrPayoutFailed means a credit to a participant did not go through. The session
// is still finished; the missing credit needs an operator.
var ErrPayoutFailed = errors.New("payout failed")
