package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"arena-game-bot/internal/game"
	"arena-game-bot/internal/ledger"
	"arena-game-bot/internal/model"
)

// Holding is the money a session has taken from its participants.
// It is closed by exactly one Settle or Refund.
type Holding struct {
	SessionID string
	Currency  string

	paid   map[int64]int64
	closed bool
}

// NewHolding creates an empty holding for a session.
func NewHolding(sessionID, currency string) *Holding {
	return &Holding{SessionID: sessionID, Currency: currency, paid: make(map[int64]int64)}
}

func (h *Holding) payers() []int64 {
	ids := make([]int64, 0, len(h.paid))
	for id, v := range h.paid {
		if v > 0 {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Escrow moves wagers between the ledger and session holdings.
// Ledger calls are the only side effects; holdings are not safe for concurrent use
// and are guarded by the owning session's lock.
type Escrow struct {
	ledger ledger.Ledger
}

// NewEscrow creates an Escrow drawing from l.
func NewEscrow(l ledger.Ledger) *Escrow {
	return &Escrow{ledger: l}
}

// Hold debits amount from each human participant in order. If any debit fails,
// everything already in the holding, from this call or earlier ones, is refunded
// before ErrInsufficientFunds (or ErrLedgerUnavailable) is returned.
func (e *Escrow) Hold(ctx context.Context, h *Holding, amount int64, participants ...int64) error {
	if h.closed {
		return fmt.Errorf("holding for session %s is closed", h.SessionID)
	}
	if amount <= 0 {
		return nil
	}

	memo := ledger.WithMemo(ctx, ledger.Memo{Type: model.TxTypeWagerEscrow, SessionID: h.SessionID})
	for _, p := range participants {
		if p == game.House {
			continue
		}
		if _, err := e.ledger.Adjust(memo, p, h.Currency, -amount); err != nil {
			log.Info().
				Err(err).
				Str("session_id", h.SessionID).
				Int64("participant", p).
				Int64("amount", amount).
				Msg("Escrow debit refused, rolling back holding")

			if rbErr := e.rollback(context.WithoutCancel(ctx), h); rbErr != nil {
				return errors.Join(debitError(p, err), rbErr)
			}
			return debitError(p, err)
		}
		h.paid[p] += amount
	}
	return nil
}

// Raise debits an additional stake from one participant. Nothing else in the
// holding is touched if it fails.
func (e *Escrow) Raise(ctx context.Context, h *Holding, participant, amount int64) error {
	if amount <= 0 || participant == game.House {
		return nil
	}
	memo := ledger.WithMemo(ctx, ledger.Memo{Type: model.TxTypeWagerEscrow, SessionID: h.SessionID})
	if _, err := e.ledger.Adjust(memo, participant, h.Currency, -amount); err != nil {
		return debitError(participant, err)
	}
	h.paid[participant] += amount
	return nil
}

// Return gives back part of one participant's stake, undoing a Raise whose move
// could not be applied. The amount leaves the holding even if the credit fails.
func (e *Escrow) Return(ctx context.Context, h *Holding, participant, amount int64) error {
	if amount <= 0 || h.paid[participant] < amount {
		return nil
	}
	h.paid[participant] -= amount
	return e.credit(ctx, h, participant, amount, model.TxTypeWagerRefund)
}

// Refund returns every participant's stake and closes the holding.
func (e *Escrow) Refund(ctx context.Context, h *Holding) error {
	if h.closed {
		return nil
	}
	h.closed = true
	return e.rollback(ctx, h)
}

// rollback credits every payer once. A stake whose credit fails is dropped from
// the holding all the same: it is logged for an operator and must not be paid
// again by a later Refund.
func (e *Escrow) rollback(ctx context.Context, h *Holding) error {
	var errs []error
	for _, p := range h.payers() {
		amount := h.paid[p]
		h.paid[p] = 0
		if err := e.credit(ctx, h, p, amount, model.TxTypeWagerRefund); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Settle pays out the finished session and closes the holding. Every credit is
// attempted once; failures are logged for an operator and never retried.
func (e *Escrow) Settle(ctx context.Context, h *Holding, payouts map[int64]int64) error {
	if h.closed {
		return nil
	}
	h.closed = true

	ids := make([]int64, 0, len(payouts))
	for id := range payouts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var errs []error
	for _, p := range ids {
		if err := e.credit(ctx, h, p, payouts[p], model.TxTypeWagerCredit); err != nil {
			errs = append(errs, err)
		}
	}
	for p := range h.paid {
		h.paid[p] = 0
	}
	return errors.Join(errs...)
}

func debitError(participant int64, err error) error {
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		return fmt.Errorf("%w: participant %d", ErrInsufficientFunds, participant)
	}
	return fmt.Errorf("%w: participant %d: %w", ErrLedgerUnavailable, participant, err)
}

func (e *Escrow) credit(ctx context.Context, h *Holding, participant, amount int64, txType string) error {
	if amount <= 0 || participant == game.House {
		return nil
	}
	memo := ledger.WithMemo(ctx, ledger.Memo{Type: txType, SessionID: h.SessionID})
	if _, err := e.ledger.Adjust(memo, participant, h.Currency, amount); err != nil {
		log.Error().
			Err(err).
			Str("session_id", h.SessionID).
			Int64("participant", participant).
			Str("currency", h.Currency).
			Int64("amount", amount).
			Str("type", txType).
			Bool("operator_action_required", true).
			Msg("Ledger credit failed")
		return fmt.Errorf("%w: %d to participant %d: %v", ErrPayoutFailed, amount, participant, err)
	}
	return nil
}
