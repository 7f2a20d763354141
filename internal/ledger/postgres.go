package ledger

import (
	"context"
	"errors"
	"fmt"

	"arena-game-bot/internal/model"
	"arena-game-bot/internal/repository"
)

// Postgres is a Ledger backed by the balances and transactions tables.
// Every adjustment writes a transaction row typed from the context memo.
type Postgres struct {
	balances *repository.BalanceRepository
}

// NewPostgres creates a Postgres ledger.
func NewPostgres(balances *repository.BalanceRepository) *Postgres {
	return &Postgres{balances: balances}
}

// Balance implements Ledger.
func (p *Postgres) Balance(ctx context.Context, participant int64, currency string) (int64, error) {
	bal, err := p.balances.Get(ctx, participant, currency)
	if err != nil {
		if errors.Is(err, repository.ErrBalanceNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return bal.Amount, nil
}

// Adjust implements Ledger.
func (p *Postgres) Adjust(ctx context.Context, participant int64, currency string, delta int64) (int64, error) {
	txType := model.TxTypeAdjust
	var sessionID *string
	if memo, ok := MemoFrom(ctx); ok {
		if memo.Type != "" {
			txType = memo.Type
		}
		if memo.SessionID != "" {
			sessionID = &memo.SessionID
		}
	}

	amount, err := p.balances.Adjust(ctx, participant, currency, delta, txType, sessionID, nil)
	switch {
	case err == nil:
		return amount, nil
	case errors.Is(err, repository.ErrInsufficientFunds):
		return 0, ErrInsufficientFunds
	case errors.Is(err, repository.ErrBalanceNotFound):
		// An account that was never opened cannot cover a debit.
		if delta < 0 {
			return 0, ErrInsufficientFunds
		}
		return 0, ErrAccountNotFound
	default:
		return 0, fmt.Errorf("ledger adjust: %w", err)
	}
}
