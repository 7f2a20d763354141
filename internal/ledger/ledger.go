// Package ledger is the balance store the session engine draws wagers from.
// Each call is atomic on its own; there is no multi-call transaction, so callers
// that move money between several participants sequence and compensate themselves.
package ledger

import (
	"context"
	"errors"
)

// Ledger errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")
)

// Ledger reads and adjusts per-currency balances.
type Ledger interface {
	// Balance returns the participant's balance in currency.
	Balance(ctx context.Context, participant int64, currency string) (int64, error)

	// Adjust adds delta to the balance and returns the new balance.
	// A debit that would go below zero fails with ErrInsufficientFunds and changes nothing.
	Adjust(ctx context.Context, participant int64, currency string, delta int64) (int64, error)
}

// Memo describes why an adjustment happens. Ledgers that keep history record it.
type Memo struct {
	Type      string
	SessionID string
}

type memoKey struct{}

// WithMemo attaches m to ctx for the next Adjust.
func WithMemo(ctx context.Context, m Memo) context.Context {
	return context.WithValue(ctx, memoKey{}, m)
}

// MemoFrom returns the memo attached to ctx, if any.
func MemoFrom(ctx context.Context) (Memo, bool) {
	m, ok := ctx.Value(memoKey{}).(Memo)
	return m, ok
}
