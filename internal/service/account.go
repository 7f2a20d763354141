// Package service provides business logic implementations.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"arena-game-bot/internal/ledger"
	"arena-game-bot/internal/model"
)

// Common errors for account operations.
var (
	ErrAccountNotFound = errors.New("account not found")
)

// AccountStore opens accounts and reads their history.
type AccountStore interface {
	// Open registers the user and opens their balance in currency with initial,
	// unless it is already open. The boolean reports whether it was opened now.
	Open(ctx context.Context, telegramID int64, username, currency string, initial int64) (bool, error)

	// History returns the user's transactions, newest first.
	History(ctx context.Context, telegramID int64, limit int) ([]*model.Transaction, error)
}

// AccountService handles user accounts and balances.
type AccountService struct {
	store    AccountStore
	ledger   ledger.Ledger
	currency string
	initial  int64
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(store AccountStore, l ledger.Ledger, currency string, initialBalance int64) *AccountService {
	return &AccountService{
		store:    store,
		ledger:   l,
		currency: currency,
		initial:  initialBalance,
	}
}

// Currency returns the currency accounts are opened in.
func (s *AccountService) Currency() string { return s.currency }

// EnsureUser makes sure the user has an open account, creating one with the
// initial balance on first contact.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username string) (bool, error) {
	created, err := s.store.Open(ctx, telegramID, username, s.currency, s.initial)
	if err != nil {
		return false, fmt.Errorf("failed to ensure user: %w", err)
	}
	if created {
		log.Info().
			Int64("user_id", telegramID).
			Str("username", username).
			Int64("initial_balance", s.initial).
			Msg("Account opened")
	}
	return created, nil
}

// GetBalance returns the user's balance.
func (s *AccountService) GetBalance(ctx context.Context, telegramID int64) (int64, error) {
	bal, err := s.ledger.Balance(ctx, telegramID, s.currency)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// History returns the user's most recent transactions.
func (s *AccountService) History(ctx context.Context, telegramID int64, limit int) ([]*model.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	txs, err := s.store.History(ctx, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return txs, nil
}
