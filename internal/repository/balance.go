package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arena-game-bot/internal/model"
)

// BalanceRepository handles per-currency balances. Every change is written
// together with its transaction row in one database transaction.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

// NewBalanceRepository creates a new BalanceRepository instance.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

// Open creates the user's balance in currency with an initial amount, unless it
// already exists. The boolean reports whether it was created by this call.
func (r *BalanceRepository) Open(ctx context.Context, userID int64, currency string, initial int64) (*model.Balance, bool, error) {
	const insert = `
		INSERT INTO balances (user_id, currency, amount, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, currency) DO NOTHING
		RETURNING user_id, currency, amount, updated_at
	`

	var bal model.Balance
	created := false
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insert, userID, currency, initial).Scan(
			&bal.UserID,
			&bal.Currency,
			&bal.Amount,
			&bal.UpdatedAt,
		)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		created = true
		if initial == 0 {
			return nil
		}
		desc := "初始余额"
		_, err = insertTransaction(ctx, tx, userID, currency, initial, model.TxTypeInitial, nil, &desc)
		return err
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to open balance: %w", err)
	}

	if !created {
		existing, err := r.Get(ctx, userID, currency)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	return &bal, true, nil
}

// Get retrieves a user's balance in currency.
// Returns ErrBalanceNotFound if no balance was opened.
func (r *BalanceRepository) Get(ctx context.Context, userID int64, currency string) (*model.Balance, error) {
	const query = `
		SELECT user_id, currency, amount, updated_at
		FROM balances
		WHERE user_id = $1 AND currency = $2
	`

	var bal model.Balance
	err := r.pool.QueryRow(ctx, query, userID, currency).Scan(
		&bal.UserID,
		&bal.Currency,
		&bal.Amount,
		&bal.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBalanceNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	return &bal, nil
}

// Adjust adds delta to the balance and records a transaction of txType.
// A debit that would take the balance below zero fails with ErrInsufficientFunds
// and changes nothing.
func (r *BalanceRepository) Adjust(ctx context.Context, userID int64, currency string, delta int64, txType string, sessionID, description *string) (int64, error) {
	if delta == 0 {
		return 0, ErrInvalidAdjustment
	}

	const update = `
		UPDATE balances
		SET amount = amount + $3, updated_at = NOW()
		WHERE user_id = $1 AND currency = $2 AND amount + $3 >= 0
		RETURNING amount
	`

	var amount int64
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, update, userID, currency, delta).Scan(&amount)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrShort(ctx, tx, userID, currency)
		}
		if err != nil {
			return err
		}
		_, err = insertTransaction(ctx, tx, userID, currency, delta, txType, sessionID, description)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) || errors.Is(err, ErrBalanceNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}

	return amount, nil
}

// missOrShort tells a missing balance apart from one that is too small.
func (r *BalanceRepository) missOrShort(ctx context.Context, q querier, userID int64, currency string) error {
	const query = `SELECT EXISTS(SELECT 1 FROM balances WHERE user_id = $1 AND currency = $2)`

	var exists bool
	if err := q.QueryRow(ctx, query, userID, currency).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check balance existence: %w", err)
	}
	if !exists {
		return ErrBalanceNotFound
	}
	return ErrInsufficientFunds
}
