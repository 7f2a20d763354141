package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"arena-game-bot/internal/model"
)

// TransactionRepository handles transaction history and daily stats.
type TransactionRepository struct {
	pool *pgxpool.Pool
}

// NewTransactionRepository creates a new TransactionRepository instance.
func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

const transactionColumns = `id, user_id, currency, amount, type, session_id, description, created_at`

func insertTransaction(ctx context.Context, q querier, userID int64, currency string, amount int64, txType string, sessionID, description *string) (*model.Transaction, error) {
	const query = `
		INSERT INTO transactions (user_id, currency, amount, type, session_id, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + transactionColumns

	tx, err := scanTransaction(q.QueryRow(ctx, query, userID, currency, amount, txType, sessionID, description))
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return tx, nil
}

func scanTransaction(row pgx.Row) (*model.Transaction, error) {
	var tx model.Transaction
	err := row.Scan(
		&tx.ID,
		&tx.UserID,
		&tx.Currency,
		&tx.Amount,
		&tx.Type,
		&tx.SessionID,
		&tx.Description,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func collectTransactions(rows pgx.Rows) ([]*model.Transaction, error) {
	defer rows.Close()

	var transactions []*model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// Create records a transaction without touching any balance.
func (r *TransactionRepository) Create(ctx context.Context, userID int64, currency string, amount int64, txType string, sessionID, description *string) (*model.Transaction, error) {
	return insertTransaction(ctx, r.pool, userID, currency, amount, txType, sessionID, description)
}

// GetByUserID retrieves a user's transactions, newest first.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID int64, limit int) ([]*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return collectTransactions(rows)
}

// GetBySession retrieves every transaction recorded for a game session, oldest first.
func (r *TransactionRepository) GetBySession(ctx context.Context, sessionID string) ([]*model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE session_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session transactions: %w", err)
	}
	return collectTransactions(rows)
}

// GetDailyWinners retrieves the users with the highest positive net wager result for a date.
func (r *TransactionRepository) GetDailyWinners(ctx context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error) {
	return r.dailyRanks(ctx, currency, date, limit, `HAVING SUM(t.amount) > 0 ORDER BY net_profit DESC`)
}

// GetDailyLosers retrieves the users with the largest net wager loss for a date.
func (r *TransactionRepository) GetDailyLosers(ctx context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error) {
	return r.dailyRanks(ctx, currency, date, limit, `HAVING SUM(t.amount) < 0 ORDER BY net_profit ASC`)
}

func (r *TransactionRepository) dailyRanks(ctx context.Context, currency string, date time.Time, limit int, having string) ([]*model.DailyRank, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	query := `
		SELECT t.user_id, u.username, COALESCE(SUM(t.amount), 0) AS net_profit
		FROM transactions t
		JOIN users u ON t.user_id = u.telegram_id
		WHERE t.type = ANY($1)
		  AND t.currency = $2
		  AND t.created_at >= $3
		  AND t.created_at < $4
		GROUP BY t.user_id, u.username
		` + having + `
		LIMIT $5
	`

	rows, err := r.pool.Query(ctx, query, model.WagerTransactionTypes(), currency, startOfDay, endOfDay, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily ranks: %w", err)
	}
	defer rows.Close()

	var ranks []*model.DailyRank
	for rows.Next() {
		var rank model.DailyRank
		if err := rows.Scan(&rank.UserID, &rank.Username, &rank.NetProfit); err != nil {
			return nil, fmt.Errorf("failed to scan daily rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily ranks: %w", err)
	}

	return ranks, nil
}
