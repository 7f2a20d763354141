// Package model defines the persisted data models for the arena bot.
package model

import "time"

// User is a Telegram user known to the ledger.
type User struct {
	TelegramID int64     `db:"telegram_id"`
	Username   string    `db:"username"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Balance is a user's holding in one currency bucket.
type Balance struct {
	UserID    int64     `db:"user_id"`
	Currency  string    `db:"currency"`
	Amount    int64     `db:"amount"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Transaction represents a balance change record.
type Transaction struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Currency    string    `db:"currency"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	SessionID   *string   `db:"session_id"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// DailyRank is a user's net wager result for one day.
type DailyRank struct {
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	NetProfit int64  `db:"net_profit"`
}

// Transaction types for categorizing balance changes.
const (
	TxTypeInitial     = "initial"      // Opening balance on account creation
	TxTypeWagerEscrow = "wager_escrow" // Stake debited into a session
	TxTypeWagerRefund = "wager_refund" // Stake returned from a cancelled session or failed hold
	TxTypeWagerCredit = "wager_credit" // Settlement of a finished session
	TxTypeAdjust      = "adjust"       // Untyped adjustment
)

// WagerTransactionTypes returns the transaction types that count towards daily rankings.
func WagerTransactionTypes() []string {
	return []string{TxTypeWagerEscrow, TxTypeWagerRefund, TxTypeWagerCredit}
}
