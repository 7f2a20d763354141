package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"arena-game-bot/internal/ledger"
	"arena-game-bot/internal/model"
	"arena-game-bot/internal/repository"
)

// PostgresStore keeps accounts in the users, balances and transactions tables.
type PostgresStore struct {
	users        *repository.UserRepository
	balances     *repository.BalanceRepository
	transactions *repository.TransactionRepository
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(
	users *repository.UserRepository,
	balances *repository.BalanceRepository,
	transactions *repository.TransactionRepository,
) *PostgresStore {
	return &PostgresStore{users: users, balances: balances, transactions: transactions}
}

// Open implements AccountStore.
func (s *PostgresStore) Open(ctx context.Context, telegramID int64, username, currency string, initial int64) (bool, error) {
	if _, _, err := s.users.Upsert(ctx, telegramID, username); err != nil {
		return false, err
	}

	_, opened, err := s.balances.Open(ctx, telegramID, currency, initial)
	if err != nil {
		return false, err
	}
	return opened, nil
}

// History implements AccountStore.
func (s *PostgresStore) History(ctx context.Context, telegramID int64, limit int) ([]*model.Transaction, error) {
	return s.transactions.GetByUserID(ctx, telegramID, limit)
}

// GetDailyWinners implements RankStore.
func (s *PostgresStore) GetDailyWinners(ctx context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error) {
	return s.transactions.GetDailyWinners(ctx, currency, date, limit)
}

// GetDailyLosers implements RankStore.
func (s *PostgresStore) GetDailyLosers(ctx context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error) {
	return s.transactions.GetDailyLosers(ctx, currency, date, limit)
}

// MemoryStore keeps accounts next to an in-memory ledger. Nothing survives a restart.
type MemoryStore struct {
	ledger *ledger.Memory

	mu    sync.RWMutex
	users map[int64]string
}

// NewMemoryStore creates a MemoryStore over l.
func NewMemoryStore(l *ledger.Memory) *MemoryStore {
	return &MemoryStore{ledger: l, users: make(map[int64]string)}
}

// Open implements AccountStore.
func (s *MemoryStore) Open(ctx context.Context, telegramID int64, username, currency string, initial int64) (bool, error) {
	s.mu.Lock()
	if username != "" || s.users[telegramID] == "" {
		s.users[telegramID] = username
	}
	s.mu.Unlock()

	if _, err := s.ledger.Balance(ctx, telegramID, currency); err == nil {
		return false, nil
	}
	s.ledger.Open(telegramID, currency, initial)
	return true, nil
}

// History implements AccountStore.
func (s *MemoryStore) History(_ context.Context, telegramID int64, limit int) ([]*model.Transaction, error) {
	entries := s.ledger.Entries()
	var txs []*model.Transaction
	for i := len(entries) - 1; i >= 0 && len(txs) < limit; i-- {
		e := entries[i]
		if e.Participant != telegramID {
			continue
		}
		tx := &model.Transaction{
			ID:        int64(i + 1),
			UserID:    e.Participant,
			Currency:  e.Currency,
			Amount:    e.Delta,
			Type:      e.Memo.Type,
			CreatedAt: e.At,
		}
		if tx.Type == "" {
			tx.Type = model.TxTypeAdjust
		}
		if e.Memo.SessionID != "" {
			id := e.Memo.SessionID
			tx.SessionID = &id
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

// GetDailyWinners implements RankStore.
func (s *MemoryStore) GetDailyWinners(_ context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error) {
	return s.dailyRanks(currency, date, limit, func(net int64) bool { return net > 0 }, func(a, b int64) int {
		return cmp.Compare(b, a)
	})
}

// GetDailyLosers implements RankStore.
func (s *MemoryStore) GetDailyLosers(_ context.Context, currency string, date time.Time, limit int) ([]*model.DailyRank, error) {
	return s.dailyRanks(currency, date, limit, func(net int64) bool { return net < 0 }, cmp.Compare[int64])
}

func (s *MemoryStore) dailyRanks(currency string, date time.Time, limit int, keep func(int64) bool, order func(a, b int64) int) ([]*model.DailyRank, error) {
	if limit < 0 {
		return nil, fmt.Errorf("invalid limit %d", limit)
	}
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)
	wagerTypes := model.WagerTransactionTypes()

	net := make(map[int64]int64)
	for _, e := range s.ledger.Entries() {
		if e.Currency != currency || !slices.Contains(wagerTypes, e.Memo.Type) {
			continue
		}
		if e.At.Before(startOfDay) || !e.At.Before(endOfDay) {
			continue
		}
		net[e.Participant] += e.Delta
	}

	s.mu.RLock()
	ranks := make([]*model.DailyRank, 0, len(net))
	for id, profit := range net {
		if keep(profit) {
			ranks = append(ranks, &model.DailyRank{UserID: id, Username: s.users[id], NetProfit: profit})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(ranks, func(a, b *model.DailyRank) int {
		if c := order(a.NetProfit, b.NetProfit); c != 0 {
			return c
		}
		return cmp.Compare(a.UserID, b.UserID)
	})
	if len(ranks) > limit {
		ranks = ranks[:limit]
	}
	return ranks, nil
}
