package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"arena-game-bot/internal/ledger"
	"arena-game-bot/internal/model"
)

const coins = "coins"

func TestAccountService_EnsureUserOpensOnce(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	svc := NewAccountService(NewMemoryStore(l), l, coins, 1000)

	_, err := svc.GetBalance(ctx, 7)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	created, err := svc.EnsureUser(ctx, 7, "neo")
	require.NoError(t, err)
	assert.True(t, created)

	_, err = l.Adjust(ctx, 7, coins, -300)
	require.NoError(t, err)

	created, err = svc.EnsureUser(ctx, 7, "neo")
	require.NoError(t, err)
	assert.False(t, created)

	bal, err := svc.GetBalance(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(700), bal, "second ensure does not reset the balance")
}

func TestAccountService_History(t *testing.T) {
	ctx := context.Background()
	l := ledger.NewMemory()
	svc := NewAccountService(NewMemoryStore(l), l, coins, 100)
	_, err := svc.EnsureUser(ctx, 1, "a")
	require.NoError(t, err)

	memo := ledger.WithMemo(ctx, ledger.Memo{Type: model.TxTypeWagerEscrow, SessionID: "s1"})
	_, err = l.Adjust(memo, 1, coins, -40)
	require.NoError(t, err)
	_, err = l.Adjust(ctx, 2, coins, 5)
	require.NoError(t, err)
	_, err = l.Adjust(ledger.WithMemo(ctx, ledger.Memo{Type: model.TxTypeWagerCredit, SessionID: "s1"}), 1, coins, 80)
	require.NoError(t, err)

	txs, err := svc.History(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, model.TxTypeWagerCredit, txs[0].Type, "newest first")
	assert.Equal(t, int64(80), txs[0].Amount)
	require.NotNil(t, txs[1].SessionID)
	assert.Equal(t, "s1", *txs[1].SessionID)

	txs, err = svc.History(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	other, err := svc.History(ctx, 2, 5)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, model.TxTypeAdjust, other[0].Type)
}

func TestRankingService_Today(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC))
	l := ledger.NewMemoryWithClock(clock)
	store := NewMemoryStore(l)
	for id, name := range map[int64]string{1: "ann", 2: "ben", 3: "cat"} {
		_, err := store.Open(ctx, id, name, coins, 1000)
		require.NoError(t, err)
	}

	adjust := func(p int64, txType string, delta int64) {
		t.Helper()
		_, err := l.Adjust(ledger.WithMemo(ctx, ledger.Memo{Type: txType, SessionID: "s"}), p, coins, delta)
		require.NoError(t, err)
	}

	adjust(1, model.TxTypeWagerEscrow, -100)
	adjust(1, model.TxTypeWagerCredit, 300)
	adjust(2, model.TxTypeWagerEscrow, -100)
	adjust(3, model.TxTypeAdjust, -500) // not a wager

	svc := NewRankingService(store, coins, time.UTC, clock)

	winners, err := svc.GetDailyWinners(ctx, 10)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, &model.DailyRank{UserID: 1, Username: "ann", NetProfit: 200}, winners[0])

	losers, err := svc.GetDailyLosers(ctx, 10)
	require.NoError(t, err)
	require.Len(t, losers, 1)
	assert.Equal(t, int64(2), losers[0].UserID)
	assert.Equal(t, int64(-100), losers[0].NetProfit)

	// After midnight the board starts over.
	clock.Advance(2 * time.Hour)
	winners, err = svc.GetDailyWinners(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, winners)
}

// TestDailyRanksProperty checks winners are positive and sorted descending,
// losers negative and sorted ascending, and every ranked net matches the entries.
func TestDailyRanksProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		l := ledger.NewMemory()
		store := NewMemoryStore(l)

		users := rapid.IntRange(1, 8).Draw(t, "users")
		for u := 1; u <= users; u++ {
			if _, err := store.Open(ctx, int64(u), fmt.Sprintf("u%d", u), coins, 10_000); err != nil {
				t.Fatal(err)
			}
		}

		expected := make(map[int64]int64)
		ops := rapid.IntRange(0, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			u := int64(rapid.IntRange(1, users).Draw(t, "user"))
			delta := rapid.Int64Range(-100, 100).Draw(t, "delta")
			if delta == 0 {
				continue
			}
			txType := model.TxTypeWagerEscrow
			if delta > 0 {
				txType = model.TxTypeWagerCredit
			}
			if _, err := l.Adjust(ledger.WithMemo(ctx, ledger.Memo{Type: txType}), u, coins, delta); err != nil {
				t.Fatal(err)
			}
			expected[u] += delta
		}

		limit := rapid.IntRange(0, 10).Draw(t, "limit")
		now := time.Now()

		winners, err := store.GetDailyWinners(ctx, coins, now, limit)
		if err != nil {
			t.Fatal(err)
		}
		losers, err := store.GetDailyLosers(ctx, coins, now, limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(winners) > limit || len(losers) > limit {
			t.Fatalf("limit %d exceeded: %d winners, %d losers", limit, len(winners), len(losers))
		}

		for i, r := range winners {
			if r.NetProfit <= 0 || r.NetProfit != expected[r.UserID] {
				t.Fatalf("winner %d has net %d, want positive %d", r.UserID, r.NetProfit, expected[r.UserID])
			}
			if i > 0 && winners[i-1].NetProfit < r.NetProfit {
				t.Fatalf("winners not descending at %d", i)
			}
		}
		for i, r := range losers {
			if r.NetProfit >= 0 || r.NetProfit != expected[r.UserID] {
				t.Fatalf("loser %d has net %d, want negative %d", r.UserID, r.NetProfit, expected[r.UserID])
			}
			if i > 0 && losers[i-1].NetProfit > r.NetProfit {
				t.Fatalf("losers not ascending at %d", i)
			}
		}
	})
}
