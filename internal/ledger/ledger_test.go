package ledger

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"pgregory.net/rapid"

	"arena-game-bot/internal/model"
	"arena-game-bot/internal/pkg/lock"
	"arena-game-bot/internal/repository"
)

const coins = "coins"

func TestMemory_Adjust(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	m.Open(1, coins, 100)

	bal, err := m.Adjust(ctx, 1, coins, -40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), bal)

	_, err = m.Adjust(ctx, 1, coins, -61)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err = m.Balance(ctx, 1, coins)
	require.NoError(t, err)
	assert.Equal(t, int64(60), bal, "failed debit leaves the balance untouched")

	_, err = m.Balance(ctx, 2, coins)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = m.Adjust(ctx, 2, coins, -1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	bal, err = m.Adjust(ctx, 2, coins, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), bal)
}

func TestMemory_RecordsMemo(t *testing.T) {
	m := NewMemory()
	m.Open(1, coins, 100)

	ctx := WithMemo(context.Background(), Memo{Type: model.TxTypeWagerEscrow, SessionID: "s"})
	_, err := m.Adjust(ctx, 1, coins, -30)
	require.NoError(t, err)
	_, err = m.Adjust(WithMemo(context.Background(), Memo{Type: model.TxTypeWagerCredit, SessionID: "s"}), 1, coins, 60)
	require.NoError(t, err)

	entries := m.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, model.TxTypeWagerEscrow, entries[0].Memo.Type)
	assert.Equal(t, int64(30), entries[0].Delta+entries[1].Delta)
	assert.Equal(t, "s", entries[1].Memo.SessionID)
}

func TestMemory_AdjustWaitsForParticipantLock(t *testing.T) {
	m := NewMemory()
	m.Open(1, coins, 100)
	m.lockTimeout = 20 * time.Millisecond

	m.locks.Lock(1)
	_, err := m.Adjust(context.Background(), 1, coins, -10)
	assert.ErrorIs(t, err, lock.ErrLockTimeout)

	m.lockTimeout = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = m.Adjust(ctx, 1, coins, -10)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = m.Adjust(context.Background(), 2, coins, 10)
	require.NoError(t, err, "other participants are not blocked")
	m.locks.Unlock(1)

	require.Eventually(t, func() bool {
		bal, err := m.Adjust(context.Background(), 1, coins, -10)
		return err == nil && bal == 90
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, m.Entries(), 2)
}

func TestMemory_FailAdjust(t *testing.T) {
	m := NewMemory()
	m.Open(1, coins, 100)
	boom := errors.New("boom")
	m.FailAdjust = func(participant int64, currency string, delta int64) error {
		if delta > 0 {
			return boom
		}
		return nil
	}

	_, err := m.Adjust(context.Background(), 1, coins, 10)
	assert.ErrorIs(t, err, boom)
	_, err = m.Adjust(context.Background(), 1, coins, -10)
	assert.NoError(t, err)
}

// TestMemoryNeverOverdrawsProperty runs concurrent debits and credits and checks
// the final balance matches the accepted operations and never goes negative.
func TestMemoryNeverOverdrawsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		initial := rapid.Int64Range(0, 500).Draw(t, "initial")
		deltas := rapid.SliceOfN(rapid.Int64Range(-200, 200), 1, 30).Draw(t, "deltas")

		m := NewMemory()
		m.Open(1, coins, initial)

		var wg sync.WaitGroup
		for _, d := range deltas {
			if d == 0 {
				continue
			}
			wg.Add(1)
			go func(d int64) {
				defer wg.Done()
				_, _ = m.Adjust(context.Background(), 1, coins, d)
			}(d)
		}
		wg.Wait()

		expected := initial
		for _, e := range m.Entries() {
			expected += e.Delta
		}
		bal, err := m.Balance(context.Background(), 1, coins)
		if err != nil {
			t.Fatal(err)
		}
		if bal != expected || bal < 0 {
			t.Fatalf("balance %d, entries sum to %d", bal, expected)
		}
	})
}

func setupPostgres(t *testing.T) (*pgxpool.Pool, func()) {
	if err := exec.Command("docker", "info").Run(); err != nil {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()
	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(ctx, pool))

	return pool, func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
}

func TestPostgres_Adjust(t *testing.T) {
	pool, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	users := repository.NewUserRepository(pool)
	balances := repository.NewBalanceRepository(pool)
	txs := repository.NewTransactionRepository(pool)
	l := NewPostgres(balances)

	_, err := users.Create(ctx, 1, "alice")
	require.NoError(t, err)
	_, _, err = balances.Open(ctx, 1, coins, 100)
	require.NoError(t, err)

	escrow := WithMemo(ctx, Memo{Type: model.TxTypeWagerEscrow, SessionID: "s-1"})
	bal, err := l.Adjust(escrow, 1, coins, -100)
	require.NoError(t, err)
	assert.Zero(t, bal)

	_, err = l.Adjust(escrow, 1, coins, -1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = l.Adjust(escrow, 2, coins, -1)
	assert.ErrorIs(t, err, ErrInsufficientFunds, "unknown account cannot pay")

	_, err = l.Balance(ctx, 2, coins)
	assert.ErrorIs(t, err, ErrAccountNotFound)

	_, err = l.Adjust(WithMemo(ctx, Memo{Type: model.TxTypeWagerCredit, SessionID: "s-1"}), 1, coins, 200)
	require.NoError(t, err)

	bal, err = l.Balance(ctx, 1, coins)
	require.NoError(t, err)
	assert.Equal(t, int64(200), bal)

	rows, err := txs.GetBySession(ctx, "s-1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, model.TxTypeWagerEscrow, rows[0].Type)
	assert.Equal(t, model.TxTypeWagerCredit, rows[1].Type)
}
