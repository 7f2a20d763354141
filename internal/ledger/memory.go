package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"arena-game-bot/internal/pkg/lock"
)

// DefaultLockTimeout bounds how long Adjust waits behind another adjustment of
// the same participant.
const DefaultLockTimeout = 5 * time.Second

type bucket struct {
	participant int64
	currency    string
}

// Entry is one recorded adjustment of a Memory ledger.
type Entry struct {
	Participant int64
	Currency    string
	Delta       int64
	Memo        Memo
	At          time.Time
}

// Memory is an in-process Ledger. Accounts are opened on first credit or with Open;
// a debit against an unknown account fails with ErrInsufficientFunds.
type Memory struct {
	locks       *lock.ParticipantLock
	lockTimeout time.Duration
	clock       clockwork.Clock

	mu       sync.RWMutex
	balances map[bucket]int64
	entries  []Entry

	// FailAdjust, when set, is consulted before every Adjust; a non-nil error
	// aborts the adjustment. Used to simulate a failing backend.
	FailAdjust func(participant int64, currency string, delta int64) error
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return NewMemoryWithClock(clockwork.NewRealClock())
}

// NewMemoryWithClock creates an empty in-memory ledger stamping entries with clock.
func NewMemoryWithClock(clock clockwork.Clock) *Memory {
	return &Memory{
		locks:       lock.New(),
		lockTimeout: DefaultLockTimeout,
		clock:       clock,
		balances:    make(map[bucket]int64),
	}
}

// Open sets the participant's opening balance if the account does not exist yet.
func (m *Memory) Open(participant int64, currency string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := bucket{participant, currency}
	if _, ok := m.balances[k]; !ok {
		m.balances[k] = amount
	}
}

// Balance implements Ledger.
func (m *Memory) Balance(_ context.Context, participant int64, currency string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bal, ok := m.balances[bucket{participant, currency}]
	if !ok {
		return 0, ErrAccountNotFound
	}
	return bal, nil
}

// Adjust implements Ledger. It gives up with the context error or
// lock.ErrLockTimeout if another adjustment of the participant holds on too long.
func (m *Memory) Adjust(ctx context.Context, participant int64, currency string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := m.locks.LockContext(ctx, participant, m.lockTimeout); err != nil {
		return 0, err
	}
	defer m.locks.Unlock(participant)

	if m.FailAdjust != nil {
		if err := m.FailAdjust(participant, currency, delta); err != nil {
			return 0, err
		}
	}

	// The participant lock makes this read-check-write atomic; mu only guards the maps.
	k := bucket{participant, currency}
	m.mu.RLock()
	next := m.balances[k] + delta
	m.mu.RUnlock()
	if next < 0 {
		return 0, ErrInsufficientFunds
	}

	memo, _ := MemoFrom(ctx)
	m.mu.Lock()
	m.balances[k] = next
	m.entries = append(m.entries, Entry{Participant: participant, Currency: currency, Delta: delta, Memo: memo, At: m.clock.Now()})
	m.mu.Unlock()
	return next, nil
}

// Entries returns a copy of every recorded adjustment, oldest first.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Entry(nil), m.entries...)
}
