// Package memory is an in-process implementation of the storage interfaces.
// It keeps the same locking discipline as the Postgres adapter: row locks on
// trades and accounts held until the transaction ends, writes staged in the
// transaction and published on commit.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

var (
	ErrNoTransaction      = errors.New("memory: mutation requires a transaction")
	ErrForeignTransaction = errors.New("memory: transaction belongs to another store")
	ErrTxDone             = errors.New("memory: transaction already finished")
)

type inventoryKey struct {
	account  snowflake.ID
	printing string
}

type currencyKey struct {
	account snowflake.ID
	key     domain.CurrencyKey
}

// Store holds committed state. mu guards the maps only; row exclusivity
// comes from the lock tables.
type Store struct {
	mu        sync.RWMutex
	trades    map[int64]*domain.Trade
	inventory map[inventoryKey]*domain.InventoryLine
	currency  map[currencyKey]*domain.CurrencyBalance
	outbox    []*domain.OutboxEvent

	nextTradeID  atomic.Int64
	accountLocks *lockTable[snowflake.ID]
	tradeLocks   *lockTable[int64]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		trades:       make(map[int64]*domain.Trade),
		inventory:    make(map[inventoryKey]*domain.InventoryLine),
		currency:     make(map[currencyKey]*domain.CurrencyBalance),
		accountLocks: newLockTable[snowflake.ID](),
		tradeLocks:   newLockTable[int64](),
	}
}

// TxManager returns the store's transaction manager.
func (s *Store) TxManager() *TxManager { return &TxManager{store: s} }

// Trades returns the trade repository.
func (s *Store) Trades() *TradeRepository { return &TradeRepository{store: s} }

// Inventory returns the card inventory repository.
func (s *Store) Inventory() *InventoryRepository { return &InventoryRepository{store: s} }

// Currency returns the currency balance repository.
func (s *Store) Currency() *CurrencyRepository { return &CurrencyRepository{store: s} }

// Outbox returns the outbox repository.
func (s *Store) Outbox() *OutboxRepository { return &OutboxRepository{store: s} }

// Locker returns the account locker.
func (s *Store) Locker() *AccountLocker { return &AccountLocker{store: s} }

// Snapshot returns every committed balance keyed by account and item identity.
func (s *Store) Snapshot() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(s.inventory)+len(s.currency))
	for k, line := range s.inventory {
		out[k.account.String()+"/card/"+k.printing] = line.Quantity
	}

	for k, bal := range s.currency {
		out[k.account.String()+"/"+k.key.String()] = bal.Amount
	}

	return out
}

func (s *Store) txFrom(tx usecase.Transaction) (*Tx, error) {
	if tx == nil {
		return nil, ErrNoTransaction
	}

	t, ok := tx.(*Tx)
	if !ok || t.store != s {
		return nil, ErrForeignTransaction
	}

	return t, nil
}

// optionalTx is txFrom for reads, where a nil tx means committed state.
func (s *Store) optionalTx(tx usecase.Transaction) (*Tx, error) {
	if tx == nil {
		return nil, nil
	}

	return s.txFrom(tx)
}

// lockTable hands out one exclusive lock per key. Waiting respects ctx.
type lockTable[K comparable] struct {
	mu    sync.Mutex
	locks map[K]chan struct{}
}

func newLockTable[K comparable]() *lockTable[K] {
	return &lockTable[K]{locks: make(map[K]chan struct{})}
}

func (t *lockTable[K]) slot(k K) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch, ok := t.locks[k]
	if !ok {
		ch = make(chan struct{}, 1)
		t.locks[k] = ch
	}

	return ch
}

func (t *lockTable[K]) acquire(ctx context.Context, k K) error {
	select {
	case t.slot(k) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *lockTable[K]) release(k K) {
	<-t.slot(k)
}
