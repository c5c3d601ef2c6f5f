package memory

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

// TxManager implements usecase.TransactionManager.
type TxManager struct {
	store *Store
}

// Begin starts a new transaction.
func (m *TxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Tx{
		store:     m.store,
		accounts:  make(map[snowflake.ID]struct{}),
		trades:    make(map[int64]struct{}),
		inventory: make(map[inventoryKey]stagedLine),
		currency:  make(map[currencyKey]stagedBalance),
		tradeRows: make(map[int64]*domain.Trade),
	}, nil
}

type stagedLine struct {
	printing domain.Printing
	qty      int64
	at       time.Time
}

type stagedBalance struct {
	amount int64
	at     time.Time
}

// Tx holds row locks and staged writes until Commit or Rollback.
type Tx struct {
	store *Store

	mu        sync.Mutex
	done      bool
	accounts  map[snowflake.ID]struct{}
	trades    map[int64]struct{}
	inventory map[inventoryKey]stagedLine
	currency  map[currencyKey]stagedBalance
	tradeRows map[int64]*domain.Trade
	outbox    []*domain.OutboxEvent
}

// Commit publishes staged writes and releases every lock.
func (t *Tx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return ErrTxDone
	}

	if err := ctx.Err(); err != nil {
		t.finish()
		return err
	}

	s := t.store
	s.mu.Lock()

	for k, st := range t.inventory {
		line, ok := s.inventory[k]
		if !ok {
			line = &domain.InventoryLine{AccountID: k.account, Printing: st.printing}
			s.inventory[k] = line
		}

		line.Quantity = st.qty
		line.UpdatedAt = st.at
	}

	for k, st := range t.currency {
		bal, ok := s.currency[k]
		if !ok {
			bal = &domain.CurrencyBalance{AccountID: k.account, CurrencyKey: k.key}
			s.currency[k] = bal
		}

		bal.Amount = st.amount
		bal.UpdatedAt = st.at
	}

	for id, trade := range t.tradeRows {
		s.trades[id] = trade
	}

	s.outbox = append(s.outbox, t.outbox...)
	s.mu.Unlock()

	t.finish()

	return nil
}

// Rollback discards staged writes. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		return nil
	}

	t.finish()

	return nil
}

func (t *Tx) finish() {
	t.done = true

	for id := range t.accounts {
		t.store.accountLocks.release(id)
	}

	for id := range t.trades {
		t.store.tradeLocks.release(id)
	}

	t.accounts = nil
	t.trades = nil
	t.inventory = nil
	t.currency = nil
	t.tradeRows = nil
	t.outbox = nil
}

func (t *Tx) lockAccount(ctx context.Context, id snowflake.ID) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxDone
	}

	_, held := t.accounts[id]
	t.mu.Unlock()

	if held {
		return nil
	}

	if err := t.store.accountLocks.acquire(ctx, id); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		t.store.accountLocks.release(id)
		return ErrTxDone
	}

	t.accounts[id] = struct{}{}

	return nil
}

func (t *Tx) lockTrade(ctx context.Context, id int64) error {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return ErrTxDone
	}

	_, held := t.trades[id]
	t.mu.Unlock()

	if held {
		return nil
	}

	if err := t.store.tradeLocks.acquire(ctx, id); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.done {
		t.store.tradeLocks.release(id)
		return ErrTxDone
	}

	t.trades[id] = struct{}{}

	return nil
}

// AccountLocker implements usecase.AccountLocker.
type AccountLocker struct {
	store *Store
}

// LockAccounts locks ids in the given order for the lifetime of tx.
func (l *AccountLocker) LockAccounts(ctx context.Context, tx usecase.Transaction, ids []snowflake.ID) error {
	t, err := l.store.txFrom(tx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := t.lockAccount(ctx, id); err != nil {
			return err
		}
	}

	return nil
}
