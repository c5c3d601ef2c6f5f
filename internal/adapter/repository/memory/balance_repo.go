package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/usecase"
)

// InventoryRepository implements usecase.InventoryRepository.
type InventoryRepository struct {
	store *Store
}

func (r *InventoryRepository) quantity(t *Tx, k inventoryKey) int64 {
	if t != nil {
		t.mu.Lock()
		st, ok := t.inventory[k]
		t.mu.Unlock()

		if ok {
			return st.qty
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if line, ok := r.store.inventory[k]; ok {
		return line.Quantity
	}

	return 0
}

// GetQuantity returns how many copies of printing account owns.
func (r *InventoryRepository) GetQuantity(_ context.Context, tx usecase.Transaction, account snowflake.ID, printing domain.Printing) (int64, error) {
	t, err := r.store.optionalTx(tx)
	if err != nil {
		return 0, err
	}

	return r.quantity(t, inventoryKey{account: account, printing: printing.Key()}), nil
}

// Debit removes qty copies, failing if fewer exist.
func (r *InventoryRepository) Debit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, printing domain.Printing, qty int64, at time.Time) error {
	return r.apply(ctx, tx, account, printing, -qty, at)
}

// Credit adds qty copies.
func (r *InventoryRepository) Credit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, printing domain.Printing, qty int64, at time.Time) error {
	return r.apply(ctx, tx, account, printing, qty, at)
}

func (r *InventoryRepository) apply(ctx context.Context, tx usecase.Transaction, account snowflake.ID, printing domain.Printing, delta int64, at time.Time) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}

	if err := t.lockAccount(ctx, account); err != nil {
		return err
	}

	k := inventoryKey{account: account, printing: printing.Key()}

	next := r.quantity(t, k) + delta
	if next < 0 {
		return domain.ErrInsufficientFunds
	}

	t.mu.Lock()
	t.inventory[k] = stagedLine{printing: printing, qty: next, at: at}
	t.mu.Unlock()

	return nil
}

// ListByAccount lists the account's non-empty committed lines sorted by set, name and rarity.
func (r *InventoryRepository) ListByAccount(_ context.Context, account snowflake.ID) ([]domain.InventoryLine, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []domain.InventoryLine{}
	for k, line := range r.store.inventory {
		if k.account == account && line.Quantity > 0 {
			out = append(out, *line)
		}
	}

	slices.SortFunc(out, func(a, b domain.InventoryLine) int {
		return cmp.Or(
			cmp.Compare(a.Set, b.Set),
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(a.Rarity, b.Rarity),
			cmp.Compare(a.Key(), b.Key()),
		)
	})

	return out, nil
}

// CurrencyRepository implements usecase.CurrencyRepository.
type CurrencyRepository struct {
	store *Store
}

func (r *CurrencyRepository) amount(t *Tx, k currencyKey) int64 {
	if t != nil {
		t.mu.Lock()
		st, ok := t.currency[k]
		t.mu.Unlock()

		if ok {
			return st.amount
		}
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	if bal, ok := r.store.currency[k]; ok {
		return bal.Amount
	}

	return 0
}

// GetAmount returns the balance for key.
func (r *CurrencyRepository) GetAmount(_ context.Context, tx usecase.Transaction, account snowflake.ID, key domain.CurrencyKey) (int64, error) {
	t, err := r.store.optionalTx(tx)
	if err != nil {
		return 0, err
	}

	return r.amount(t, currencyKey{account: account, key: key}), nil
}

// Debit subtracts amount, failing if the balance is lower.
func (r *CurrencyRepository) Debit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, key domain.CurrencyKey, amount int64, at time.Time) error {
	return r.apply(ctx, tx, account, key, -amount, at)
}

// Credit adds amount.
func (r *CurrencyRepository) Credit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, key domain.CurrencyKey, amount int64, at time.Time) error {
	return r.apply(ctx, tx, account, key, amount, at)
}

func (r *CurrencyRepository) apply(ctx context.Context, tx usecase.Transaction, account snowflake.ID, key domain.CurrencyKey, delta int64, at time.Time) error {
	t, err := r.store.txFrom(tx)
	if err != nil {
		return err
	}

	if err := t.lockAccount(ctx, account); err != nil {
		return err
	}

	k := currencyKey{account: account, key: key}

	next := r.amount(t, k) + delta
	if next < 0 {
		return domain.ErrInsufficientFunds
	}

	t.mu.Lock()
	t.currency[k] = stagedBalance{amount: next, at: at}
	t.mu.Unlock()

	return nil
}

// ListByAccount lists the account's non-zero committed balances, token first.
func (r *CurrencyRepository) ListByAccount(_ context.Context, account snowflake.ID) ([]domain.CurrencyBalance, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []domain.CurrencyBalance{}
	for k, bal := range r.store.currency {
		if k.account == account && bal.Amount > 0 {
			out = append(out, *bal)
		}
	}

	slices.SortFunc(out, func(a, b domain.CurrencyBalance) int {
		return cmp.Or(
			cmp.Compare(currencyRank(a.Currency), currencyRank(b.Currency)),
			cmp.Compare(a.SetID, b.SetID),
		)
	})

	return out, nil
}

func currencyRank(c domain.CurrencyKind) int {
	if c == domain.CurrencyToken {
		return 0
	}

	return 1
}
