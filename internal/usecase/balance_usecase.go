package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/metrics"
)

// BalanceUseCase exposes the inventory and currency primitives directly.
// Every mutation locks the account for the duration of its transaction.
type BalanceUseCase struct {
	txManager TransactionManager
	locker    AccountLocker
	ledger    ledger
	metrics   *metrics.Metrics
	clock     Clock
}

// NewBalanceUseCase creates a new BalanceUseCase.
func NewBalanceUseCase(
	txManager TransactionManager,
	locker AccountLocker,
	inventoryRepo InventoryRepository,
	currencyRepo CurrencyRepository,
	metrics *metrics.Metrics,
) *BalanceUseCase {
	return &BalanceUseCase{
		txManager: txManager,
		locker:    locker,
		ledger:    ledger{inventory: inventoryRepo, currency: currencyRepo},
		metrics:   metrics,
		clock:     systemClock,
	}
}

// WithClock replaces the time source.
func (uc *BalanceUseCase) WithClock(clock Clock) *BalanceUseCase {
	uc.clock = clock
	return uc
}

// HasAtLeast reports whether account covers every item of bundle. When it
// does not, the first offending item is returned with its shortfall.
func (uc *BalanceUseCase) HasAtLeast(ctx context.Context, account snowflake.ID, bundle domain.Bundle) (bool, *domain.Shortfall, error) {
	sf, err := uc.ledger.shortfall(ctx, nil, account, bundle)
	if err != nil {
		return false, nil, err
	}

	return sf == nil, sf, nil
}

// Debit removes item from account, failing with *domain.InsufficientFundsError
// if the balance does not cover it.
func (uc *BalanceUseCase) Debit(ctx context.Context, account snowflake.ID, item domain.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	err := uc.inAccountTx(ctx, account, func(txCtx context.Context, tx Transaction) error {
		sf, err := uc.ledger.shortfall(txCtx, tx, account, domain.Bundle{item})
		if err != nil {
			return err
		}

		if sf != nil {
			return &domain.InsufficientFundsError{Account: account, Shortfall: *sf}
		}

		return uc.ledger.debit(txCtx, tx, account, item, uc.clock())
	})
	if err != nil {
		return err
	}

	uc.count("debit")

	return nil
}

// Credit adds item to account, creating the balance row if needed.
func (uc *BalanceUseCase) Credit(ctx context.Context, account snowflake.ID, item domain.Item) error {
	if err := validateItem(item); err != nil {
		return err
	}

	err := uc.inAccountTx(ctx, account, func(txCtx context.Context, tx Transaction) error {
		return uc.ledger.credit(txCtx, tx, account, item, uc.clock())
	})
	if err != nil {
		return err
	}

	uc.count("credit")

	return nil
}

// Grant credits every item of bundle in one transaction.
func (uc *BalanceUseCase) Grant(ctx context.Context, account snowflake.ID, bundle domain.Bundle) error {
	if account == 0 {
		return domain.ErrInvalidAccountID
	}

	normalized, err := bundle.Normalize()
	if err != nil {
		return err
	}

	err = uc.inAccountTx(ctx, account, func(txCtx context.Context, tx Transaction) error {
		now := uc.clock()
		for _, item := range normalized {
			if err := uc.ledger.credit(txCtx, tx, account, item, now); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	uc.count("grant")

	return nil
}

// GetInventory lists an account's card lines.
func (uc *BalanceUseCase) GetInventory(ctx context.Context, account snowflake.ID) ([]domain.InventoryLine, error) {
	return uc.ledger.inventory.ListByAccount(ctx, account)
}

// GetWallet returns an account's token and shard balances.
func (uc *BalanceUseCase) GetWallet(ctx context.Context, account snowflake.ID) (domain.Wallet, error) {
	balances, err := uc.ledger.currency.ListByAccount(ctx, account)
	if err != nil {
		return domain.Wallet{}, err
	}

	return domain.NewWallet(account, balances), nil
}

func (uc *BalanceUseCase) inAccountTx(ctx context.Context, account snowflake.ID, fn func(context.Context, Transaction) error) error {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.locker.LockAccounts(txCtx, tx, []snowflake.ID{account}); err != nil {
		return err
	}

	if err := fn(txCtx, tx); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

func (uc *BalanceUseCase) count(op string) {
	if uc.metrics != nil {
		uc.metrics.BalanceOperations.WithLabelValues(op).Inc()
	}
}

func validateItem(item domain.Item) error {
	if item == nil {
		return fmt.Errorf("%w: missing item", domain.ErrInvalidItem)
	}

	if err := item.Validate(); err != nil {
		return err
	}

	return nil
}

// IsInsufficientFunds extracts the shortfall details from err.
func IsInsufficientFunds(err error) (*domain.InsufficientFundsError, bool) {
	var ife *domain.InsufficientFundsError
	if errors.As(err, &ife) {
		return ife, true
	}

	return nil, false
}
