package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/domain"
)

// ledger routes item-level balance operations to the store that owns them.
type ledger struct {
	inventory InventoryRepository
	currency  CurrencyRepository
}

func (l ledger) balance(ctx context.Context, tx Transaction, account snowflake.ID, item domain.Item) (int64, error) {
	switch it := item.(type) {
	case domain.CardItem:
		return l.inventory.GetQuantity(ctx, tx, account, it.Printing)
	case domain.CurrencyItem:
		return l.currency.GetAmount(ctx, tx, account, it.CurrencyKey)
	default:
		return 0, fmt.Errorf("%w: unsupported item %T", domain.ErrInvalidItem, item)
	}
}

// shortfall returns the first item of bundle the account cannot cover,
// or nil when every item is covered.
func (l ledger) shortfall(ctx context.Context, tx Transaction, account snowflake.ID, bundle domain.Bundle) (*domain.Shortfall, error) {
	for _, item := range bundle {
		have, err := l.balance(ctx, tx, account, item)
		if err != nil {
			return nil, err
		}

		if have < item.Quantity() {
			return &domain.Shortfall{Item: item, Need: item.Quantity(), Have: have}, nil
		}
	}

	return nil, nil
}

func (l ledger) debit(ctx context.Context, tx Transaction, account snowflake.ID, item domain.Item, at time.Time) error {
	switch it := item.(type) {
	case domain.CardItem:
		return l.inventory.Debit(ctx, tx, account, it.Printing, it.Qty, at)
	case domain.CurrencyItem:
		return l.currency.Debit(ctx, tx, account, it.CurrencyKey, it.Amount, at)
	default:
		return fmt.Errorf("%w: unsupported item %T", domain.ErrInvalidItem, item)
	}
}

func (l ledger) credit(ctx context.Context, tx Transaction, account snowflake.ID, item domain.Item, at time.Time) error {
	switch it := item.(type) {
	case domain.CardItem:
		return l.inventory.Credit(ctx, tx, account, it.Printing, it.Qty, at)
	case domain.CurrencyItem:
		return l.currency.Credit(ctx, tx, account, it.CurrencyKey, it.Amount, at)
	default:
		return fmt.Errorf("%w: unsupported item %T", domain.ErrInvalidItem, item)
	}
}

// move transfers every item of bundle from one account to another.
func (l ledger) move(ctx context.Context, tx Transaction, from, to snowflake.ID, bundle domain.Bundle, at time.Time) error {
	for _, item := range bundle {
		if err := l.debit(ctx, tx, from, item, at); err != nil {
			return err
		}

		if err := l.credit(ctx, tx, to, item, at); err != nil {
			return err
		}
	}

	return nil
}
