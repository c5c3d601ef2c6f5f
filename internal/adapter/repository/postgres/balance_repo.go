package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/postgres/generated"
	"github.com/iho/cardtrade/internal/usecase"
)

// InventoryRepository implements usecase.InventoryRepository.
// Rows are keyed by the full printing identity; a NULL code or card id is
// matched with IS NOT DISTINCT FROM so it never acts as a wildcard.
type InventoryRepository struct {
	queries *generated.Queries
}

// NewInventoryRepository creates a new InventoryRepository.
func NewInventoryRepository(pool *pgxpool.Pool) *InventoryRepository {
	return &InventoryRepository{queries: generated.New(pool)}
}

func (r *InventoryRepository) queriesFor(tx usecase.Transaction) (*generated.Queries, error) {
	if tx == nil {
		return r.queries, nil
	}

	return queriesFor(tx)
}

// GetQuantity returns how many copies of printing account owns.
func (r *InventoryRepository) GetQuantity(ctx context.Context, tx usecase.Transaction, account snowflake.ID, printing domain.Printing) (int64, error) {
	queries, err := r.queriesFor(tx)
	if err != nil {
		return 0, err
	}

	qty, err := queries.GetInventoryQuantity(ctx, generated.GetInventoryQuantityParams{
		AccountID: idToInt8(account),
		Name:      printing.Name,
		Rarity:    printing.Rarity,
		SetName:   printing.Set,
		Code:      nullableText(printing.Code),
		CardID:    nullableText(printing.CardID),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, translateError(err)
	}

	return qty, nil
}

// Debit removes qty copies. The guarded UPDATE never drives a line negative.
func (r *InventoryRepository) Debit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, printing domain.Printing, qty int64, at time.Time) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	affected, err := queries.DebitInventory(ctx, generated.DebitInventoryParams{
		Qty:       qty,
		UpdatedAt: timeToPgTimestamptz(at),
		AccountID: idToInt8(account),
		Name:      printing.Name,
		Rarity:    printing.Rarity,
		SetName:   printing.Set,
		Code:      nullableText(printing.Code),
		CardID:    nullableText(printing.CardID),
	})
	if err != nil {
		return translateError(err)
	}

	if affected == 0 {
		return domain.ErrInsufficientFunds
	}

	return nil
}

// Credit adds qty copies, creating the line if needed.
func (r *InventoryRepository) Credit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, printing domain.Printing, qty int64, at time.Time) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	err = queries.CreditInventory(ctx, generated.CreditInventoryParams{
		AccountID: idToInt8(account),
		Name:      printing.Name,
		Rarity:    printing.Rarity,
		SetName:   printing.Set,
		Code:      nullableText(printing.Code),
		CardID:    nullableText(printing.CardID),
		Quantity:  qty,
		UpdatedAt: timeToPgTimestamptz(at),
	})

	return translateError(err)
}

// ListByAccount lists the account's non-empty lines.
func (r *InventoryRepository) ListByAccount(ctx context.Context, account snowflake.ID) ([]domain.InventoryLine, error) {
	rows, err := r.queries.ListInventoryByAccount(ctx, idToInt8(account))
	if err != nil {
		return nil, translateError(err)
	}

	lines := make([]domain.InventoryLine, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, domain.InventoryLine{
			AccountID: int8ToID(row.AccountID),
			Printing: domain.Printing{
				Name:   row.Name,
				Rarity: row.Rarity,
				Set:    row.SetName,
				Code:   textFromNullable(row.Code),
				CardID: textFromNullable(row.CardID),
			},
			Quantity:  row.Quantity,
			UpdatedAt: row.UpdatedAt.Time,
		})
	}

	return lines, nil
}

// CurrencyRepository implements usecase.CurrencyRepository.
type CurrencyRepository struct {
	queries *generated.Queries
}

// NewCurrencyRepository creates a new CurrencyRepository.
func NewCurrencyRepository(pool *pgxpool.Pool) *CurrencyRepository {
	return &CurrencyRepository{queries: generated.New(pool)}
}

func (r *CurrencyRepository) queriesFor(tx usecase.Transaction) (*generated.Queries, error) {
	if tx == nil {
		return r.queries, nil
	}

	return queriesFor(tx)
}

// GetAmount returns the balance for key.
func (r *CurrencyRepository) GetAmount(ctx context.Context, tx usecase.Transaction, account snowflake.ID, key domain.CurrencyKey) (int64, error) {
	queries, err := r.queriesFor(tx)
	if err != nil {
		return 0, err
	}

	amount, err := queries.GetCurrencyAmount(ctx, generated.GetCurrencyAmountParams{
		AccountID: idToInt8(account),
		Currency:  string(key.Currency),
		SetID:     key.SetID,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}

	if err != nil {
		return 0, translateError(err)
	}

	return amount, nil
}

// Debit subtracts amount. The guarded UPDATE never drives a balance negative.
func (r *CurrencyRepository) Debit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, key domain.CurrencyKey, amount int64, at time.Time) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	affected, err := queries.DebitCurrency(ctx, generated.DebitCurrencyParams{
		Amount:    amount,
		UpdatedAt: timeToPgTimestamptz(at),
		AccountID: idToInt8(account),
		Currency:  string(key.Currency),
		SetID:     key.SetID,
	})
	if err != nil {
		return translateError(err)
	}

	if affected == 0 {
		return domain.ErrInsufficientFunds
	}

	return nil
}

// Credit adds amount, creating the balance row if needed.
func (r *CurrencyRepository) Credit(ctx context.Context, tx usecase.Transaction, account snowflake.ID, key domain.CurrencyKey, amount int64, at time.Time) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	err = queries.CreditCurrency(ctx, generated.CreditCurrencyParams{
		AccountID: idToInt8(account),
		Currency:  string(key.Currency),
		SetID:     key.SetID,
		Amount:    amount,
		UpdatedAt: timeToPgTimestamptz(at),
	})

	return translateError(err)
}

// ListByAccount lists the account's non-zero balances, token first.
func (r *CurrencyRepository) ListByAccount(ctx context.Context, account snowflake.ID) ([]domain.CurrencyBalance, error) {
	rows, err := r.queries.ListCurrencyByAccount(ctx, idToInt8(account))
	if err != nil {
		return nil, translateError(err)
	}

	balances := make([]domain.CurrencyBalance, 0, len(rows))
	for _, row := range rows {
		balances = append(balances, domain.CurrencyBalance{
			AccountID: int8ToID(row.AccountID),
			CurrencyKey: domain.CurrencyKey{
				Currency: domain.CurrencyKind(row.Currency),
				SetID:    row.SetID,
			},
			Amount:    row.Amount,
			UpdatedAt: row.UpdatedAt.Time,
		})
	}

	return balances, nil
}

// AccountLocker implements usecase.AccountLocker with transaction-scoped
// advisory locks keyed by the account id.
type AccountLocker struct{}

// NewAccountLocker creates a new AccountLocker.
func NewAccountLocker() *AccountLocker {
	return &AccountLocker{}
}

// LockAccounts takes one advisory lock per account, in the given order.
// The locks are released when tx ends.
func (l *AccountLocker) LockAccounts(ctx context.Context, tx usecase.Transaction, ids []snowflake.ID) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	for _, id := range ids {
		if err := queries.LockAccount(ctx, idToInt8(id)); err != nil {
			return translateError(err)
		}
	}

	return nil
}
