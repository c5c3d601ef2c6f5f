package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/iho/cardtrade/internal/domain"
)

// ErrCacheMiss is returned by Cache.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// TradeRepository defines data access for trades.
type TradeRepository interface {
	// Create inserts the trade and assigns its ID.
	Create(ctx context.Context, tx Transaction, trade *domain.Trade) error
	GetByID(ctx context.Context, id int64) (*domain.Trade, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id int64) (*domain.Trade, error)
	Update(ctx context.Context, tx Transaction, trade *domain.Trade) error
	GetLatestActiveForAccount(ctx context.Context, account snowflake.ID) (*domain.Trade, error)
	// ListIdle returns open trades not updated since before, oldest first.
	ListIdle(ctx context.Context, before time.Time, limit int) ([]*domain.Trade, error)
	ListByAccount(ctx context.Context, account snowflake.ID, limit, offset int) ([]*domain.Trade, error)
}

// InventoryRepository defines data access for card copies.
// A nil tx reads committed state without locking.
type InventoryRepository interface {
	GetQuantity(ctx context.Context, tx Transaction, account snowflake.ID, printing domain.Printing) (int64, error)
	// Debit returns domain.ErrInsufficientFunds when fewer than qty copies exist.
	Debit(ctx context.Context, tx Transaction, account snowflake.ID, printing domain.Printing, qty int64, at time.Time) error
	Credit(ctx context.Context, tx Transaction, account snowflake.ID, printing domain.Printing, qty int64, at time.Time) error
	ListByAccount(ctx context.Context, account snowflake.ID) ([]domain.InventoryLine, error)
}

// CurrencyRepository defines data access for token and shard balances.
// A nil tx reads committed state without locking.
type CurrencyRepository interface {
	GetAmount(ctx context.Context, tx Transaction, account snowflake.ID, key domain.CurrencyKey) (int64, error)
	// Debit returns domain.ErrInsufficientFunds when the balance is below amount.
	Debit(ctx context.Context, tx Transaction, account snowflake.ID, key domain.CurrencyKey, amount int64, at time.Time) error
	Credit(ctx context.Context, tx Transaction, account snowflake.ID, key domain.CurrencyKey, amount int64, at time.Time) error
	ListByAccount(ctx context.Context, account snowflake.ID) ([]domain.CurrencyBalance, error)
}

// AccountLocker serializes balance mutations per account.
type AccountLocker interface {
	// LockAccounts blocks until every account is locked for the lifetime of tx.
	// Callers pass ids in ascending order.
	LockAccounts(ctx context.Context, tx Transaction, ids []snowflake.ID) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	// GetByAggregate returns the events of one aggregate, oldest first.
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Settler applies a fully confirmed, claimed trade.
type Settler interface {
	Settle(ctx context.Context, tradeID int64) (*domain.Trade, error)
}

// Retrier re-runs an operation on transient storage errors.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key so the request can be retried.
	Delete(ctx context.Context, key string) error
}

// Clock returns the current time. Workers and use cases take one so tests
// can control expiry.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
