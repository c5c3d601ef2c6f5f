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

// TradeRepository implements usecase.TradeRepository.
type TradeRepository struct {
	queries *generated.Queries
}

// NewTradeRepository creates a new TradeRepository.
func NewTradeRepository(pool *pgxpool.Pool) *TradeRepository {
	return newTradeRepository(pool)
}

func newTradeRepository(db generated.DBTX) *TradeRepository {
	return &TradeRepository{queries: generated.New(db)}
}

// Create inserts the trade and assigns its ID.
func (r *TradeRepository) Create(ctx context.Context, tx usecase.Transaction, trade *domain.Trade) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	give, err := bundleToJSON(trade.Give)
	if err != nil {
		return err
	}

	get, err := bundleToJSON(trade.Get)
	if err != nil {
		return err
	}

	id, err := queries.CreateTrade(ctx, generated.CreateTradeParams{
		ProposerID:          idToInt8(trade.ProposerID),
		ReceiverID:          idToInt8(trade.ReceiverID),
		Status:              string(trade.Status),
		Give:                give,
		Get:                 get,
		ConfirmProposer:     trade.ConfirmProposer,
		ConfirmReceiver:     trade.ConfirmReceiver,
		SettlementClaimedAt: nullableTimestamptz(trade.SettlementClaimedAt),
		Note:                trade.Note,
		ChannelID:           nullableID(trade.ChannelID),
		MessageID:           nullableID(trade.MessageID),
		CreatedAt:           timeToPgTimestamptz(trade.CreatedAt),
		UpdatedAt:           timeToPgTimestamptz(trade.UpdatedAt),
	})
	if err != nil {
		return translateError(err)
	}

	trade.ID = id

	return nil
}

// GetByID retrieves a trade by ID.
func (r *TradeRepository) GetByID(ctx context.Context, id int64) (*domain.Trade, error) {
	row, err := r.queries.GetTradeByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	return rowToTrade(row)
}

// GetByIDForUpdate retrieves a trade by ID with a FOR UPDATE lock.
func (r *TradeRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id int64) (*domain.Trade, error) {
	queries, err := queriesFor(tx)
	if err != nil {
		return nil, err
	}

	row, err := queries.GetTradeByIDForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}

	return rowToTrade(row)
}

// Update writes the mutable trade fields.
func (r *TradeRepository) Update(ctx context.Context, tx usecase.Transaction, trade *domain.Trade) error {
	queries, err := queriesFor(tx)
	if err != nil {
		return err
	}

	get, err := bundleToJSON(trade.Get)
	if err != nil {
		return err
	}

	affected, err := queries.UpdateTrade(ctx, generated.UpdateTradeParams{
		ID:                  trade.ID,
		Status:              string(trade.Status),
		Get:                 get,
		ConfirmProposer:     trade.ConfirmProposer,
		ConfirmReceiver:     trade.ConfirmReceiver,
		SettlementClaimedAt: nullableTimestamptz(trade.SettlementClaimedAt),
		ChannelID:           nullableID(trade.ChannelID),
		MessageID:           nullableID(trade.MessageID),
		UpdatedAt:           timeToPgTimestamptz(trade.UpdatedAt),
	})
	if err != nil {
		return translateError(err)
	}

	if affected == 0 {
		return domain.ErrTradeNotFound
	}

	return nil
}

// GetLatestActiveForAccount returns the newest open trade of account.
func (r *TradeRepository) GetLatestActiveForAccount(ctx context.Context, account snowflake.ID) (*domain.Trade, error) {
	row, err := r.queries.GetLatestActiveTradeForAccount(ctx, idToInt8(account))
	if err != nil {
		return nil, notFound(err)
	}

	return rowToTrade(row)
}

// ListIdle returns open trades not updated since before, oldest first.
func (r *TradeRepository) ListIdle(ctx context.Context, before time.Time, limit int) ([]*domain.Trade, error) {
	rows, err := r.queries.ListIdleTrades(ctx, generated.ListIdleTradesParams{
		UpdatedAt: timeToPgTimestamptz(before),
		Limit:     int32(limit),
	})
	if err != nil {
		return nil, translateError(err)
	}

	return rowsToTrades(rows)
}

// ListByAccount pages through the account's trades, newest first.
func (r *TradeRepository) ListByAccount(ctx context.Context, account snowflake.ID, limit, offset int) ([]*domain.Trade, error) {
	rows, err := r.queries.ListTradesByAccount(ctx, generated.ListTradesByAccountParams{
		ProposerID: idToInt8(account),
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
	if err != nil {
		return nil, translateError(err)
	}

	return rowsToTrades(rows)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrTradeNotFound
	}

	return translateError(err)
}
