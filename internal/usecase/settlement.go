package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/metrics"
)

// SettlementExecutor applies the four-legged swap of a fully confirmed trade.
// Balances move in one transaction under sorted per-account locks; the trade
// row lock makes a second settlement of the same trade impossible.
type SettlementExecutor struct {
	txManager  TransactionManager
	tradeRepo  TradeRepository
	locker     AccountLocker
	ledger     ledger
	outboxRepo OutboxRepository
	idGen      IDGenerator
	retrier    Retrier
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	clock      Clock
}

// NewSettlementExecutor creates a new SettlementExecutor.
func NewSettlementExecutor(
	txManager TransactionManager,
	tradeRepo TradeRepository,
	locker AccountLocker,
	inventoryRepo InventoryRepository,
	currencyRepo CurrencyRepository,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	retrier Retrier,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
) *SettlementExecutor {
	return &SettlementExecutor{
		txManager:  txManager,
		tradeRepo:  tradeRepo,
		locker:     locker,
		ledger:     ledger{inventory: inventoryRepo, currency: currencyRepo},
		outboxRepo: outboxRepo,
		idGen:      idGen,
		retrier:    retrier,
		metrics:    metrics,
		logger:     logger,
		clock:      systemClock,
	}
}

// WithClock replaces the time source.
func (e *SettlementExecutor) WithClock(clock Clock) *SettlementExecutor {
	e.clock = clock
	return e
}

// Settle re-validates both bundles against current balances and swaps them.
// The trade must be awaiting_confirm, fully confirmed and claimed.
//
// On *domain.InsufficientFundsError nothing is moved. Any failure while
// applying the swap rolls everything back and surfaces as domain.ErrConflict.
// In both cases the claim is released and the trade stays awaiting_confirm.
func (e *SettlementExecutor) Settle(ctx context.Context, tradeID int64) (*domain.Trade, error) {
	start := time.Now()

	var settled *domain.Trade

	err := e.retry(ctx, func() error {
		t, err := e.settleOnce(ctx, tradeID)
		if err != nil {
			return err
		}

		settled = t

		return nil
	})

	if e.metrics != nil {
		e.metrics.SettleDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		e.recordFailure(ctx, tradeID, err)

		if relErr := e.releaseClaim(ctx, tradeID); relErr != nil {
			e.log(ctx).Error().Err(relErr).Int64("trade_id", tradeID).Msg("failed to release settlement claim")
		}

		return nil, err
	}

	if e.metrics != nil {
		e.metrics.TradesSettled.Inc()
		e.countMoved(settled.Give)
		e.countMoved(settled.Get)
	}

	e.log(ctx).Info().
		Int64("trade_id", settled.ID).
		Str("proposer_id", settled.ProposerID.String()).
		Str("receiver_id", settled.ReceiverID.String()).
		Msg("trade settled")

	return settled, nil
}

func (e *SettlementExecutor) settleOnce(ctx context.Context, tradeID int64) (*domain.Trade, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := e.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// 1. Lock the trade row; a concurrent settle or cancel waits here
	trade, err := e.tradeRepo.GetByIDForUpdate(txCtx, tx, tradeID)
	if err != nil {
		return nil, err
	}

	if err := trade.ValidateForSettlement(); err != nil {
		return nil, err
	}

	if trade.SettlementClaimedAt == nil {
		return nil, fmt.Errorf("%w: settlement not claimed", domain.ErrInvalidState)
	}

	// 2. Lock both accounts in sorted order (DEADLOCK PREVENTION)
	if err := e.locker.LockAccounts(txCtx, tx, trade.Participants()); err != nil {
		return nil, err
	}

	// 3. Validate proposer first, then receiver
	if err := e.checkCovered(txCtx, tx, trade, domain.SideProposer, trade.Give); err != nil {
		return nil, err
	}

	if err := e.checkCovered(txCtx, tx, trade, domain.SideReceiver, trade.Get); err != nil {
		return nil, err
	}

	// 4. Apply all four legs
	now := e.clock()

	if err := e.ledger.move(txCtx, tx, trade.ProposerID, trade.ReceiverID, trade.Give, now); err != nil {
		return nil, e.applyError(err)
	}

	if err := e.ledger.move(txCtx, tx, trade.ReceiverID, trade.ProposerID, trade.Get, now); err != nil {
		return nil, e.applyError(err)
	}

	if err := trade.MarkAccepted(now); err != nil {
		return nil, err
	}

	if err := e.tradeRepo.Update(txCtx, tx, trade); err != nil {
		return nil, e.applyError(err)
	}

	if err := e.writeEvent(txCtx, tx, trade, domain.EventTypeTradeSettled, now); err != nil {
		return nil, e.applyError(err)
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, e.applyError(err)
	}

	return trade, nil
}

func (e *SettlementExecutor) checkCovered(ctx context.Context, tx Transaction, trade *domain.Trade, side domain.Side, bundle domain.Bundle) error {
	account := trade.AccountOf(side)

	sf, err := e.ledger.shortfall(ctx, tx, account, bundle)
	if err != nil {
		return err
	}

	if sf != nil {
		return &domain.InsufficientFundsError{Side: side, Account: account, Shortfall: *sf}
	}

	return nil
}

// applyError maps a failure after validation passed. A debit that finds the
// balance gone means another writer slipped in; storage outages keep their kind.
func (e *SettlementExecutor) applyError(err error) error {
	switch {
	case errors.Is(err, domain.ErrStorageUnavailable), errors.Is(err, domain.ErrConflict):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return fmt.Errorf("%w: balance changed during settlement", domain.ErrConflict)
	default:
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
}

func (e *SettlementExecutor) releaseClaim(ctx context.Context, tradeID int64) error {
	// The caller's context may be what failed; release on a fresh one.
	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTransactionTimeout)
	defer cancel()

	tx, err := e.txManager.Begin(txCtx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	trade, err := e.tradeRepo.GetByIDForUpdate(txCtx, tx, tradeID)
	if err != nil {
		return err
	}

	if trade.SettlementClaimedAt == nil {
		return nil
	}

	trade.ReleaseClaim(e.clock())

	if err := e.tradeRepo.Update(txCtx, tx, trade); err != nil {
		return err
	}

	return tx.Commit(txCtx)
}

func (e *SettlementExecutor) writeEvent(ctx context.Context, tx Transaction, trade *domain.Trade, eventType string, at time.Time) error {
	return writeTradeEvent(ctx, tx, e.outboxRepo, e.idGen, trade, eventType, at)
}

func (e *SettlementExecutor) retry(ctx context.Context, op func() error) error {
	if e.retrier == nil {
		return op()
	}

	return e.retrier.Retry(ctx, op)
}

func (e *SettlementExecutor) log(ctx context.Context) *zerolog.Logger {
	return scopedLogger(ctx, e.logger, "settlement")
}

func (e *SettlementExecutor) recordFailure(ctx context.Context, tradeID int64, err error) {
	kind := errorKind(err)

	if e.metrics != nil {
		e.metrics.SettlementErrors.WithLabelValues(kind).Inc()
	}

	l := e.log(ctx)

	ev := l.Warn()
	if kind == "conflict" || kind == "storage" || kind == "internal" {
		ev = l.Error()
	}

	ev.Err(err).Int64("trade_id", tradeID).Str("error_type", kind).Msg("settlement failed")
}

func (e *SettlementExecutor) countMoved(bundle domain.Bundle) {
	for _, item := range bundle {
		e.metrics.ItemsMoved.WithLabelValues(string(item.Kind())).Add(float64(item.Quantity()))
	}
}

// writeTradeEvent appends a trade event to the outbox inside tx.
// A nil outbox disables events.
func writeTradeEvent(
	ctx context.Context,
	tx Transaction,
	outbox OutboxRepository,
	idGen IDGenerator,
	trade *domain.Trade,
	eventType string,
	at time.Time,
) error {
	if outbox == nil || idGen == nil {
		return nil
	}

	return outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            idGen.Generate(),
		AggregateID:   strconv.FormatInt(trade.ID, 10),
		AggregateType: domain.AggregateTypeTrade,
		EventType:     eventType,
		Payload:       domain.NewTradeEvent(trade, at).Payload(),
		CreatedAt:     at,
	})
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage"
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrInvalidBundle):
		return "invalid_bundle"
	case errors.Is(err, domain.ErrTradeNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
