package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/metrics"
)

// TradeOptions tunes the negotiation rules.
type TradeOptions struct {
	// AllowRenegotiation lets the receiver replace its offer while the trade
	// awaits confirmation and no settlement is running.
	AllowRenegotiation bool
	// ClaimTTL is how long a settlement claim is honored before another
	// confirm may take it over.
	ClaimTTL time.Duration
	// CacheTTL bounds cached trade snapshots.
	CacheTTL time.Duration
}

// DefaultTradeOptions returns the production defaults.
func DefaultTradeOptions() TradeOptions {
	return TradeOptions{
		AllowRenegotiation: true,
		ClaimTTL:           DefaultSettlementClaimTTL,
		CacheTTL:           DefaultTradeCacheTTL,
	}
}

// TradeUseCase handles the negotiation protocol: propose, respond, confirm
// and cancel. Settlement is delegated to a Settler once both sides confirm.
type TradeUseCase struct {
	txManager  TransactionManager
	tradeRepo  TradeRepository
	ledger     ledger
	settler    Settler
	outboxRepo OutboxRepository
	idGen      IDGenerator
	cache      Cache
	loads      singleflight.Group
	writes     atomic.Uint64 // bumped by every invalidation
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	clock      Clock
	opts       TradeOptions
}

// NewTradeUseCase creates a new TradeUseCase. cache, outboxRepo and metrics
// may be nil.
func NewTradeUseCase(
	txManager TransactionManager,
	tradeRepo TradeRepository,
	inventoryRepo InventoryRepository,
	currencyRepo CurrencyRepository,
	settler Settler,
	outboxRepo OutboxRepository,
	idGen IDGenerator,
	cache Cache,
	metrics *metrics.Metrics,
	logger zerolog.Logger,
	opts TradeOptions,
) *TradeUseCase {
	if opts.ClaimTTL <= 0 {
		opts.ClaimTTL = DefaultSettlementClaimTTL
	}

	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultTradeCacheTTL
	}

	return &TradeUseCase{
		txManager:  txManager,
		tradeRepo:  tradeRepo,
		ledger:     ledger{inventory: inventoryRepo, currency: currencyRepo},
		settler:    settler,
		outboxRepo: outboxRepo,
		idGen:      idGen,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		clock:      systemClock,
		opts:       opts,
	}
}

// WithClock replaces the time source.
func (uc *TradeUseCase) WithClock(clock Clock) *TradeUseCase {
	uc.clock = clock
	return uc
}

// ProposeInput represents input for proposing a trade.
type ProposeInput struct {
	ProposerID snowflake.ID
	ReceiverID snowflake.ID
	Give       domain.Bundle
	Note       string
}

// RespondInput represents the receiver's counter-offer.
type RespondInput struct {
	TradeID   int64
	AccountID snowflake.ID
	Get       domain.Bundle
}

// ConfirmResult reports what a confirmation achieved.
type ConfirmResult struct {
	Trade         *domain.Trade
	BothConfirmed bool
	Settled       bool
}

// Propose opens a trade in awaiting_receiver. The proposer must currently
// own the offered items; ownership is checked again at settlement.
func (uc *TradeUseCase) Propose(ctx context.Context, input ProposeInput) (*domain.Trade, error) {
	now := uc.clock()

	trade, err := domain.NewTrade(input.ProposerID, input.ReceiverID, input.Give, input.Note, now)
	if err != nil {
		return nil, err
	}

	sf, err := uc.ledger.shortfall(ctx, nil, trade.ProposerID, trade.Give)
	if err != nil {
		return nil, err
	}

	if sf != nil {
		return nil, &domain.InsufficientFundsError{Side: domain.SideProposer, Account: trade.ProposerID, Shortfall: *sf}
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	if err := uc.tradeRepo.Create(txCtx, tx, trade); err != nil {
		return nil, err
	}

	if err := writeTradeEvent(txCtx, tx, uc.outboxRepo, uc.idGen, trade, domain.EventTypeTradeProposed, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TradesProposed.Inc()
	}

	return trade, nil
}

// Respond records the receiver's bundle and clears both confirmations.
func (uc *TradeUseCase) Respond(ctx context.Context, input RespondInput) (*domain.Trade, error) {
	trade, err := uc.mutate(ctx, input.TradeID, func(txCtx context.Context, tx Transaction, trade *domain.Trade, now time.Time) (string, error) {
		renegotiate := uc.opts.AllowRenegotiation && !trade.ClaimActive(now, uc.opts.ClaimTTL)

		if err := trade.SetReceiverOffer(input.AccountID, input.Get, renegotiate, now); err != nil {
			return "", err
		}

		sf, err := uc.ledger.shortfall(txCtx, tx, trade.ReceiverID, trade.Get)
		if err != nil {
			return "", err
		}

		if sf != nil {
			return "", &domain.InsufficientFundsError{Side: domain.SideReceiver, Account: trade.ReceiverID, Shortfall: *sf}
		}

		return domain.EventTypeTradeResponded, nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TradesResponded.Inc()
	}

	return trade, nil
}

// Confirm sets the caller's confirmation. When it completes the pair, the
// caller that wins the settlement claim runs the settlement; every other
// caller sees BothConfirmed without Settled.
func (uc *TradeUseCase) Confirm(ctx context.Context, tradeID int64, account snowflake.ID) (*ConfirmResult, error) {
	var both, claimed bool

	trade, err := uc.mutate(ctx, tradeID, func(_ context.Context, _ Transaction, trade *domain.Trade, now time.Time) (string, error) {
		var err error

		both, err = trade.Confirm(account, now)
		if err != nil {
			return "", err
		}

		claimed = both && trade.ClaimSettlement(now, uc.opts.ClaimTTL)

		return "", nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TradesConfirmed.Inc()
	}

	if !claimed {
		return &ConfirmResult{Trade: trade, BothConfirmed: both}, nil
	}

	uc.log(ctx).Info().Int64("trade_id", tradeID).Str("account_id", account.String()).Msg("settlement claimed")

	settled, err := uc.settler.Settle(ctx, tradeID)
	uc.invalidate(ctx, tradeID)

	if err != nil {
		return nil, err
	}

	return &ConfirmResult{Trade: settled, BothConfirmed: true, Settled: true}, nil
}

// Cancel cancels an open trade on behalf of one of its participants.
func (uc *TradeUseCase) Cancel(ctx context.Context, tradeID int64, account snowflake.ID) (*domain.Trade, error) {
	trade, err := uc.mutate(ctx, tradeID, func(_ context.Context, _ Transaction, trade *domain.Trade, now time.Time) (string, error) {
		if _, err := trade.SideOf(account); err != nil {
			return "", err
		}

		if err := trade.Cancel(now); err != nil {
			return "", err
		}

		return domain.EventTypeTradeCanceled, nil
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.TradesCanceled.WithLabelValues("participant").Inc()
	}

	return trade, nil
}

// CancelLatest cancels the most recent open trade the account takes part in.
func (uc *TradeUseCase) CancelLatest(ctx context.Context, account snowflake.ID) (*domain.Trade, error) {
	active, err := uc.GetActive(ctx, account)
	if err != nil {
		return nil, err
	}

	return uc.Cancel(ctx, active.ID, account)
}

// Expire cancels a trade that has been idle since before cutoff. It is a
// no-op returning false when the trade moved on in the meantime.
func (uc *TradeUseCase) Expire(ctx context.Context, tradeID int64, cutoff time.Time) (bool, error) {
	expired := false

	_, err := uc.mutate(ctx, tradeID, func(_ context.Context, _ Transaction, trade *domain.Trade, now time.Time) (string, error) {
		if !trade.Status.IsAwaiting() || !trade.UpdatedAt.Before(cutoff) || trade.ClaimActive(now, uc.opts.ClaimTTL) {
			return "", errSkip
		}

		if err := trade.Cancel(now); err != nil {
			return "", err
		}

		expired = true

		return domain.EventTypeTradeExpired, nil
	})
	if errors.Is(err, errSkip) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	if uc.metrics != nil {
		uc.metrics.TradesCanceled.WithLabelValues("expired").Inc()
	}

	return expired, nil
}

// ExpireIdle cancels up to limit trades idle for longer than idleFor.
// Failures on single trades are logged and skipped.
func (uc *TradeUseCase) ExpireIdle(ctx context.Context, idleFor time.Duration, limit int) (int, error) {
	if limit <= 0 {
		limit = DefaultExpiryBatch
	}

	cutoff := uc.clock().Add(-idleFor)

	trades, err := uc.tradeRepo.ListIdle(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	count := 0

	for _, t := range trades {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}

		ok, err := uc.Expire(ctx, t.ID, cutoff)
		if err != nil {
			uc.log(ctx).Warn().Err(err).Int64("trade_id", t.ID).Msg("failed to expire trade")
			continue
		}

		if ok {
			count++
		}
	}

	return count, nil
}

// AttachMessage records where the public confirmation message was posted.
func (uc *TradeUseCase) AttachMessage(ctx context.Context, tradeID int64, channelID, messageID snowflake.ID) (*domain.Trade, error) {
	if channelID == 0 || messageID == 0 {
		return nil, domain.ErrInvalidReference
	}

	return uc.mutate(ctx, tradeID, func(_ context.Context, _ Transaction, trade *domain.Trade, now time.Time) (string, error) {
		trade.AttachMessage(channelID, messageID, now)
		return "", nil
	})
}

// Get returns a trade, served from cache when possible.
func (uc *TradeUseCase) Get(ctx context.Context, tradeID int64) (*domain.Trade, error) {
	key := tradeCacheKey(tradeID)

	if trade, ok := uc.cached(ctx, key); ok {
		return trade, nil
	}

	// The load is shared by every waiter, so one caller going away must not
	// fail the rest.
	v, err, _ := uc.loads.Do(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultTransactionTimeout)
		defer cancel()

		gen := uc.writes.Load()

		trade, err := uc.tradeRepo.GetByID(loadCtx, tradeID)
		if err != nil {
			return nil, err
		}

		// Open trades change under other replicas' feet; only settled or
		// canceled ones are safe to serve from a shared cache.
		if trade.Status.IsTerminal() {
			uc.store(loadCtx, key, trade)

			// A write committed while we were filling; drop what we stored.
			if uc.writes.Load() != gen {
				uc.dropCached(loadCtx, key)
			}
		}

		return trade, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Trade).Clone(), nil
}

// GetActive returns the latest open trade the account takes part in.
func (uc *TradeUseCase) GetActive(ctx context.Context, account snowflake.ID) (*domain.Trade, error) {
	return uc.tradeRepo.GetLatestActiveForAccount(ctx, account)
}

// ListForAccount pages through an account's trades, newest first.
func (uc *TradeUseCase) ListForAccount(ctx context.Context, account snowflake.ID, limit, offset int) ([]*domain.Trade, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.tradeRepo.ListByAccount(ctx, account, limit, offset)
}

// History returns the recorded lifecycle events of a trade, oldest first.
// Without an outbox there is no history and the result is empty.
func (uc *TradeUseCase) History(ctx context.Context, tradeID int64, limit, offset int) ([]*domain.OutboxEvent, error) {
	if uc.outboxRepo == nil {
		return []*domain.OutboxEvent{}, nil
	}

	limit, offset = domain.ValidatePagination(limit, offset)

	return uc.outboxRepo.GetByAggregate(ctx, domain.AggregateTypeTrade, strconv.FormatInt(tradeID, 10), limit, offset)
}

func (uc *TradeUseCase) log(ctx context.Context) *zerolog.Logger {
	return scopedLogger(ctx, uc.logger, "trade")
}

var errSkip = errors.New("skip")

// mutate runs fn against the locked trade row and persists the result in one
// transaction. fn returns the outbox event type to record, or "" for none.
func (uc *TradeUseCase) mutate(
	ctx context.Context,
	tradeID int64,
	fn func(ctx context.Context, tx Transaction, trade *domain.Trade, now time.Time) (string, error),
) (*domain.Trade, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	trade, err := uc.tradeRepo.GetByIDForUpdate(txCtx, tx, tradeID)
	if err != nil {
		return nil, err
	}

	now := uc.clock()

	eventType, err := fn(txCtx, tx, trade, now)
	if err != nil {
		return nil, err
	}

	if err := uc.tradeRepo.Update(txCtx, tx, trade); err != nil {
		return nil, err
	}

	if eventType != "" {
		if err := writeTradeEvent(txCtx, tx, uc.outboxRepo, uc.idGen, trade, eventType, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	uc.invalidate(ctx, tradeID)

	return trade, nil
}

func tradeCacheKey(id int64) string {
	return "trade:" + strconv.FormatInt(id, 10)
}

func (uc *TradeUseCase) cached(ctx context.Context, key string) (*domain.Trade, bool) {
	if uc.cache == nil {
		return nil, false
	}

	data, err := uc.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			uc.log(ctx).Debug().Err(err).Str("key", key).Msg("trade cache read failed")
		}

		uc.countCache("miss")

		return nil, false
	}

	var trade domain.Trade
	if err := json.Unmarshal(data, &trade); err != nil {
		uc.countCache("miss")
		return nil, false
	}

	uc.countCache("hit")

	return &trade, true
}

func (uc *TradeUseCase) store(ctx context.Context, key string, trade *domain.Trade) {
	if uc.cache == nil {
		return
	}

	data, err := json.Marshal(trade)
	if err != nil {
		return
	}

	if err := uc.cache.Set(ctx, key, data, uc.opts.CacheTTL); err != nil {
		uc.log(ctx).Debug().Err(err).Str("key", key).Msg("trade cache write failed")
	}
}

// invalidate must bump writes before deleting so a concurrent fill either
// sees the bump or stores before the delete.
func (uc *TradeUseCase) invalidate(ctx context.Context, tradeID int64) {
	uc.writes.Add(1)
	uc.dropCached(ctx, tradeCacheKey(tradeID))
}

func (uc *TradeUseCase) dropCached(ctx context.Context, key string) {
	if uc.cache == nil {
		return
	}

	if err := uc.cache.Delete(context.WithoutCancel(ctx), key); err != nil {
		uc.log(ctx).Warn().Err(err).Str("key", key).Msg("trade cache invalidation failed")
	}
}

func (uc *TradeUseCase) countCache(result string) {
	if uc.metrics != nil {
		uc.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}
