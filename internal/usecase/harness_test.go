package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/iho/cardtrade/internal/adapter/repository/memory"
	"github.com/iho/cardtrade/internal/domain"
	"github.com/iho/cardtrade/internal/infrastructure/metrics"
	"github.com/iho/cardtrade/internal/usecase"
)

const (
	alice snowflake.ID = 1001
	bob   snowflake.ID = 2002
	carol snowflake.ID = 3003
)

var phoenixPrinting = domain.Printing{Name: "Phoenix", Rarity: "rare", Set: "SetA"}

func phoenix(qty int64) domain.CardItem {
	return domain.CardItem{Printing: phoenixPrinting, Qty: qty}
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type ulidGen struct{}

func (ulidGen) Generate() string { return ulid.Make().String() }

type harness struct {
	store    *memory.Store
	clock    *testClock
	metrics  *metrics.Metrics
	trades   *usecase.TradeUseCase
	balances *usecase.BalanceUseCase
	settler  *usecase.SettlementExecutor
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	inventory usecase.InventoryRepository
	cache     usecase.Cache
	opts      usecase.TradeOptions
}

func withInventory(repo usecase.InventoryRepository) harnessOption {
	return func(c *harnessConfig) { c.inventory = repo }
}

func withCache(cache usecase.Cache) harnessOption {
	return func(c *harnessConfig) { c.cache = cache }
}

func withOptions(opts usecase.TradeOptions) harnessOption {
	return func(c *harnessConfig) { c.opts = opts }
}

func newHarness(t *testing.T, options ...harnessOption) *harness {
	t.Helper()

	return newHarnessOn(t, memory.NewStore(), options...)
}

func newHarnessOn(t *testing.T, store *memory.Store, options ...harnessOption) *harness {
	t.Helper()

	cfg := harnessConfig{
		inventory: store.Inventory(),
		opts:      usecase.DefaultTradeOptions(),
	}

	for _, o := range options {
		o(&cfg)
	}

	clock := newTestClock()
	m := metrics.New(prometheus.NewRegistry())
	logger := zerolog.Nop()

	settler := usecase.NewSettlementExecutor(
		store.TxManager(),
		store.Trades(),
		store.Locker(),
		cfg.inventory,
		store.Currency(),
		store.Outbox(),
		ulidGen{},
		nil,
		m,
		logger,
	).WithClock(clock.Now)

	trades := usecase.NewTradeUseCase(
		store.TxManager(),
		store.Trades(),
		cfg.inventory,
		store.Currency(),
		settler,
		store.Outbox(),
		ulidGen{},
		cfg.cache,
		m,
		logger,
		cfg.opts,
	).WithClock(clock.Now)

	balances := usecase.NewBalanceUseCase(
		store.TxManager(),
		store.Locker(),
		cfg.inventory,
		store.Currency(),
		m,
	).WithClock(clock.Now)

	return &harness{
		store:    store,
		clock:    clock,
		metrics:  m,
		trades:   trades,
		balances: balances,
		settler:  settler,
	}
}

func (h *harness) grant(t *testing.T, account snowflake.ID, items ...domain.Item) {
	t.Helper()
	require.NoError(t, h.balances.Grant(context.Background(), account, domain.Bundle(items)))
}

func (h *harness) quantity(t *testing.T, account snowflake.ID, item domain.Item) int64 {
	t.Helper()

	ctx := context.Background()

	var (
		got int64
		err error
	)

	switch it := item.(type) {
	case domain.CardItem:
		got, err = h.store.Inventory().GetQuantity(ctx, nil, account, it.Printing)
	case domain.CurrencyItem:
		got, err = h.store.Currency().GetAmount(ctx, nil, account, it.CurrencyKey)
	default:
		t.Fatalf("unsupported item %T", item)
	}

	require.NoError(t, err)

	return got
}

// negotiated proposes and responds, leaving the trade awaiting confirmation.
func (h *harness) negotiated(t *testing.T, proposer, receiver snowflake.ID, give, get domain.Bundle) *domain.Trade {
	t.Helper()

	ctx := context.Background()

	trade, err := h.trades.Propose(ctx, usecase.ProposeInput{ProposerID: proposer, ReceiverID: receiver, Give: give})
	require.NoError(t, err)

	trade, err = h.trades.Respond(ctx, usecase.RespondInput{TradeID: trade.ID, AccountID: receiver, Get: get})
	require.NoError(t, err)

	return trade
}
