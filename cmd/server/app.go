package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/cardtrade/internal/adapter/http"
	"github.com/iho/cardtrade/internal/adapter/http/dto"
	"github.com/iho/cardtrade/internal/adapter/http/handler"
	"github.com/iho/cardtrade/internal/adapter/http/middleware"
	"github.com/iho/cardtrade/internal/adapter/repository/memory"
	postgresRepo "github.com/iho/cardtrade/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/cardtrade/internal/adapter/repository/redis"
	"github.com/iho/cardtrade/internal/infrastructure/auth"
	"github.com/iho/cardtrade/internal/infrastructure/catalog"
	"github.com/iho/cardtrade/internal/infrastructure/config"
	"github.com/iho/cardtrade/internal/infrastructure/eventpublisher"
	"github.com/iho/cardtrade/internal/infrastructure/metrics"
	"github.com/iho/cardtrade/internal/infrastructure/postgres"
	"github.com/iho/cardtrade/internal/infrastructure/redis"
	"github.com/iho/cardtrade/internal/infrastructure/worker"
	"github.com/iho/cardtrade/internal/usecase"
)

// storage is one persistence backend behind the use case interfaces.
type storage struct {
	txManager usecase.TransactionManager
	trades    usecase.TradeRepository
	inventory usecase.InventoryRepository
	currency  usecase.CurrencyRepository
	locker    usecase.AccountLocker
	outbox    usecase.OutboxRepository
	retrier   usecase.Retrier
	checks    []handler.Check
	close     func()
}

func newMemoryStorage() *storage {
	store := memory.NewStore()

	return &storage{
		txManager: store.TxManager(),
		trades:    store.Trades(),
		inventory: store.Inventory(),
		currency:  store.Currency(),
		locker:    store.Locker(),
		outbox:    store.Outbox(),
		close:     func() {},
	}
}

func newPostgresStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(cfg.DatabaseURL, logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	logger.Info().Msg("connected to postgres")

	return &storage{
		txManager: postgresRepo.NewTxManager(pool),
		trades:    postgresRepo.NewTradeRepository(pool),
		inventory: postgresRepo.NewInventoryRepository(pool),
		currency:  postgresRepo.NewCurrencyRepository(pool),
		locker:    postgresRepo.NewAccountLocker(),
		outbox:    postgresRepo.NewOutboxRepository(pool),
		retrier:   postgresRepo.NewRetrier(postgresRepo.RetryConfig{
			MaxRetries:     cfg.DatabaseMaxRetries,
			MaxElapsedTime: cfg.DatabaseRetryTimeout,
		}, logger),
		checks:    []handler.Check{{Name: "postgres", Probe: pingPool(pool)}},
		close:     pool.Close,
	}, nil
}

func pingPool(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error { return pool.Ping(ctx) }
}

func pingRedis(client *goredis.Client) func(context.Context) error {
	return func(ctx context.Context) error { return client.Ping(ctx).Err() }
}

// app is the assembled server.
type app struct {
	handler   http.Handler
	trades    *usecase.TradeUseCase
	balances  *usecase.BalanceUseCase
	sweeper   *worker.ExpirySweeper
	publisher *eventpublisher.EventPublisher
	limiter   *middleware.RateLimiter
	closers   []func(context.Context)
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg *prometheus.Registry) (*app, error) {
	a := &app{}
	ok := false

	defer func() {
		if !ok {
			a.Close(context.Background())
		}
	}()

	var (
		store *storage
		err   error
	)

	switch cfg.StorageBackend {
	case config.StorageMemory:
		logger.Warn().Msg("using in-memory storage, balances are lost on restart")
		store = newMemoryStorage()
	default:
		store, err = newPostgresStorage(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
	}

	a.closers = append(a.closers, func(context.Context) { store.close() })

	if !cfg.OutboxEnabled {
		// Trade events are not recorded at all.
		store.outbox = nil
	}
	checks := store.checks

	var (
		cache       usecase.Cache
		idempotency usecase.IdempotencyStore
	)

	if cfg.RedisURL != "" {
		client, err := redis.NewClient(ctx, redis.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}

		logger.Info().Msg("connected to redis")
		a.closers = append(a.closers, func(context.Context) { _ = client.Close() })

		cache = redisRepo.NewCache(client)
		idempotency = redisRepo.NewIdempotencyStore(client)
		checks = append(checks, handler.Check{Name: "redis", Probe: pingRedis(client)})
	}

	var resolver dto.PrintingResolver
	var catalogHandler *handler.CatalogHandler

	if cfg.CatalogPath != "" {
		c, err := catalog.Load(cfg.CatalogPath, cfg.CatalogCacheSize)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}

		logger.Info().Int("printings", c.Len()).Str("path", cfg.CatalogPath).Msg("catalog loaded")
		resolver = c
		catalogHandler = handler.NewCatalogHandler(c)
	}

	m := metrics.New(reg)
	idGen := postgresRepo.NewULIDGenerator()

	settler := usecase.NewSettlementExecutor(
		store.txManager,
		store.trades,
		store.locker,
		store.inventory,
		store.currency,
		store.outbox,
		idGen,
		store.retrier,
		m,
		logger,
	)

	a.trades = usecase.NewTradeUseCase(
		store.txManager,
		store.trades,
		store.inventory,
		store.currency,
		settler,
		store.outbox,
		idGen,
		cache,
		m,
		logger,
		usecase.TradeOptions{
			AllowRenegotiation: cfg.TradeAllowRenegotiation,
			ClaimTTL:           cfg.SettlementClaimTTL,
			CacheTTL:           cfg.TradeCacheTTL,
		},
	)

	a.balances = usecase.NewBalanceUseCase(store.txManager, store.locker, store.inventory, store.currency, m)

	a.sweeper = worker.NewExpirySweeper(worker.ExpiryConfig{
		Expirer:     a.trades,
		Logger:      logger,
		IdleTimeout: cfg.TradeIdleTimeout,
		Interval:    cfg.TradeSweepInterval,
		BatchSize:   cfg.TradeSweepBatch,
	})

	if cfg.OutboxEnabled {
		publishers := eventpublisher.MultiPublisher{eventpublisher.NewLogPublisher(logger)}

		if cfg.DiscordWebhookURL != "" {
			discord, err := eventpublisher.NewDiscordPublisher(cfg.DiscordWebhookURL, cfg.DiscordWebhookLabel)
			if err != nil {
				return nil, err
			}

			a.closers = append(a.closers, discord.Close)
			publishers = append(publishers, discord)
		}

		a.publisher = eventpublisher.NewEventPublisher(eventpublisher.Config{
			OutboxRepo: store.outbox,
			Publisher:  publishers,
			Metrics:    m,
			Logger:     logger,
			BatchSize:  cfg.OutboxBatchSize,
			Interval:   cfg.OutboxPollInterval,
			Retention:  cfg.OutboxRetention,
		})
	}

	var verifier middleware.TokenVerifier
	if cfg.AuthEnabled {
		verifier = auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration)
	} else {
		logger.Warn().Msg("authentication disabled, trusting the X-Account-ID header")
	}

	if cfg.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, m)
	}

	a.handler = httpAdapter.NewRouter(httpAdapter.RouterConfig{
		TradeHandler:     handler.NewTradeHandler(a.trades, resolver),
		BalanceHandler:   handler.NewBalanceHandler(a.balances, resolver),
		CatalogHandler:   catalogHandler,
		HealthHandler:    handler.NewHealthHandler(checks...),
		Logger:           logger,
		Metrics:          m,
		MetricsHandler:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Verifier:         verifier,
		RateLimiter:      a.limiter,
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		IsPending:        redisRepo.IsPending,
	})

	ok = true

	return a, nil
}
