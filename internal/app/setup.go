package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/mselser95/exchange-settlement/internal/events"
	"github.com/mselser95/exchange-settlement/internal/exchange"
	"github.com/mselser95/exchange-settlement/internal/settle"
	"github.com/mselser95/exchange-settlement/internal/state"
	"github.com/mselser95/exchange-settlement/internal/storage"
	"github.com/mselser95/exchange-settlement/pkg/cache"
	"github.com/mselser95/exchange-settlement/pkg/config"
	"github.com/mselser95/exchange-settlement/pkg/healthprobe"
	"github.com/mselser95/exchange-settlement/pkg/httpserver"
	"github.com/mselser95/exchange-settlement/pkg/signature"
	"github.com/mselser95/exchange-settlement/pkg/websocket"
)

const connectTimeout = 10 * time.Second

// New creates a new application instance and connects its backends.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())

	connectCtx, connectCancel := context.WithTimeout(ctx, connectTimeout)
	defer connectCancel()

	store, err := setupStore(connectCtx, cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup store: %w", err)
	}

	hub := websocket.NewHub(websocket.Config{Logger: logger})
	sinks, err := setupSinks(connectCtx, cfg, logger, hub)
	if err != nil {
		cancel()
		_ = store.Close()
		return nil, fmt.Errorf("setup sinks: %w", err)
	}

	signerCache, err := setupSignerCache(cfg, logger)
	if err != nil {
		cancel()
		_ = sinks.Close()
		_ = store.Close()
		return nil, fmt.Errorf("setup signer cache: %w", err)
	}
	validator := signature.NewValidator(&signature.ValidatorConfig{Cache: signerCache, Logger: logger})

	runner := settle.NewRunner(&settle.RunnerConfig{
		Env:             setupEnv(cfg, validator, logger),
		Store:           store,
		Sink:            sinks,
		MaxRetries:      cfg.SettlementMaxRetries,
		DefaultGasPrice: cfg.GasPrice(),
		Logger:          logger,
	})
	x := exchange.New(&exchange.Config{
		Runner:        runner,
		MaxRouteDepth: cfg.MaxRouteDepth,
		Logger:        logger,
	})

	healthChecker := healthprobe.New(store)
	httpServer := setupHTTPServer(cfg, logger, healthChecker, x, hub)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		store:         store,
		sinks:         sinks,
		hub:           hub,
		signerCache:   signerCache,
		exchange:      x,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (state.Store, error) {
	switch cfg.StoreMode {
	case config.StorePostgres:
		pgStore, err := state.NewPostgresStore(ctx, &state.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return pgStore, nil
	case config.StoreRedis:
		redisStore, err := state.NewRedisStore(ctx, &state.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		return redisStore, nil
	default:
		logger.Info("memory-store-selected", zap.String("note", "state is lost on restart"))
		return state.NewMemoryStore(), nil
	}
}

// setupSinks always includes the websocket hub.
func setupSinks(ctx context.Context, cfg *config.Config, logger *zap.Logger, hub *websocket.Hub) (*storage.FanOut, error) {
	sinks := storage.NewFanOut(logger)

	var sink events.Sink
	switch cfg.EventSink {
	case config.SinkPostgres:
		pgSink, err := storage.NewPostgresSink(ctx, &storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres sink: %w", err)
		}
		sink = pgSink
	case config.SinkNATS:
		publisher, err := storage.NewNATSPublisher(&storage.NATSConfig{
			URL:           cfg.NATSURL,
			SubjectPrefix: cfg.NATSSubjectPrefix,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create nats publisher: %w", err)
		}
		sink = publisher
	case config.SinkConsole:
		sink = storage.NewConsoleSink(logger)
	}

	if sink != nil {
		sinks.Add(sink)
	}
	sinks.Add(hub)

	return sinks, nil
}

// setupSignerCache returns nil when caching is disabled.
func setupSignerCache(cfg *config.Config, logger *zap.Logger) (cache.SignerCache, error) {
	if cfg.SignerCacheSize == 0 {
		logger.Info("signer-cache-disabled")
		return nil, nil
	}
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		MaxEntries: cfg.SignerCacheSize,
		Logger:     logger,
	})
}

func setupEnv(cfg *config.Config, validator *signature.Validator, logger *zap.Logger) *settle.Env {
	return &settle.Env{
		Domain:                cfg.Domain(),
		Exchange:              cfg.Exchange(),
		WrappedNative:         cfg.WrappedNative(),
		ProtocolFeeCollector:  cfg.FeeCollector(),
		ProtocolFeeMultiplier: new(big.Int).Set(cfg.FeeMultiplier()),
		Validator:             validator,
		Logger:                logger,
	}
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	x *exchange.Exchange,
	hub *websocket.Hub,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Orders:        x,
		Events:        hub,
	})
}
