package app

import (
	"context"
	"fmt"

	gcfirestore "cloud.google.com/go/firestore"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mihaimyh/promptstudio/internal/config"
	"github.com/mihaimyh/promptstudio/pkg/kv"
	"github.com/mihaimyh/promptstudio/pkg/obs"
	"github.com/mihaimyh/promptstudio/storage/file"
	"github.com/mihaimyh/promptstudio/storage/firestore"
	"github.com/mihaimyh/promptstudio/storage/memory"
	"github.com/mihaimyh/promptstudio/storage/postgres"
	"github.com/mihaimyh/promptstudio/storage/redis"
	"github.com/mihaimyh/promptstudio/storage/tiered"
)

// openStore builds the configured backend, optionally behind a circuit
// breaker. The returned closers run in reverse order on shutdown.
func openStore(ctx context.Context, cfg config.StorageConfig, logger obs.Logger, metrics obs.Metrics) (kv.Store, []func() error, error) {
	var closers []func() error
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	var store kv.Store
	if cfg.Backend == config.BackendTiered {
		hot, hotClose, err := openBackend(ctx, cfg.Tiered.Hot, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("hot tier: %w", err)
		}
		closers = append(closers, hotClose)

		cold, coldClose, err := openBackend(ctx, cfg.Tiered.Cold, cfg)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("cold tier: %w", err)
		}
		closers = append(closers, coldClose)

		t, err := tiered.New(tiered.Config{
			Hot:            hot,
			Cold:           cold,
			AsyncSync:      cfg.Tiered.Async,
			SyncBufferSize: cfg.Tiered.BufferSize,
			AsyncErrorHandler: func(err error) {
				logger.Error("async cold tier write failed", obs.Err(err))
			},
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, t.Close)
		store = t
	} else {
		s, closer, err := openBackend(ctx, cfg.Backend, cfg)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, closer)
		store = s
	}

	if cfg.CircuitBreaker.Enabled {
		cb := kv.NewDefaultCircuitBreaker(cfg.CircuitBreaker.Threshold, cfg.CircuitBreaker.ResetTimeout,
			func(state kv.CircuitBreakerState) {
				metrics.RecordCircuitBreakerStateChange(string(state))
				logger.Warn("storage circuit breaker changed state", obs.F("state", string(state)))
			})
		store = kv.NewCircuitBreakerStore(store, cb)
	}

	logger.Info("storage ready", obs.F("backend", cfg.Backend))
	return store, closers, nil
}

func noClose() error { return nil }

func openBackend(ctx context.Context, name string, cfg config.StorageConfig) (kv.Store, func() error, error) {
	switch name {
	case config.BackendMemory:
		return memory.New(), noClose, nil

	case config.BackendFile:
		s, err := file.New(file.Config{Dir: cfg.File.Dir})
		if err != nil {
			return nil, nil, err
		}
		return s, noClose, nil

	case config.BackendRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s, err := redis.New(client, redis.Config{KeyPrefix: cfg.Redis.KeyPrefix, TTL: cfg.Redis.TTL})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		return s, client.Close, nil

	case config.BackendPostgres:
		pgCfg := postgres.DefaultConfig()
		pgCfg.ConnectionString = cfg.Postgres.DSN
		pgCfg.Table = cfg.Postgres.Table
		pgCfg.Migrate = cfg.Postgres.Migrate
		if cfg.Postgres.MaxConns > 0 {
			pgCfg.MaxConns = cfg.Postgres.MaxConns
		}
		s, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { s.Close(); return nil }, nil

	case config.BackendFirestore:
		client, err := gcfirestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore client: %w", err)
		}
		s, err := firestore.New(client, firestore.Config{Collection: cfg.Firestore.Collection})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", name)
}
