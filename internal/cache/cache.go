// Package cache stores short-lived values: cached orders and client state.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/config"
)

// Store is a byte-oriented key/value cache with per-key expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ErrCacheMiss indicates the key is absent from the cache.
var ErrCacheMiss = errors.New("cache miss")

// Module provides the cache store to the Fx graph.
var Module = fx.Provide(NewStore)

// NewStore returns the backend named by cfg.Cache.Driver. The noop driver
// always misses.
func NewStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Cache.Driver {
	case "noop":
		logger.Info("cache disabled")
		return noopStore{}, nil
	case "memory":
		logger.Info("cache kept in process memory", zap.Duration("ttl", cfg.Cache.DefaultTTL))
		return NewMemoryStore(cfg.Cache.DefaultTTL), nil
	case "redis":
		store, err := NewRedisStore(cfg.Cache.Redis, cfg.Cache.DefaultTTL)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := store.Ping(ctx); err != nil {
					return fmt.Errorf("ping redis: %w", err)
				}
				logger.Info("redis cache connected", zap.String("prefix", cfg.Cache.Redis.KeyPrefix))
				return nil
			},
			OnStop: func(context.Context) error {
				return store.Close()
			},
		})
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

type noopStore struct{}

func (noopStore) Get(context.Context, string) ([]byte, error)              { return nil, ErrCacheMiss }
func (noopStore) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (noopStore) Delete(context.Context, string) error                     { return nil }
