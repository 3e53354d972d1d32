// Package storage provides the key-value stores local tracker state is
// persisted in.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/gdg-garage/airbadge/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("storage: key not found")

// KV is a byte-valued key-value store.
type KV interface {
	// Get returns ErrNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// New builds the store selected by cfg.StoreBackend.
func New(cfg *config.Config, db *gorm.DB, logger *zap.Logger) (KV, error) {
	switch cfg.StoreBackend {
	case "", "sqlite":
		if db == nil {
			return nil, fmt.Errorf("sqlite store requires a database")
		}
		return NewGorm(db), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("Using redis store", zap.String("addr", opts.Addr))
		return NewRedis(client), nil
	case "memory":
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
