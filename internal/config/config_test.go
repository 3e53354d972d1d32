package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := LoadConfig()

		assert.Equal(t, "8080", cfg.Port)
		assert.Equal(t, "sqlite", cfg.StoreBackend)
		assert.Equal(t, 30*time.Second, cfg.SyncDebounce)
		assert.Equal(t, 3, cfg.SyncMaxRetries)
		assert.Equal(t, 2*time.Second, cfg.SyncInitialBackoff)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("SYNC_DEBOUNCE", "5s")
		t.Setenv("STORE_BACKEND", "memory")
		t.Setenv("JWT_SECRET", "s3cret")

		cfg := LoadConfig()

		assert.Equal(t, 5*time.Second, cfg.SyncDebounce)
		assert.Equal(t, "memory", cfg.StoreBackend)
		assert.Equal(t, "s3cret", cfg.JWTSecret)
	})
}
