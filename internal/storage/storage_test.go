package storage

import (
	"context"
	"os"
	"testing"

	"github.com/gdg-garage/airbadge/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func exerciseKV(t *testing.T, kv KV) {
	ctx := context.Background()

	_, err := kv.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "a", []byte(`{"n":1}`)))
	v, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `{"n":1}`, string(v))

	require.NoError(t, kv.Set(ctx, "a", []byte(`{"n":2}`)))
	v, err = kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, `{"n":2}`, string(v))

	require.NoError(t, kv.Set(ctx, "b", []byte("x")))
	require.NoError(t, kv.Delete(ctx, "a", "b", "never-set"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = kv.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Delete(ctx))
}

func TestMemory(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestMemory_CopiesValues(t *testing.T) {
	kv := NewMemory()
	buf := []byte("abc")
	require.NoError(t, kv.Set(context.Background(), "k", buf))
	buf[0] = 'z'

	v, err := kv.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}

func TestGorm(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	require.NoError(t, db.AutoMigrate(&models.KVEntry{}))

	exerciseKV(t, NewGorm(db))
}

func TestRedis(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	exerciseKV(t, NewRedis(client))
}
