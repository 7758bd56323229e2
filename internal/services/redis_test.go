package services

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := NewRedisService("redis://"+mr.Addr(), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestRedisService_Basic(t *testing.T) {
	redisService, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, redisService.Ping(ctx))

	key := "progress:エリアA"
	require.NoError(t, redisService.Set(ctx, key, "value", time.Minute))

	got, err := redisService.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "value", got)

	mr.FastForward(2 * time.Minute)
	got, err = redisService.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, got, "expired key should read as a miss")

	require.NoError(t, redisService.Set(ctx, key, "again", 0))
	require.NoError(t, redisService.Del(ctx, key))
	assert.False(t, mr.Exists(key))
}

func TestRedisService_PlainAddr(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, err := NewRedisService(mr.Addr(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()
	assert.NoError(t, svc.Ping(context.Background()))
}

func TestNewRedisService_BadURL(t *testing.T) {
	_, err := NewRedisService("redis://localhost:6379/notadb", slog.Default())
	assert.Error(t, err)
}

func TestJSONHelpers(t *testing.T) {
	redisService, _ := newTestRedis(t)
	ctx := context.Background()

	type status struct{ Total, Completed int }
	require.NoError(t, SetJSON(ctx, redisService, "s", status{Total: 20, Completed: 3}, time.Minute))

	var got status
	ok, err := GetJSON(ctx, redisService, "s", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, status{Total: 20, Completed: 3}, got)

	ok, err = GetJSON(ctx, NewMockCache(), "missing", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
