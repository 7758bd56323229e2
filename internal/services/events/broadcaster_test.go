package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Publish(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	sub := client.Subscribe(ctx, Channel("run-1"))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	b := NewBroadcaster(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, b.PublishStarted(ctx, "run-1", "アーサー", "成功1_A"))
	require.NoError(t, b.PublishMessage(ctx, "run-1", "09:02", "森", "{name}は森に入った"))
	require.NoError(t, b.PublishError(ctx, "run-1", "log not found"))

	want := []EventType{EventTypePlaybackStarted, EventTypePlaybackMessage, EventTypePlaybackError}
	ch := sub.Channel()
	for _, w := range want {
		select {
		case msg := <-ch:
			var ev Event
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
			assert.Equal(t, w, ev.Type)
			assert.Equal(t, "run-1", ev.RunID)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %s", w)
		}
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "playback:abc", Channel("abc"))
}
