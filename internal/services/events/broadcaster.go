package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypePlaybackStarted EventType = "playback.started"
	EventTypePlaybackMessage EventType = "playback.message"
	EventTypePlaybackSummary EventType = "playback.summary"
	EventTypePlaybackError   EventType = "playback.error"
)

// Event is the JSON payload published for each playback step
type Event struct {
	Type  EventType      `json:"type"`
	RunID string         `json:"run_id"`
	Data  map[string]any `json:"data,omitempty"`
}

// Channel returns the pub/sub channel for a playback run.
func Channel(runID string) string {
	return fmt.Sprintf("playback:%s", runID)
}

// Broadcaster publishes playback events to Redis Pub/Sub
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

// NewBroadcaster creates a new event broadcaster
func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

func (b *Broadcaster) PublishStarted(ctx context.Context, runID, adventurer, adventure string) error {
	return b.publish(ctx, Event{
		Type:  EventTypePlaybackStarted,
		RunID: runID,
		Data: map[string]any{
			"adventurer": adventurer,
			"adventure":  adventure,
		},
	})
}

func (b *Broadcaster) PublishMessage(ctx context.Context, runID, timestamp, location, text string) error {
	return b.publish(ctx, Event{
		Type:  EventTypePlaybackMessage,
		RunID: runID,
		Data: map[string]any{
			"time":     timestamp,
			"location": location,
			"text":     text,
		},
	})
}

func (b *Broadcaster) PublishSummary(ctx context.Context, runID string, summary any) error {
	return b.publish(ctx, Event{
		Type:  EventTypePlaybackSummary,
		RunID: runID,
		Data:  map[string]any{"summary": summary},
	})
}

func (b *Broadcaster) PublishError(ctx context.Context, runID, errorMsg string) error {
	return b.publish(ctx, Event{
		Type:  EventTypePlaybackError,
		RunID: runID,
		Data:  map[string]any{"error": errorMsg},
	})
}

func (b *Broadcaster) publish(ctx context.Context, event Event) error {
	channel := Channel(event.RunID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", event.Type)
	return nil
}
