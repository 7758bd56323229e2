package main

import (
	"context"
	"log/slog"

	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/playback"
)

// publisher is implemented by events.Broadcaster.
type publisher interface {
	PublishStarted(ctx context.Context, runID, adventurer, adventure string) error
	PublishMessage(ctx context.Context, runID, timestamp, location, text string) error
	PublishSummary(ctx context.Context, runID string, summary any) error
	PublishError(ctx context.Context, runID, errorMsg string) error
}

// relay forwards one playback event to pub. Publish failures are logged and
// never interrupt the playback.
func relay(ctx context.Context, pub publisher, runID string, e playback.Event, log *slog.Logger) {
	if pub == nil {
		return
	}
	var err error
	switch e.Type {
	case playback.EventHiring:
		err = pub.PublishStarted(ctx, runID, e.Adventurer, e.Adventure)
	case playback.EventMessage:
		err = pub.PublishMessage(ctx, runID, e.Time.Format("15:04"), e.Location, e.Text)
	case playback.EventSummary:
		err = pub.PublishSummary(ctx, runID, e.Summary)
	case playback.EventError:
		err = pub.PublishError(ctx, runID, e.Err.Error())
	}
	if err != nil {
		logger.Warning(logger.WithError(log, err), "Failed to publish playback event", "run_id", runID, "type", e.Type)
	}
}
