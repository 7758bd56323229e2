// Package progress derives completion and review status from stored files.
package progress

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
)

// reviewKinds are the per-adventure rubric tables an area needs to be all green.
var reviewKinds = []storage.CheckKind{storage.CheckAdventure, storage.CheckLog, storage.CheckLocation}

// Status summarizes an area.
type Status struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Checked   int `json:"checked"`
}

// CompletedRatio is Completed/Total, or 0 for an empty area.
func (s Status) CompletedRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// CheckedRatio is Checked/Total, or 0 for an empty area.
func (s Status) CheckedRatio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Checked) / float64(s.Total)
}

// Complete reports whether every adventure has a full log.
func (s Status) Complete() bool {
	return s.Total > 0 && s.Completed == s.Total
}

// AllChecked reports whether every adventure passed every review.
func (s Status) AllChecked() bool {
	return s.Total > 0 && s.Checked == s.Total
}

// Reader is implemented by Tracker and CachedTracker.
type Reader interface {
	AreaStatus(ctx context.Context, area string) (Status, error)
}

// Tracker recomputes status from disk on every call.
type Tracker struct {
	store    *storage.Store
	settings *settings.Settings
}

func NewTracker(store *storage.Store, s *settings.Settings) *Tracker {
	return &Tracker{store: store, settings: s}
}

// IsLogComplete reports whether an adventure's log has at least MIN_LOG_LINES lines.
func (t *Tracker) IsLogComplete(area, adventure string) bool {
	return storage.LineCount(t.store.LogPath(area, adventure)) >= t.settings.MinLogLines
}

// IsAreaComplete is true when the area has adventures and every one has a complete log.
func (t *Tracker) IsAreaComplete(area string) (bool, error) {
	st, err := t.AreaStatus(context.Background(), area)
	if err != nil {
		return false, err
	}
	return st.Complete(), nil
}

// IsAreaAllChecked additionally requires a passing adventure, log and location row per adventure.
func (t *Tracker) IsAreaAllChecked(area string) (bool, error) {
	st, err := t.AreaStatus(context.Background(), area)
	if err != nil {
		return false, err
	}
	return st.Complete() && st.AllChecked(), nil
}

// AreaStatus counts adventures, complete logs and fully passing reviews.
func (t *Tracker) AreaStatus(_ context.Context, area string) (Status, error) {
	names, err := t.store.AdventureNames(area)
	if err != nil {
		return Status{}, fmt.Errorf("failed to load adventures of %s: %w", area, err)
	}

	tables := make([]*storage.Table, 0, len(reviewKinds))
	for _, kind := range reviewKinds {
		if !t.store.CheckExists(kind, area) {
			tables = nil
			break
		}
		table, err := t.store.LoadChecks(kind, area)
		if err != nil {
			return Status{}, fmt.Errorf("failed to load %s checks of %s: %w", kind, area, err)
		}
		tables = append(tables, table)
	}

	st := Status{Total: len(names)}
	for _, name := range names {
		if t.IsLogComplete(area, name) {
			st.Completed++
		}
		if tables != nil && t.passesAll(tables, name) {
			st.Checked++
		}
	}
	return st, nil
}

func (t *Tracker) passesAll(tables []*storage.Table, adventure string) bool {
	for _, table := range tables {
		row, ok := table.Find(adventure)
		if !ok || !t.RowPasses(table, row) {
			return false
		}
	}
	return true
}

// RowPasses reports whether every criterion cell of a rubric row starts with a pass mark.
// The subject and verdict columns are ignored.
func (t *Tracker) RowPasses(table *storage.Table, row []string) bool {
	verdict := table.Index(storage.VerdictColumn)
	criteria := 0
	for i := 1; i < len(table.Header); i++ {
		if i == verdict {
			continue
		}
		criteria++
		if i >= len(row) || !t.settings.HasPassPrefix(row[i]) {
			return false
		}
	}
	return criteria > 0
}

// CacheTTL is how long a cached status is trusted.
const CacheTTL = 30 * time.Second

// CachedTracker serves AreaStatus from a cache and falls back to the tracker on a miss.
type CachedTracker struct {
	tracker *Tracker
	cache   services.Cache
	ttl     time.Duration
	logger  *slog.Logger
}

func NewCachedTracker(tracker *Tracker, cache services.Cache, logger *slog.Logger) *CachedTracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedTracker{tracker: tracker, cache: cache, ttl: CacheTTL, logger: logger}
}

func cacheKey(area string) string {
	return "progress:" + area
}

func (c *CachedTracker) AreaStatus(ctx context.Context, area string) (Status, error) {
	var st Status
	found, err := services.GetJSON(ctx, c.cache, cacheKey(area), &st)
	if err != nil {
		logger.Warning(c.logger, "Progress cache read failed", "area", area, "error", err)
	}
	if found {
		return st, nil
	}

	st, err = c.tracker.AreaStatus(ctx, area)
	if err != nil {
		return Status{}, err
	}
	if err := services.SetJSON(ctx, c.cache, cacheKey(area), st, c.ttl); err != nil {
		logger.Warning(c.logger, "Progress cache write failed", "area", area, "error", err)
	}
	return st, nil
}

// Invalidate drops the cached status of each area.
func (c *CachedTracker) Invalidate(ctx context.Context, areas ...string) {
	for _, area := range areas {
		if err := c.cache.Del(ctx, cacheKey(area)); err != nil {
			logger.Warning(c.logger, "Progress cache delete failed", "area", area, "error", err)
		}
	}
}

var (
	_ Reader = (*Tracker)(nil)
	_ Reader = (*CachedTracker)(nil)
)
