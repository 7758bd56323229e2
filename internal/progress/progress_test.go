package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var criteria = []string{"整合性", "文体"}

func newTestTracker(t *testing.T) (*Tracker, *storage.Store, *settings.Settings) {
	t.Helper()
	dir := t.TempDir()
	s := settings.Default()
	s.DataDir = filepath.Join(dir, "data")
	s.CheckResultDir = filepath.Join(dir, "check_results")
	s.UserDataDir = filepath.Join(dir, "user_data")
	store := storage.NewStore(s, discard)
	return NewTracker(store, s), store, s
}

// seedAdventures creates 失敗1..10, 成功1..9 and 大成功1 for area.
func seedAdventures(t *testing.T, store *storage.Store, area string) []string {
	t.Helper()
	counts := []struct {
		outcome content.Outcome
		n       int
	}{
		{content.OutcomeFailure, 10},
		{content.OutcomeSuccess, 9},
		{content.OutcomeGreatSuccess, 1},
	}
	var names []string
	for _, c := range counts {
		for i := 1; i <= c.n; i++ {
			name := content.AdventureName(c.outcome, i, area)
			require.NoError(t, store.AppendAdventure(content.Adventure{
				Name:     name,
				Area:     area,
				Outcome:  c.outcome,
				Chapters: []content.Chapter{{Title: "t", Content: "c"}},
			}))
			names = append(names, name)
		}
	}
	return names
}

func writeLog(t *testing.T, store *storage.Store, area, adventure string, lines int) {
	t.Helper()
	body := strings.Repeat("{name}は歩いた\n", lines)
	require.NoError(t, storage.WriteText(store.LogPath(area, adventure), body))
}

func passingCheck(subject string) content.CheckResult {
	return content.CheckResult{Subject: subject, Verdict: "✅", Marks: []content.Mark{
		{Criterion: "整合性", Mark: "✅", Reason: "良い"},
		{Criterion: "文体", Mark: "✅", Reason: "良い"},
	}}
}

func TestTracker_EndToEnd(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	names := seedAdventures(t, store, "A")
	require.Len(t, names, 20)

	st, err := tracker.AreaStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, Status{Total: 20}, st)

	for _, name := range names[:19] {
		writeLog(t, store, "A", name, 160)
	}
	writeLog(t, store, "A", names[19], 159)

	complete, err := tracker.IsAreaComplete("A")
	require.NoError(t, err)
	assert.False(t, complete, "one log is a line short")

	writeLog(t, store, "A", names[19], 160)
	complete, err = tracker.IsAreaComplete("A")
	require.NoError(t, err)
	assert.True(t, complete)

	checked, err := tracker.IsAreaAllChecked("A")
	require.NoError(t, err)
	assert.False(t, checked, "no check tables yet")

	for _, kind := range reviewKinds {
		for _, name := range names {
			require.NoError(t, store.AppendCheck(kind, "A", passingCheck(name), criteria))
		}
	}

	checked, err = tracker.IsAreaAllChecked("A")
	require.NoError(t, err)
	assert.True(t, checked)

	st, err = tracker.AreaStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, Status{Total: 20, Completed: 20, Checked: 20}, st)
	assert.Equal(t, 1.0, st.CheckedRatio())
}

func TestTracker_FailingAndMissingRows(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	names := seedAdventures(t, store, "A")
	for _, name := range names {
		writeLog(t, store, "A", name, 160)
	}
	for _, kind := range reviewKinds {
		for _, name := range names[1:] {
			r := passingCheck(name)
			if kind == storage.CheckLocation && name == names[2] {
				r.Marks[1].Mark = "❌"
			}
			require.NoError(t, store.AppendCheck(kind, "A", r, criteria))
		}
	}

	st, err := tracker.AreaStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 18, st.Checked, "missing row and failing mark both count as unchecked")
	assert.InDelta(t, 0.9, st.CheckedRatio(), 1e-9)

	checked, err := tracker.IsAreaAllChecked("A")
	require.NoError(t, err)
	assert.False(t, checked)
}

func TestTracker_EmptyArea(t *testing.T) {
	tracker, _, _ := newTestTracker(t)
	complete, err := tracker.IsAreaComplete("none")
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, 0.0, Status{}.CompletedRatio())
}

func TestRowPasses(t *testing.T) {
	tracker, _, s := newTestTracker(t)
	s.CheckMarks = []string{"✅", "⭕"}
	table := &storage.Table{Header: []string{"冒険名", "a", "b", "総合評価"}}

	assert.True(t, tracker.RowPasses(table, []string{"x", "✅理由", "⭕理由", "❌"}), "verdict is ignored")
	assert.False(t, tracker.RowPasses(table, []string{"x", "✅理由", "❌理由", "✅"}))
	assert.False(t, tracker.RowPasses(table, []string{"x", "✅理由"}), "short row")
	assert.False(t, tracker.RowPasses(&storage.Table{Header: []string{"冒険名", "総合評価"}}, []string{"x", "✅"}))
}

func TestCachedTracker_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cache, err := services.NewRedisService(mr.Addr(), discard)
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	tracker, store, _ := newTestTracker(t)
	names := seedAdventures(t, store, "A")
	cached := NewCachedTracker(tracker, cache, discard)

	st, err := cached.AreaStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Completed)
	assert.True(t, mr.Exists("progress:A"))

	writeLog(t, store, "A", names[0], 160)
	st, err = cached.AreaStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 0, st.Completed, "served from cache")

	cached.Invalidate(context.Background(), "A")
	st, err = cached.AreaStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 1, st.Completed)

	mr.FastForward(CacheTTL + 1)
	assert.False(t, mr.Exists("progress:A"))
}

func TestCachedTracker_CacheErrorsFallBack(t *testing.T) {
	tracker, store, _ := newTestTracker(t)
	seedAdventures(t, store, "A")

	cache := services.NewMockCache()
	cache.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", fmt.Errorf("connection refused")
	}
	cached := NewCachedTracker(tracker, cache, discard)

	st, err := cached.AreaStatus(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, 20, st.Total)
	assert.Len(t, cache.SetCalls, 1)
}
