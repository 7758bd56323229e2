package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-forge/internal/progress"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var testTemplates = map[string]string{
	NewAreaTemplate:        "NEW_AREA {area_name} {difficulty}\n{previous_area}",
	NewAdventureTemplate:   "NEW_ADVENTURE {adventure_name}",
	NewLogTemplate:         "NEW_LOG {chapter}\n{precursor_log}",
	NewLocationTemplate:    "NEW_LOCATION\n{log}",
	CheckAreaTemplate:      "CHECK {area_name}",
	CheckAdventureTemplate: "CHECK {adventure_name}",
	CheckLogTemplate:       "CHECK {adventure_name}",
	CheckLocationTemplate:  "CHECK {adventure_name}",
}

var testCriteria = []string{"整合性", "文体"}

type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sleeps = append(r.sleeps, d)
	return nil
}

type harness struct {
	handler  *Handler
	store    *storage.Store
	settings *settings.Settings
	tracker  *progress.Tracker
	llm      *services.MockLLM
	sleeper  *recordingSleeper
	exitCode int
}

func newHarness(t *testing.T, respond func(prompt string) (string, error)) *harness {
	t.Helper()
	dir := t.TempDir()
	s := settings.Default()
	s.DataDir = filepath.Join(dir, "data")
	s.CheckResultDir = filepath.Join(dir, "check_results")
	s.PromptDir = filepath.Join(dir, "prompt")
	s.UserDataDir = filepath.Join(dir, "user_data")
	s.AreaCheckKeys = testCriteria
	s.AdvCheckKeys = testCriteria
	s.LockedAdvCheckKeys = testCriteria
	s.LogCheckKeys = testCriteria
	s.LocationCheckKeys = testCriteria

	require.NoError(t, os.MkdirAll(s.PromptDir, 0o755))
	for name, text := range testTemplates {
		require.NoError(t, os.WriteFile(s.PromptPath(name), []byte(text), 0o644))
	}
	templates, err := LoadTemplates(s)
	require.NoError(t, err)

	llm := services.NewMockLLM()
	llm.GenerateResponseFunc = func(ctx context.Context, req services.Request) (string, error) {
		return respond(req.Prompt)
	}

	store := storage.NewStore(s, discard)
	h := &harness{
		store:    store,
		settings: s,
		tracker:  progress.NewTracker(store, s),
		llm:      llm,
		sleeper:  &recordingSleeper{},
		exitCode: -1,
	}
	h.handler = NewHandler(CommandContext{Client: llm, ModelName: "mock-model"}, s, store, templates, discard)
	h.handler.SetSleeper(h.sleeper.Sleep)
	h.handler.Exit = func(code int) { h.exitCode = code }
	return h
}

func fence(v any) string {
	data, _ := json.Marshal(v)
	return "```json\n" + string(data) + "\n```"
}

func areaResponse(name string) string {
	entry := func(n, d string) []map[string]string { return []map[string]string{{"名称": n, "特徴": d}} }
	return fence(map[string]any{
		"エリア名":      name,
		"地理的特徴":     "切り立った崖",
		"歴史や伝説":     "古い王国の跡",
		"リスクや挑戦":    "落石",
		"財宝":        map[string]string{"名称": name + "の冠", "特徴": "輝く"},
		"財宝の隠し場所":   "洞窟",
		"採取できるアイテム": entry("岩塩", "白い"),
		"生息する危険な生物": entry("岩竜", "硬い"),
		"生息する無害な生物": entry("山羊", "登る"),
		"経由地候補":     entry("見張り台", "古い塔"),
		"近くの街":      entry("石の町", "石造り"),
		"移動路":       entry("崖道", "細い"),
		"休憩ポイント":    entry("岩陰", "風を防ぐ"),
	})
}

func adventureResponse() string {
	chapters := make([]map[string]string, 8)
	for i := range chapters {
		chapters[i] = map[string]string{"number": fmt.Sprintf("%d章", i+1), "title": "道", "content": "進む"}
	}
	return fence(map[string]any{"result": "結果", "chapters": chapters})
}

func logResponse(prefix string) string {
	var b strings.Builder
	for i := 1; i <= 20; i++ {
		fmt.Fprintf(&b, "%d. %s%d\n", i, prefix, i)
	}
	return b.String()
}

func locationResponse(prompt string) string {
	n := strings.Count(prompt, "\n")
	values := make([]string, n)
	for i := range values {
		values[i] = fmt.Sprintf("\"%d\": \"見張り台\"", i+1)
	}
	return "```json\n{" + strings.Join(values, ",") + "}\n```"
}

func passingRubric() string {
	payload := map[string]any{"総合評価": "✅"}
	for _, c := range testCriteria {
		payload[c] = map[string]string{"評価": "✅", "理由": "良い"}
	}
	return fence(payload)
}

// happyPath answers every template with valid content.
func happyPath(areaName string) func(string) (string, error) {
	return func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "NEW_AREA"):
			return areaResponse(areaName), nil
		case strings.HasPrefix(prompt, "NEW_ADVENTURE"):
			return adventureResponse(), nil
		case strings.HasPrefix(prompt, "NEW_LOG"):
			return logResponse("{name}は進んだ"), nil
		case strings.HasPrefix(prompt, "NEW_LOCATION"):
			return locationResponse(prompt), nil
		case strings.HasPrefix(prompt, "CHECK"):
			return passingRubric(), nil
		}
		return "", fmt.Errorf("unexpected prompt %q", prompt)
	}
}

func seedArea(t *testing.T, store *storage.Store, a content.Area) {
	t.Helper()
	if a.Difficulty == 0 {
		a.Difficulty = 1
	}
	require.NoError(t, store.AppendArea(a))
}

func TestPipeline_EndToEnd(t *testing.T) {
	h := newHarness(t, happyPath("鷹の崖"))
	ctx := context.Background()

	require.NoError(t, h.handler.Run(ctx, CommandArea, "", false))
	area, err := h.store.LoadArea("鷹の崖")
	require.NoError(t, err)
	assert.Equal(t, 1, area.Difficulty)
	has, err := h.store.HasCheck(storage.CheckArea, "", "鷹の崖")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, h.handler.Run(ctx, CommandAdventure, "", false))
	names, err := h.store.AdventureNames("鷹の崖")
	require.NoError(t, err)
	require.Len(t, names, 20)
	assert.Equal(t, "失敗1_鷹の崖", names[0])
	assert.Equal(t, "大成功1_鷹の崖", names[19])
	great, err := h.store.LoadAdventure("鷹の崖", "大成功1_鷹の崖")
	require.NoError(t, err)
	assert.Equal(t, "鷹の崖の冠", great.Item)

	require.NoError(t, h.handler.Run(ctx, CommandLog, "", false))
	complete, err := h.tracker.IsAreaComplete("鷹の崖")
	require.NoError(t, err)
	assert.True(t, complete)
	assert.False(t, storage.Exists(h.store.LogTempPath("鷹の崖", names[0])))

	require.NoError(t, h.handler.Run(ctx, CommandLocation, "", false))
	for _, name := range names {
		assert.Equal(t, storage.LineCount(h.store.LogPath("鷹の崖", name)), storage.LineCount(h.store.LocationPath("鷹の崖", name)))
	}

	checked, err := h.tracker.IsAreaAllChecked("鷹の崖")
	require.NoError(t, err)
	assert.True(t, checked)
	assert.Equal(t, -1, h.exitCode)
	assert.Empty(t, h.sleeper.sleeps)

	// A second run finds nothing left to do.
	calls := len(h.llm.GetCalls())
	require.NoError(t, h.handler.Run(ctx, CommandLocation, "", false))
	require.NoError(t, h.handler.Run(ctx, CommandLog, "", false))
	assert.Len(t, h.llm.GetCalls(), calls)
}

func TestPipeline_RateLimitSleepsAndExits(t *testing.T) {
	h := newHarness(t, func(string) (string, error) {
		return "", &services.LLMError{Backend: "mock", StatusCode: 429, Kind: services.KindRateLimited, Err: fmt.Errorf("too many requests")}
	})

	err := h.handler.Run(context.Background(), CommandArea, "1", false)
	assert.ErrorIs(t, err, retry.ErrRateLimitExceeded)
	assert.Equal(t, 1, h.exitCode)

	var total time.Duration
	for _, d := range h.sleeper.sleeps[:len(h.sleeper.sleeps)-1] {
		total += d
	}
	assert.Equal(t, retry.RateLimitBudget, total)
	assert.Equal(t, retry.Cooldown, h.sleeper.sleeps[len(h.sleeper.sleeps)-1])
}

func TestPipeline_LogRetryLimitCascades(t *testing.T) {
	h := newHarness(t, func(prompt string) (string, error) {
		if strings.HasPrefix(prompt, "NEW_LOG") {
			return "1. 短すぎる\n", nil
		}
		return passingRubric(), nil
	})
	seedArea(t, h.store, content.Area{Name: "霧の森", Treasure: content.Entry{Name: "宝玉"}})
	adv := content.Adventure{Name: "失敗1_霧の森", Area: "霧の森", Outcome: content.OutcomeFailure, Chapters: make([]content.Chapter, 8)}
	require.NoError(t, h.store.AppendAdventure(adv))

	require.NoError(t, h.handler.Run(context.Background(), CommandLog, "", false))

	assert.False(t, storage.Exists(h.store.LogPath("霧の森", adv.Name)))
	assert.False(t, storage.Exists(h.store.LogTempPath("霧の森", adv.Name)))
	assert.Len(t, h.llm.GetCalls(), h.settings.MaxRetries, "validation failures retry immediately")
	assert.Empty(t, h.sleeper.sleeps)

	names, err := h.store.AdventureNames("霧の森")
	require.NoError(t, err)
	assert.Equal(t, []string{adv.Name}, names, "a failed log keeps its adventure")
}

func TestPipeline_AdventureRetryLimitMovesToNextArea(t *testing.T) {
	h := newHarness(t, func(prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "NEW_ADVENTURE 失敗1_霧の森"):
			return "```json\n{\"result\": \"x\", \"chapters\": []}\n```", nil
		case strings.HasPrefix(prompt, "NEW_ADVENTURE"):
			return adventureResponse(), nil
		}
		return passingRubric(), nil
	})
	seedArea(t, h.store, content.Area{Name: "霧の森", Treasure: content.Entry{Name: "宝玉"}})
	seedArea(t, h.store, content.Area{Name: "鷹の崖", Treasure: content.Entry{Name: "冠"}})

	require.NoError(t, h.handler.Run(context.Background(), CommandAdventure, string(content.OutcomeFailure), false))

	first, err := h.store.AdventureNames("霧の森")
	require.NoError(t, err)
	assert.Empty(t, first)
	second, err := h.store.AdventureNames("鷹の崖")
	require.NoError(t, err)
	assert.Len(t, second, 10)
}

func TestPipeline_AreaWaitsForUnfinishedAreas(t *testing.T) {
	h := newHarness(t, happyPath("鷹の崖"))
	seedArea(t, h.store, content.Area{Name: "霧の森", Treasure: content.Entry{Name: "宝玉"}})

	require.NoError(t, h.handler.Run(context.Background(), CommandArea, "3", false))
	assert.Empty(t, h.llm.GetCalls())
}

func TestPipeline_DebugStopsAfterOneUnit(t *testing.T) {
	h := newHarness(t, happyPath("鷹の崖"))
	h.handler.cc.DebugMode = true
	seedArea(t, h.store, content.Area{Name: "霧の森", Treasure: content.Entry{Name: "宝玉"}})

	require.NoError(t, h.handler.Run(context.Background(), CommandAdventure, "", false))
	names, err := h.store.AdventureNames("霧の森")
	require.NoError(t, err)
	assert.Len(t, names, 1)
}

func TestPipeline_LockedAreaAndAdventure(t *testing.T) {
	h := newHarness(t, happyPath("鷹の崖"))
	ctx := context.Background()
	seedArea(t, h.store, content.Area{Name: "霧の森", Treasure: content.Entry{Name: "宝玉"}})
	great := content.Adventure{Name: "大成功1_霧の森", Area: "霧の森", Outcome: content.OutcomeGreatSuccess, Item: "宝玉", Chapters: make([]content.Chapter, 8)}
	require.NoError(t, h.store.AppendAdventure(great))
	require.NoError(t, storage.WriteText(h.store.LogPath("霧の森", great.Name), strings.Repeat("{name}は歩いた\n", 160)))

	require.NoError(t, h.handler.Run(ctx, CommandLockedArea, "", false))
	locked, err := h.store.LoadArea("鷹の崖")
	require.NoError(t, err)
	assert.Equal(t, 2, locked.Difficulty)
	assert.Equal(t, "霧の森", locked.Previous)
	prev, err := h.store.LoadArea("霧の森")
	require.NoError(t, err)
	assert.Equal(t, "鷹の崖", prev.Next)

	require.NoError(t, h.handler.Run(ctx, CommandLockedArea, "", false), "an area with a next link is skipped")
	areas, err := h.store.LoadAreas()
	require.NoError(t, err)
	assert.Len(t, areas, 2)

	require.NoError(t, h.handler.Run(ctx, CommandLockedAdventure, string(content.OutcomeGreatSuccess), false))
	adv, err := h.store.LoadAdventure("鷹の崖", "大成功1_鷹の崖")
	require.NoError(t, err)
	assert.Equal(t, "大成功1_霧の森", adv.Previous)
	pred, err := h.store.LoadAdventure("霧の森", "大成功1_霧の森")
	require.NoError(t, err)
	assert.Equal(t, "大成功1_鷹の崖", pred.Next)

	require.NoError(t, h.handler.Run(ctx, CommandAdventure, string(content.OutcomeGreatSuccess), false))
	names, err := h.store.AdventureNames("鷹の崖")
	require.NoError(t, err)
	assert.Len(t, names, 1, "plain adventure skips locked areas")

	var sawPrecursor bool
	h.llm.GenerateResponseFunc = func(ctx context.Context, req services.Request) (string, error) {
		if strings.HasPrefix(req.Prompt, "NEW_LOG") {
			sawPrecursor = sawPrecursor || strings.Contains(req.Prompt, "{name}は歩いた")
			return logResponse("{precursor}と{name}"), nil
		}
		return passingRubric(), nil
	}
	require.NoError(t, h.handler.Run(ctx, CommandLockedLog, "", false))
	assert.True(t, sawPrecursor)
	assert.Equal(t, 160, storage.LineCount(h.store.LogPath("鷹の崖", "大成功1_鷹の崖")))
}

func TestPipeline_CheckOnly(t *testing.T) {
	h := newHarness(t, happyPath("unused"))
	seedArea(t, h.store, content.Area{Name: "霧の森", Treasure: content.Entry{Name: "宝玉"}})
	for _, n := range []int{1, 2} {
		require.NoError(t, h.store.AppendAdventure(content.Adventure{
			Name: content.AdventureName(content.OutcomeFailure, n, "霧の森"), Area: "霧の森",
			Outcome: content.OutcomeFailure, Chapters: []content.Chapter{{Title: "t", Content: "c"}},
		}))
	}

	require.NoError(t, h.handler.Run(context.Background(), CommandAdventure, "", true))
	table, err := h.store.LoadChecks(storage.CheckAdventure, "霧の森")
	require.NoError(t, err)
	assert.Equal(t, []string{"失敗1_霧の森", "失敗2_霧の森"}, table.Keys())
	for _, call := range h.llm.GetCalls() {
		assert.True(t, strings.HasPrefix(call.Prompt, "CHECK"))
	}

	calls := len(h.llm.GetCalls())
	require.NoError(t, h.handler.Run(context.Background(), CommandAdventure, "", true))
	assert.Len(t, h.llm.GetCalls(), calls, "already checked")

	require.NoError(t, h.handler.Run(context.Background(), CommandArea, "", true))
	has, err := h.store.HasCheck(storage.CheckArea, "", "霧の森")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestPipeline_BadArguments(t *testing.T) {
	h := newHarness(t, happyPath("x"))
	assert.Error(t, h.handler.Run(context.Background(), CommandArea, "zero", false))
	assert.Error(t, h.handler.Run(context.Background(), CommandAdventure, "勝利", false))
	assert.Error(t, h.handler.Run(context.Background(), "dungeon", "", false))
}
