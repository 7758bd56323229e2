package generator

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

const logTemplate = "{before_chapter}|{chapter}|{after_chapter}|{next_chapter}|{before_log}|{area_info}|{precursor_log}"

func testAdventure() content.Adventure {
	chapters := make([]content.Chapter, 8)
	for i := range chapters {
		chapters[i] = content.Chapter{Title: "幕", Content: "道を進む"}
	}
	chapters[0].Content = "古い橋を渡り薬草を摘む"
	return content.Adventure{
		Name:     "失敗1_霧の森",
		Area:     "霧の森",
		Outcome:  content.OutcomeFailure,
		Chapters: chapters,
	}
}

func TestLogGenerator_GenerateChapter(t *testing.T) {
	resp := numberedLines(20, "{name}は歩いた") + "ここは番号のない行\n"
	llm := services.NewMockLLM(resp)
	g := NewLogGenerator(llm, tmpl(logTemplate), testSettings(), discard)

	out, err := g.GenerateChapter(context.Background(), LogRequest{Area: testArea(), Adventure: testAdventure()})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 20)
	assert.Equal(t, "{name}は歩いた1行目", lines[0])
	assert.True(t, strings.HasSuffix(out, "\n"))

	path := filepath.Join(t.TempDir(), "logs", "a.txt")
	require.NoError(t, g.Save(path, out))
	require.NoError(t, g.Save(path, out))
	assert.Equal(t, 40, storage.LineCount(path))
}

func TestLogGenerator_Validation(t *testing.T) {
	tests := []struct {
		name     string
		resp     string
		previous string
		wantErr  error
	}{
		{name: "too few lines", resp: numberedLines(19, "歩く"), wantErr: ErrValidation},
		{name: "no numbered lines", resp: "物語は始まらなかった", wantErr: ErrExtraction},
		{name: "unknown placeholder", resp: numberedLines(20, "{hero}は"), wantErr: ErrValidation},
		{name: "precursor without predecessor", resp: numberedLines(20, "{precursor}は"), wantErr: ErrValidation},
		{name: "ng word", resp: numberedLines(20, "禁句"), wantErr: ErrValidation},
		{name: "precursor in locked area", resp: numberedLines(20, "{precursor}は"), previous: "成功1_古都"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adv := testAdventure()
			adv.Previous = tt.previous
			g := NewLogGenerator(services.NewMockLLM(tt.resp), tmpl(logTemplate), testSettings(), discard)
			_, err := g.GenerateChapter(context.Background(), LogRequest{Area: testArea(), Adventure: adv})
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLogGenerator_ChapterVars(t *testing.T) {
	s := testSettings()
	s.ChapterSettings[content.OutcomeFailure] = make([]settings.ChapterSetting, 8)
	s.ChapterSettings[content.OutcomeFailure][0] = settings.ChapterSetting{BeforeChapter: "序", AfterChapter: "転"}
	s.AreaInfoText = "エリア情報:"
	g := NewLogGenerator(services.NewMockLLM(), tmpl(logTemplate), s, discard)
	adv := testAdventure()

	first := g.ChapterVars(LogRequest{Area: testArea(), Adventure: adv, PreLog: "無視される"})
	assert.Equal(t, "序", first["before_chapter"])
	assert.Equal(t, "転", first["after_chapter"])
	assert.Equal(t, "幕:古い橋を渡り薬草を摘む", first["chapter"])
	assert.Equal(t, "幕:道を進む", first["next_chapter"])
	assert.Equal(t, s.BeforeLogTemplate.Default, first["before_log"])
	assert.Equal(t, "エリア情報:\n  - 薬草: 傷を癒す\n  - 古い橋: 苔むした石橋", first["area_info"])

	second := g.ChapterVars(LogRequest{Area: testArea(), Adventure: adv, Chapter: 1, PreLog: "1. 前の章"})
	assert.Equal(t, "前章のログ:\n1. 前の章", second["before_log"])
	assert.Equal(t, "", second["area_info"])

	last := g.ChapterVars(LogRequest{Area: testArea(), Adventure: adv, Chapter: 7})
	assert.Equal(t, s.EndingLine, last["next_chapter"])
}

func TestLogGenerator_ChapterOutOfRange(t *testing.T) {
	g := NewLogGenerator(services.NewMockLLM(), tmpl(logTemplate), testSettings(), discard)
	_, err := g.GenerateChapter(context.Background(), LogRequest{Adventure: testAdventure(), Chapter: 8})
	assert.Error(t, err)
}
