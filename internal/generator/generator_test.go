package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func testSettings() *settings.Settings {
	s := settings.Default()
	s.NGWords = []string{"禁句"}
	return s
}

func tmpl(text string) *prompts.Template {
	return &prompts.Template{Name: "test.txt", Text: text}
}

func fenced(v any) string {
	data, _ := json.Marshal(v)
	return "説明文\n```json\n" + string(data) + "\n```\n"
}

func testArea() content.Area {
	return content.Area{
		Name:       "霧の森",
		Difficulty: 1,
		Geography:  "霧に包まれた森",
		Treasure:   content.Entry{Name: "月光の宝玉", Description: "月の光を宿す"},
		Items:      []content.Entry{{Name: "薬草", Description: "傷を癒す"}, {Name: "銀苔"}},
		Waypoints:  []content.Entry{{Name: "古い橋", Description: "苔むした石橋"}},
		Cities:     []content.Entry{{Name: "リーフ村", Description: "森の入口の村"}},
		Routes:     []content.Entry{{Name: "獣道"}},
		RestPoints: []content.Entry{{Name: "泉", Description: "澄んだ泉"}},
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr error
	}{
		{name: "fenced", in: "前置き\n```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "trailing commas", in: "```json\n{\"a\": [1, 2,], \"b\": 3,\n}\n```", want: "{\"a\": [1, 2], \"b\": 3\n}"},
		{name: "comma in string kept", in: "```json\n{\"a\": \"x,}\"}\n```", want: `{"a": "x,}"}`},
		{name: "bare object", in: ` {"a": 1} `, want: `{"a": 1}`},
		{name: "no block", in: "JSONはありません", wantErr: ErrExtraction},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}

	var v map[string]any
	assert.ErrorIs(t, DecodeJSON("```json\n{broken\n```", &v), ErrExtraction)
}

func TestOrderedValues(t *testing.T) {
	values, err := orderedValues([]byte(`{"2": "森", "1": "橋", "10": 3}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"森", "橋", "3"}, values)

	_, err = orderedValues([]byte(`["森"]`))
	assert.Error(t, err)
}

func TestEmptyResponse(t *testing.T) {
	llm := services.NewMockLLM("   ")
	g := NewAreaGenerator(llm, tmpl("{area_name}"), testSettings(), nil, discard)
	_, err := g.Generate(context.Background(), AreaRequest{})
	assert.ErrorIs(t, err, retry.ErrEmptyResponse)
}

func TestBackendErrorPassesThrough(t *testing.T) {
	llm := services.NewMockLLM()
	llm.SetGenerateResponseError(&services.LLMError{Kind: services.KindRateLimited, Err: fmt.Errorf("429")})
	g := NewAreaGenerator(llm, tmpl("{area_name}"), testSettings(), nil, discard)
	_, err := g.Generate(context.Background(), AreaRequest{})
	assert.Equal(t, services.KindRateLimited, services.KindOf(err))
}

func numberedLines(n int, prefix string) string {
	var b strings.Builder
	b.WriteString("## 第1章\n")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "%d. %s%d行目\n", i, prefix, i)
	}
	return b.String()
}
