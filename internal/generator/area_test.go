package generator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/pkg/content"
)

const areaTemplate = "既存:\n{existing_areas}\n名前:{area_name}\n難易度:{difficulty}\n前:{previous_area}"

func areaPayload(name, treasure string) map[string]any {
	return map[string]any{
		"エリア名":      name,
		"地理的特徴":     "切り立った崖",
		"歴史や伝説":     []string{"古代の", "王国"},
		"リスクや挑戦":    "落石",
		"財宝":        map[string]string{"名称": treasure, "特徴": "輝く"},
		"財宝の隠し場所":   "崖の洞窟",
		"採取できるアイテム": []map[string]string{{"名称": "岩塩", "特徴": "白い"}, {"名称": "鷹の羽", "特徴": "軽い"}},
		"生息する危険な生物": []map[string]string{{"名称": "岩竜", "特徴": "硬い"}},
		"生息する無害な生物": "山羊: 崖を登る;兎: 小さい",
		"経由地候補":     []string{"見張り台: 古い塔"},
		"近くの街":      []map[string]string{{"名称": "石の町", "特徴": "石造り"}},
		"移動路":       []map[string]string{{"名称": "崖道", "特徴": "細い"}},
		"休憩ポイント":    []map[string]string{{"名称": "岩陰", "特徴": "風を防ぐ"}},
	}
}

type areaRecorder struct{ saved []content.Area }

func (r *areaRecorder) AppendArea(a content.Area) error {
	r.saved = append(r.saved, a)
	return nil
}

func TestAreaGenerator_Generate(t *testing.T) {
	llm := services.NewMockLLM(fenced(areaPayload("鷹の崖", "天空の冠")))
	rec := &areaRecorder{}
	g := NewAreaGenerator(llm, tmpl(areaTemplate), testSettings(), rec, discard)

	prev := testArea()
	area, err := g.Generate(context.Background(), AreaRequest{Difficulty: 2, Previous: &prev, Existing: []content.Area{prev}})
	require.NoError(t, err)

	assert.Equal(t, "鷹の崖", area.Name)
	assert.Equal(t, 2, area.Difficulty)
	assert.Equal(t, "霧の森", area.Previous)
	assert.Equal(t, "古代の王国", area.History)
	assert.Equal(t, content.Entry{Name: "天空の冠", Description: "輝く"}, area.Treasure)
	assert.True(t, area.HasItem("鷹の羽"))
	assert.Equal(t, []content.Entry{{Name: "山羊", Description: "崖を登る"}, {Name: "兎", Description: "小さい"}}, area.HarmlessCreatures)
	assert.Equal(t, []content.Entry{{Name: "見張り台", Description: "古い塔"}}, area.Waypoints)

	calls := llm.GetCalls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "霧の森,月光の宝玉,古い橋,リーフ村")
	assert.Contains(t, calls[0].Prompt, "難易度:2")
	assert.Contains(t, calls[0].Prompt, DefaultAreaNamePrompt)
	assert.Equal(t, services.DefaultGenerateTemperature, calls[0].Temperature)

	require.NoError(t, g.Save(area))
	assert.Len(t, rec.saved, 1)
}

func TestAreaGenerator_Validation(t *testing.T) {
	existing := []content.Area{testArea()}

	missing := areaPayload("鷹の崖", "天空の冠")
	delete(missing, "移動路")
	emptyField := areaPayload("鷹の崖", "天空の冠")
	emptyField["リスクや挑戦"] = ""
	ngWord := areaPayload("鷹の崖", "天空の冠")
	ngWord["地理的特徴"] = "禁句のある崖"

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{name: "missing field", payload: missing},
		{name: "empty field", payload: emptyField},
		{name: "ng word", payload: ngWord},
		{name: "banned char", payload: areaPayload("鷹の崖ー東", "天空の冠")},
		{name: "banned kanji", payload: areaPayload("深き谷", "天空の冠")},
		{name: "same name", payload: areaPayload("霧の森", "天空の冠")},
		{name: "contains existing name", payload: areaPayload("霧の森の奥", "天空の冠")},
		{name: "contained in existing name", payload: areaPayload("森", "天空の冠")},
		{name: "treasure overlap", payload: areaPayload("鷹の崖", "月光の宝玉のかけら")},
		{name: "treasure contained", payload: areaPayload("鷹の崖", "宝玉")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			llm := services.NewMockLLM(fenced(tt.payload))
			g := NewAreaGenerator(llm, tmpl(areaTemplate), testSettings(), nil, discard)
			_, err := g.Generate(context.Background(), AreaRequest{Difficulty: 1, Existing: existing})
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestAreaGenerator_RequestedName(t *testing.T) {
	llm := services.NewMockLLM(fenced(areaPayload("鷹の崖", "天空の冠")))
	g := NewAreaGenerator(llm, tmpl(areaTemplate), testSettings(), nil, discard)
	_, err := g.Generate(context.Background(), AreaRequest{Name: "鷹の崖"})
	require.NoError(t, err)
	assert.Contains(t, llm.GetCalls()[0].Prompt, "名前:鷹の崖")
	assert.Contains(t, llm.GetCalls()[0].Prompt, "難易度:1")
}
