package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
	"github.com/jwebster45206/story-forge/pkg/textfilter"
)

// DefaultAreaNamePrompt is sent as area_name when no name is requested.
const DefaultAreaNamePrompt = "既存のエリアと重複しない、新しいエリア名を考えてください。"

// areaFields are the keys the area payload must carry.
var areaFields = []string{
	"エリア名", "地理的特徴", "歴史や伝説", "リスクや挑戦", "財宝", "財宝の隠し場所",
	"採取できるアイテム", "生息する危険な生物", "生息する無害な生物", "経由地候補",
	"近くの街", "移動路", "休憩ポイント",
}

// AreaRequest describes the area to generate.
type AreaRequest struct {
	Name       string
	Difficulty int
	// Previous is set for a locked area reached from a predecessor.
	Previous *content.Area
	Existing []content.Area
}

// AreaSaver persists generated areas.
type AreaSaver interface {
	AppendArea(a content.Area) error
}

type AreaGenerator struct {
	base
	store AreaSaver
}

func NewAreaGenerator(llm services.LLMService, tmpl *prompts.Template, s *settings.Settings, store AreaSaver, logger *slog.Logger) *AreaGenerator {
	return &AreaGenerator{base: newBase(llm, tmpl, s, logger), store: store}
}

// Generate asks the backend for one area and validates it against the existing ones.
func (g *AreaGenerator) Generate(ctx context.Context, req AreaRequest) (content.Area, error) {
	name := req.Name
	if name == "" {
		name = DefaultAreaNamePrompt
	}
	previous := ""
	if req.Previous != nil {
		previous = fmt.Sprintf("%s: %s\n%s", req.Previous.Name, req.Previous.Geography, req.Previous.History)
	}

	vars := prompts.New(g.tmpl).
		With("existing_areas", existingAreasCSV(req.Existing)).
		With("area_name", name).
		WithInt("difficulty", max(req.Difficulty, 1)).
		With("previous_area", previous)

	resp, err := g.complete(ctx, vars, services.DefaultGenerateTemperature, services.FormatText)
	if err != nil {
		return content.Area{}, err
	}

	area, err := g.parse(resp)
	if err != nil {
		return content.Area{}, err
	}
	area.Difficulty = max(req.Difficulty, 1)
	if req.Previous != nil {
		area.Previous = req.Previous.Name
	}
	if err := g.validate(area, req.Existing); err != nil {
		return content.Area{}, err
	}
	return area, nil
}

// Save appends the area to its tier table.
func (g *AreaGenerator) Save(a content.Area) error {
	return g.store.AppendArea(a)
}

// existingAreasCSV lists "name,treasure,waypoints,cities" per area so the model avoids repeats.
func existingAreasCSV(areas []content.Area) string {
	lines := make([]string, len(areas))
	for i, a := range areas {
		lines[i] = strings.Join([]string{
			a.Name,
			a.Treasure.Name,
			strings.Join(content.EntryNames(a.Waypoints), ";"),
			strings.Join(content.EntryNames(a.Cities), ";"),
		}, ",")
	}
	return strings.Join(lines, "\n")
}

func (g *AreaGenerator) parse(resp string) (content.Area, error) {
	var raw map[string]json.RawMessage
	if err := DecodeJSON(resp, &raw); err != nil {
		return content.Area{}, err
	}
	for _, f := range areaFields {
		v, ok := raw[f]
		if !ok || isEmptyJSON(v) {
			return content.Area{}, fmt.Errorf("%w: missing field %s", ErrValidation, f)
		}
	}

	var err error
	text := func(key string) string {
		if err != nil {
			return ""
		}
		var s string
		s, err = textValue(key, raw[key])
		return s
	}
	list := func(key string) []content.Entry {
		if err != nil {
			return nil
		}
		var e []content.Entry
		e, err = entryValues(key, raw[key])
		return e
	}

	area := content.Area{
		Name:               strings.TrimSpace(text("エリア名")),
		Geography:          text("地理的特徴"),
		History:            text("歴史や伝説"),
		Risks:              text("リスクや挑戦"),
		TreasureLocation:   text("財宝の隠し場所"),
		Items:              list("採取できるアイテム"),
		DangerousCreatures: list("生息する危険な生物"),
		HarmlessCreatures:  list("生息する無害な生物"),
		Waypoints:          list("経由地候補"),
		Cities:             list("近くの街"),
		Routes:             list("移動路"),
		RestPoints:         list("休憩ポイント"),
	}
	if treasure := list("財宝"); len(treasure) > 0 {
		area.Treasure = treasure[0]
	}
	if err != nil {
		return content.Area{}, err
	}
	return area, nil
}

func (g *AreaGenerator) validate(a content.Area, existing []content.Area) error {
	if a.Name == "" || a.Treasure.Name == "" {
		return fmt.Errorf("%w: area name and treasure are required", ErrValidation)
	}
	for key, value := range map[string]string{
		"エリア名": a.Name, "地理的特徴": a.Geography, "歴史や伝説": a.History,
		"リスクや挑戦": a.Risks, "財宝": a.Treasure.String(), "財宝の隠し場所": a.TreasureLocation,
	} {
		if err := g.checkNG(key, value); err != nil {
			return err
		}
	}
	for key, entries := range a.ListFields() {
		if err := g.checkNG(key, content.JoinEntries(entries)); err != nil {
			return err
		}
	}

	if c, found := textfilter.FindChar(a.Name, g.settings.BannedAreaChars); found {
		return fmt.Errorf("%w: area name %q contains banned character %q", ErrValidation, a.Name, c)
	}
	for _, e := range existing {
		if overlaps(a.Name, e.Name) {
			return fmt.Errorf("%w: area name %q overlaps existing area %q", ErrValidation, a.Name, e.Name)
		}
		if e.Treasure.Name != "" && overlaps(a.Treasure.Name, e.Treasure.Name) {
			return fmt.Errorf("%w: treasure %q overlaps existing treasure %q", ErrValidation, a.Treasure.Name, e.Treasure.Name)
		}
	}
	return nil
}

// overlaps reports whether either string contains the other.
func overlaps(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}

func isEmptyJSON(v json.RawMessage) bool {
	s := strings.TrimSpace(string(v))
	return s == "" || s == "null" || s == `""` || s == "[]" || s == "{}"
}

// textValue accepts a string, a list of strings (joined) or an entry object.
func textValue(key string, v json.RawMessage) (string, error) {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s, nil
	}
	var parts []string
	if json.Unmarshal(v, &parts) == nil {
		return strings.Join(parts, ""), nil
	}
	entries, err := entryValues(key, v)
	if err != nil {
		return "", err
	}
	return content.JoinEntries(entries), nil
}

// entryValues accepts a list of {名称, 特徴} objects, a single object,
// a list of "name: description" strings or one ";"-joined string.
func entryValues(key string, v json.RawMessage) ([]content.Entry, error) {
	var entries []content.Entry
	if json.Unmarshal(v, &entries) == nil && validEntries(entries) {
		return entries, nil
	}
	var one content.Entry
	if json.Unmarshal(v, &one) == nil && one.Name != "" {
		return []content.Entry{one}, nil
	}
	var generic map[string]string
	if json.Unmarshal(v, &generic) == nil && len(generic) == 1 {
		for name, desc := range generic {
			return []content.Entry{{Name: name, Description: desc}}, nil
		}
	}
	var strs []string
	if json.Unmarshal(v, &strs) == nil {
		out := make([]content.Entry, 0, len(strs))
		for _, s := range strs {
			out = append(out, content.ParseEntry(s))
		}
		return out, nil
	}
	var s string
	if json.Unmarshal(v, &s) == nil {
		return content.ParseEntries(s), nil
	}
	return nil, fmt.Errorf("%w: field %s must be a string, a list or {名称, 特徴} objects", ErrValidation, key)
}

func validEntries(entries []content.Entry) bool {
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e.Name == "" {
			return false
		}
	}
	return true
}
