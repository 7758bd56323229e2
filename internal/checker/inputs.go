package checker

import (
	"fmt"
	"strings"

	"github.com/jwebster45206/story-forge/internal/generator"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

const noExistingData = "既存のデータは未だありません"

// AreaInput builds the check_area variables. The existing_* lists let the
// rubric judge novelty against areas already stored.
func AreaInput(a content.Area, existing []content.Area) map[string]string {
	var names, treasures, collectibles, harmless, dangerous []string
	for _, e := range existing {
		if e.Name == a.Name {
			continue
		}
		names = append(names, e.Name)
		treasures = append(treasures, e.Treasure.Name)
		collectibles = append(collectibles, content.EntryNames(e.Items)...)
		harmless = append(harmless, content.EntryNames(e.HarmlessCreatures)...)
		dangerous = append(dangerous, content.EntryNames(e.DangerousCreatures)...)
	}
	return prompts.New(nil).
		WithArea(a).
		WithBullets("existing_areas", names, noExistingData).
		WithBullets("existing_treasures", treasures, noExistingData).
		WithBullets("existing_collectibles", collectibles, noExistingData).
		WithBullets("existing_harmless_creatures", harmless, noExistingData).
		WithBullets("existing_dangerous_creatures", dangerous, noExistingData).
		Vars()
}

// AdventureInput builds the check_adventure variables.
func AdventureInput(area content.Area, adv content.Adventure, previous *content.Adventure, s *settings.Settings) map[string]string {
	desc := s.ResultDescriptions[adv.Outcome]
	if desc == "" {
		desc = string(adv.Outcome)
	}
	item := adv.Item
	if item == "" {
		item = "なし"
	}
	return prompts.New(nil).
		WithArea(area).
		With("adventure_name", adv.Name).
		With("result", string(adv.Outcome)).
		With("result_desc", desc).
		With("summary", generator.ChapterList(adv.Chapters)).
		With("item", item).
		With("previous_adventure", generator.PreviousSummary(previous)).
		Vars()
}

// LogInput builds the check_log variables.
func LogInput(adv content.Adventure, log []string) map[string]string {
	return map[string]string{
		"adventure_name": adv.Name,
		"summary":        generator.ChapterList(adv.Chapters),
		"log":            strings.Join(log, "\n"),
	}
}

// LocationInput pairs each log line with its location as "[loc]: text".
func LocationInput(area content.Area, adventure string, log, locations []string) (map[string]string, error) {
	if len(log) != len(locations) {
		return nil, fmt.Errorf("%s has %d log lines and %d locations", adventure, len(log), len(locations))
	}
	lines := make([]string, len(log))
	for i := range log {
		lines[i] = fmt.Sprintf("[%s]: %s", locations[i], log[i])
	}
	vars := generator.LocationCandidates(area)
	vars["adventure_name"] = adventure
	vars["log"] = strings.Join(lines, "\n")
	return vars, nil
}
