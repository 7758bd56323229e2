package pipeline

import (
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

// Template file names inside PROMPT_DIR.
const (
	NewAreaTemplate        = "new_area.txt"
	NewAdventureTemplate   = "new_adventure.txt"
	NewLogTemplate         = "new_log.txt"
	NewLocationTemplate    = "new_location.txt"
	CheckAreaTemplate      = "check_area.txt"
	CheckAdventureTemplate = "check_adventure.txt"
	CheckLogTemplate       = "check_log.txt"
	CheckLocationTemplate  = "check_location.txt"
)

// TemplateNames lists every template the pipeline loads.
var TemplateNames = []string{
	NewAreaTemplate, NewAdventureTemplate, NewLogTemplate, NewLocationTemplate,
	CheckAreaTemplate, CheckAdventureTemplate, CheckLogTemplate, CheckLocationTemplate,
}

var areaVars = []string{
	"area_name", "difficulty", "geography", "history", "risk", "treasure", "treasure_location",
	"collectibles", "dangerous_creatures", "harmless_creatures", "waypoint", "city", "route", "restpoint",
}

var locationVars = []string{"log", "area", "waypoint", "city", "route", "restpoint"}

// TemplateVars lists the placeholders each template may reference.
var TemplateVars = map[string][]string{
	NewAreaTemplate:      {"existing_areas", "area_name", "difficulty", "previous_area"},
	NewAdventureTemplate: with(areaVars, "adventure_name", "result", "chapter_count", "previous_adventure"),
	NewLogTemplate: {
		"before_chapter", "chapter", "after_chapter", "next_chapter", "before_log", "area_info", "precursor_log",
	},
	NewLocationTemplate: locationVars,
	CheckAreaTemplate: with(areaVars, "criteria", "existing_areas", "existing_treasures", "existing_collectibles",
		"existing_harmless_creatures", "existing_dangerous_creatures"),
	CheckAdventureTemplate: with(areaVars, "criteria", "adventure_name", "result", "result_desc", "summary", "item", "previous_adventure"),
	CheckLogTemplate:       {"criteria", "adventure_name", "summary", "log"},
	CheckLocationTemplate:  with(locationVars, "criteria", "adventure_name"),
}

func with(base []string, extra ...string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

// Templates holds the loaded prompt templates keyed by file name.
type Templates map[string]*prompts.Template

// LoadTemplates reads every template from the settings' prompt directory.
func LoadTemplates(s *settings.Settings) (Templates, error) {
	t := make(Templates, len(TemplateNames))
	for _, name := range TemplateNames {
		tmpl, err := prompts.Load(s.PromptPath(name))
		if err != nil {
			return nil, err
		}
		t[name] = tmpl
	}
	return t, nil
}
