package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

// LocationRequest asks for one location label per log line.
type LocationRequest struct {
	Area      content.Area
	Adventure string
	Log       []string
}

type LocationGenerator struct {
	base
}

func NewLocationGenerator(llm services.LLMService, tmpl *prompts.Template, s *settings.Settings, logger *slog.Logger) *LocationGenerator {
	return &LocationGenerator{base: newBase(llm, tmpl, s, logger)}
}

// Generate returns exactly one location per log line.
func (g *LocationGenerator) Generate(ctx context.Context, req LocationRequest) ([]string, error) {
	if len(req.Log) == 0 {
		return nil, fmt.Errorf("log for %s is empty", req.Adventure)
	}

	vars := prompts.New(g.tmpl).With("log", NumberedLog(req.Log))
	for k, v := range LocationCandidates(req.Area) {
		vars.With(k, v)
	}

	resp, err := g.complete(ctx, vars, services.DefaultCheckTemperature, services.FormatJSON)
	if err != nil {
		return nil, err
	}

	data, err := ExtractJSON(resp)
	if err != nil {
		return nil, err
	}
	values, err := orderedValues(data)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrExtraction, err)
	}
	for i, v := range values {
		values[i] = strings.TrimSpace(strings.ReplaceAll(v, "\n", " "))
		if values[i] == "" {
			return nil, fmt.Errorf("%w: location for line %d is empty", ErrValidation, i+1)
		}
	}

	if len(values) != len(req.Log) {
		return nil, fmt.Errorf("%w: %d locations for %d log lines", ErrValidation, len(values), len(req.Log))
	}
	if len(values) < g.settings.MinChapterLines {
		return nil, fmt.Errorf("%w: %d locations, need at least %d", ErrValidation, len(values), g.settings.MinChapterLines)
	}
	return values, nil
}

// Save writes one location per line to path.
func (g *LocationGenerator) Save(path string, locations []string) error {
	return storage.WriteText(path, strings.Join(locations, "\n"))
}

// NumberedLog renders "i: line" for each line, starting at 1.
func NumberedLog(lines []string) string {
	numbered := make([]string, len(lines))
	for i, l := range lines {
		numbered[i] = fmt.Sprintf("%d: %s", i+1, l)
	}
	return strings.Join(numbered, "\n")
}

// LocationCandidates builds the area, waypoint, city, route and restpoint bullet lists.
func LocationCandidates(a content.Area) map[string]string {
	bullets := func(entries []content.Entry) string {
		lines := make([]string, len(entries))
		for i, e := range entries {
			lines[i] = "  - " + e.String()
		}
		return strings.Join(lines, "\n")
	}
	return map[string]string{
		"area":      fmt.Sprintf("  - %s:%s", a.Name, a.Geography),
		"waypoint":  bullets(a.Waypoints),
		"city":      bullets(a.Cities),
		"route":     bullets(a.Routes),
		"restpoint": bullets(a.RestPoints),
	}
}
