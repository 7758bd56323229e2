package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

// AdventureRequest describes one adventure summary to generate.
type AdventureRequest struct {
	Area    content.Area
	Name    string
	Outcome content.Outcome
	// Previous is the predecessor adventure of a locked area.
	Previous *content.Adventure
}

// AdventureSaver persists generated adventures.
type AdventureSaver interface {
	AppendAdventure(a content.Adventure) error
}

type AdventureGenerator struct {
	base
	store AdventureSaver
}

func NewAdventureGenerator(llm services.LLMService, tmpl *prompts.Template, s *settings.Settings, store AdventureSaver, logger *slog.Logger) *AdventureGenerator {
	return &AdventureGenerator{base: newBase(llm, tmpl, s, logger), store: store}
}

type adventurePayload struct {
	Result   *string          `json:"result"`
	Item     string           `json:"item"`
	Chapters *[]chapterRecord `json:"chapters"`
}

type chapterRecord struct {
	Number  *string `json:"number"`
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (g *AdventureGenerator) Generate(ctx context.Context, req AdventureRequest) (content.Adventure, error) {
	chapters := g.settings.Chapters(req.Outcome)
	if len(chapters) == 0 {
		return content.Adventure{}, fmt.Errorf("no chapter settings for outcome %s", req.Outcome)
	}

	vars := prompts.New(g.tmpl).
		WithArea(req.Area).
		With("adventure_name", req.Name).
		With("result", g.resultDescription(req.Outcome)).
		WithInt("chapter_count", len(chapters)).
		With("previous_adventure", PreviousSummary(req.Previous))

	resp, err := g.complete(ctx, vars, services.DefaultGenerateTemperature, services.FormatJSON)
	if err != nil {
		return content.Adventure{}, err
	}

	var payload adventurePayload
	if err := DecodeJSON(resp, &payload); err != nil {
		return content.Adventure{}, err
	}
	parsed, err := g.validate(payload, len(chapters))
	if err != nil {
		return content.Adventure{}, err
	}

	adv := content.Adventure{
		Name:     req.Name,
		Area:     req.Area.Name,
		Outcome:  req.Outcome,
		Chapters: parsed,
	}
	if req.Previous != nil {
		adv.Previous = req.Previous.Name
	}

	switch req.Outcome {
	case content.OutcomeGreatSuccess:
		adv.Item = req.Area.Treasure.Name
	case content.OutcomeSuccess:
		item := strings.TrimSpace(payload.Item)
		if item != "" && !req.Area.HasItem(item) {
			return content.Adventure{}, fmt.Errorf("%w: item %q is not a collectible of %s", ErrValidation, item, req.Area.Name)
		}
		adv.Item = item
	}
	return adv, nil
}

// Save appends the adventure to its area table.
func (g *AdventureGenerator) Save(a content.Adventure) error {
	return g.store.AppendAdventure(a)
}

func (g *AdventureGenerator) resultDescription(o content.Outcome) string {
	if d, ok := g.settings.ResultDescriptions[o]; ok && d != "" {
		return d
	}
	return string(o)
}

func (g *AdventureGenerator) validate(p adventurePayload, want int) ([]content.Chapter, error) {
	if p.Result == nil || p.Chapters == nil {
		return nil, fmt.Errorf("%w: root keys result and chapters are required", ErrValidation)
	}
	records := *p.Chapters
	if len(records) != want {
		return nil, fmt.Errorf("%w: chapter count %d/%d", ErrValidation, len(records), want)
	}
	chapters := make([]content.Chapter, 0, len(records))
	for i, c := range records {
		n := i + 1
		if c.Number == nil || c.Title == nil || c.Content == nil {
			return nil, fmt.Errorf("%w: chapter %d needs number, title and content", ErrValidation, n)
		}
		if *c.Number != fmt.Sprintf("%d章", n) {
			return nil, fmt.Errorf("%w: chapter %d has number %q", ErrValidation, n, *c.Number)
		}
		if err := g.checkNG(fmt.Sprintf("%d章", n), *c.Title+*c.Content); err != nil {
			return nil, err
		}
		chapters = append(chapters, content.Chapter{Title: *c.Title, Content: *c.Content})
	}
	if err := g.checkNG("item", p.Item); err != nil {
		return nil, err
	}
	return chapters, nil
}

// PreviousSummary renders a predecessor adventure's chapters for locked prompts.
func PreviousSummary(prev *content.Adventure) string {
	if prev == nil {
		return ""
	}
	return prev.Name + "\n" + ChapterList(prev.Chapters)
}

// ChapterList renders chapters as "N章 title: content" lines.
func ChapterList(chapters []content.Chapter) string {
	lines := make([]string, len(chapters))
	for i, c := range chapters {
		lines[i] = fmt.Sprintf("%d章 %s: %s", i+1, c.Title, c.Content)
	}
	return strings.Join(lines, "\n")
}
