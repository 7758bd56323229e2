package generator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

// Placeholders a log line may keep for playback.
const (
	NamePlaceholder      = "name"
	PrecursorPlaceholder = "precursor"
)

var numberedLine = regexp.MustCompile(`^\d+\.\s(.*)`)

// LogRequest asks for the log of one chapter.
type LogRequest struct {
	Area      content.Area
	Adventure content.Adventure
	// Chapter is zero-based.
	Chapter int
	// PreLog is the log of the previous chapter, empty for the first.
	PreLog string
	// PrecursorLog is the tail of the predecessor adventure's log for locked areas.
	PrecursorLog string
}

type LogGenerator struct {
	base
}

func NewLogGenerator(llm services.LLMService, tmpl *prompts.Template, s *settings.Settings, logger *slog.Logger) *LogGenerator {
	return &LogGenerator{base: newBase(llm, tmpl, s, logger)}
}

// GenerateChapter returns the validated lines of one chapter joined by "\n" with a trailing newline.
func (g *LogGenerator) GenerateChapter(ctx context.Context, req LogRequest) (string, error) {
	chapters := req.Adventure.Chapters
	if req.Chapter < 0 || req.Chapter >= len(chapters) {
		return "", fmt.Errorf("chapter %d out of range for %s", req.Chapter+1, req.Adventure.Name)
	}

	vars := prompts.New(g.tmpl)
	for k, v := range g.ChapterVars(req) {
		vars.With(k, v)
	}

	resp, err := g.complete(ctx, vars, services.DefaultGenerateTemperature, services.FormatText)
	if err != nil {
		return "", err
	}

	allowed := []string{NamePlaceholder}
	if req.Adventure.Previous != "" {
		allowed = append(allowed, PrecursorPlaceholder)
	}
	lines, err := g.extract(resp, allowed)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n") + "\n", nil
}

// Save appends a chapter's lines to the log file at path.
func (g *LogGenerator) Save(path, chapterLog string) error {
	return storage.AppendText(path, chapterLog)
}

// ChapterVars assembles the prompt variables for one chapter.
func (g *LogGenerator) ChapterVars(req LogRequest) map[string]string {
	chapters := req.Adventure.Chapters
	var setting settings.ChapterSetting
	if schema := g.settings.Chapters(req.Adventure.Outcome); req.Chapter < len(schema) {
		setting = schema[req.Chapter]
	}

	chapter := chapters[req.Chapter].String()
	next := g.settings.EndingLine
	if req.Chapter+1 < len(chapters) {
		next = chapters[req.Chapter+1].String()
	}

	beforeLog := g.settings.BeforeLogTemplate.Default
	if req.Chapter > 0 && strings.TrimSpace(req.PreLog) != "" {
		beforeLog = prompts.Render(g.settings.BeforeLogTemplate.WithPreLog, map[string]string{"pre_log": req.PreLog})
	}

	return map[string]string{
		"before_chapter": setting.BeforeChapter,
		"chapter":        chapter,
		"after_chapter":  setting.AfterChapter,
		"next_chapter":   next,
		"before_log":     beforeLog,
		"area_info":      g.AreaInfo(req.Area, chapter),
		"precursor_log":  req.PrecursorLog,
	}
}

// AreaInfo lists the area entries whose names appear in the chapter text,
// prefixed by AREA_INFO_TEXT. It is empty when nothing matches.
func (g *LogGenerator) AreaInfo(a content.Area, chapter string) string {
	fields := a.ListFields()
	fields["財宝"] = []content.Entry{a.Treasure}

	keys := g.settings.AreaInfoKeysForPrompt
	if len(keys) == 0 {
		keys = []string{"財宝", "採取できるアイテム", "生息する危険な生物", "生息する無害な生物", "経由地候補", "近くの街", "移動路", "休憩ポイント"}
	}

	lower := strings.ToLower(chapter)
	var lines []string
	for _, key := range keys {
		for _, e := range fields[key] {
			if e.Name == "" || !strings.Contains(lower, strings.ToLower(e.Name)) {
				continue
			}
			lines = append(lines, fmt.Sprintf("  - %s: %s", e.Name, e.Description))
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(g.settings.AreaInfoText + "\n" + strings.Join(lines, "\n"))
}

func (g *LogGenerator) extract(resp string, allowed []string) ([]string, error) {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(resp), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "##") {
			continue
		}
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		text := strings.TrimSpace(m[1])
		if err := g.checkNG("log", text); err != nil {
			return nil, err
		}
		if err := prompts.ValidatePlaceholders(text, allowed...); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		lines = append(lines, text)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: no numbered lines in response", ErrExtraction)
	}
	if len(lines) < g.settings.MinChapterLines {
		return nil, fmt.Errorf("%w: %d lines, need at least %d", ErrValidation, len(lines), g.settings.MinChapterLines)
	}
	return lines, nil
}
