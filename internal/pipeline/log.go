package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/jwebster45206/story-forge/internal/checker"
	"github.com/jwebster45206/story-forge/internal/generator"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

// Log writes the log of every adventure that has none yet. Locked areas also
// receive the tail of the predecessor adventure's log.
func (h *Handler) Log(ctx context.Context, locked bool) error {
	areas, err := h.areas(locked)
	if err != nil {
		return err
	}
	gen := generator.NewLogGenerator(h.cc.Client, h.templates[NewLogTemplate], h.settings, h.logger)
	chk := h.checker(storage.CheckLog, locked)

	for _, area := range areas {
		err := h.logsForArea(ctx, gen, chk, area)
		if gaveUp(err) {
			logger.Error(logger.WithError(h.logger, err), "Log generation gave up", "area", area.Name)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) logsForArea(ctx context.Context, gen *generator.LogGenerator, chk *checker.Checker, area content.Area) error {
	adventures, err := h.store.LoadAdventures(area.Name)
	if err != nil {
		return err
	}
	for _, adv := range adventures {
		if storage.Exists(h.store.LogPath(area.Name, adv.Name)) {
			continue
		}
		precursor := ""
		if area.IsLocked() && adv.Previous != "" {
			precursor = h.precursorLog(area.Previous, adv.Previous)
		}
		if err := h.writeLog(ctx, gen, chk, area, adv, precursor); err != nil {
			if gaveUp(err) {
				h.cascade(storage.KindLog, area.Name, adv.Name)
			}
			return err
		}
		if err := h.done(); err != nil {
			return err
		}
	}
	return nil
}

// precursorLog returns the last MIN_CHAPTER_LINES lines of the predecessor's log.
func (h *Handler) precursorLog(area, adventure string) string {
	lines, err := storage.ReadLines(h.store.LogPath(area, adventure))
	if err != nil {
		logger.Warning(logger.WithError(h.logger, err), "Predecessor log unavailable", "adventure", adventure)
		return ""
	}
	if n := h.settings.MinChapterLines; len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// writeLog generates every chapter into a temp file, checks the whole log and
// renames the temp file into place only when the check passes.
func (h *Handler) writeLog(ctx context.Context, gen *generator.LogGenerator, chk *checker.Checker, area content.Area, adv content.Adventure, precursor string) error {
	final := h.store.LogPath(area.Name, adv.Name)
	temp := h.store.LogTempPath(area.Name, adv.Name)
	defer h.removeTemp(temp)

	result, err := retry.Do(ctx, h.policy, "log "+adv.Name, func(ctx context.Context) (content.CheckResult, error) {
		h.removeTemp(temp)
		preLog := ""
		for i := range adv.Chapters {
			req := generator.LogRequest{Area: area, Adventure: adv, Chapter: i, PreLog: preLog, PrecursorLog: precursor}
			unit := fmt.Sprintf("log %d/%d %s", i+1, len(adv.Chapters), adv.Name)
			chapterLog, err := retry.Do(ctx, h.policy, unit, func(ctx context.Context) (string, error) {
				return gen.GenerateChapter(ctx, req)
			})
			if err != nil {
				return content.CheckResult{}, err
			}
			logger.Generate(h.logger, "Chapter log generated", "adventure", adv.Name, "chapter", i+1, "chapters", len(adv.Chapters))
			if err := gen.Save(temp, chapterLog); err != nil {
				return content.CheckResult{}, err
			}
			preLog = chapterLog
		}

		lines, err := storage.ReadLines(temp)
		if err != nil {
			return content.CheckResult{}, err
		}
		return chk.Check(ctx, adv.Name, checker.LogInput(adv, lines))
	})
	if err != nil {
		return err
	}

	if err := os.Rename(temp, final); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", temp, err)
	}
	if err := chk.Save(area.Name, result); err != nil {
		return fmt.Errorf("failed to save log check %s: %w", adv.Name, err)
	}
	logger.Success(h.logger, "Log saved", "adventure", adv.Name, "lines", storage.LineCount(final))
	return nil
}

func (h *Handler) removeTemp(path string) {
	err := os.Remove(path)
	if err == nil {
		logger.Delete(h.logger, "Removed temp log", "path", path)
		return
	}
	if !errors.Is(err, fs.ErrNotExist) {
		logger.Warning(logger.WithError(h.logger, err), "Failed to remove temp log", "path", path)
	}
}
