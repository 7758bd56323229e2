package pipeline

import (
	"context"
	"fmt"

	"github.com/jwebster45206/story-forge/internal/checker"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

// runCheckOnly grades existing content of the command's kind that has no
// rubric row yet. Nothing is generated or deleted.
func (h *Handler) runCheckOnly(ctx context.Context, command, arg string) error {
	switch command {
	case CommandArea, CommandLockedArea:
		return h.checkAreas(ctx)
	case CommandAdventure, CommandLockedAdventure:
		outcome, err := parseOutcomeFilter(arg)
		if err != nil {
			return err
		}
		return h.checkAdventures(ctx, outcome, command == CommandLockedAdventure)
	case CommandLog:
		return h.checkLogs(ctx, false)
	case CommandLockedLog:
		return h.checkLogs(ctx, true)
	case CommandLocation:
		return h.checkLocations(ctx)
	}
	return fmt.Errorf("unknown command %q", command)
}

// checkOne runs one check with retries and saves the result. A unit that
// gives up is logged and skipped.
func (h *Handler) checkOne(ctx context.Context, chk *checker.Checker, area, subject string, vars map[string]string) error {
	result, err := retry.Do(ctx, h.policy, fmt.Sprintf("check %s %s", chk.Kind(), subject), func(ctx context.Context) (content.CheckResult, error) {
		return chk.Check(ctx, subject, vars)
	})
	if gaveUp(err) {
		logger.Error(logger.WithError(h.logger, err), "Check gave up", "kind", chk.Kind(), "subject", subject)
		return nil
	}
	if err != nil {
		return err
	}
	if err := chk.Save(area, result); err != nil {
		return fmt.Errorf("failed to save %s check %s: %w", chk.Kind(), subject, err)
	}
	logger.Success(h.logger, "Check saved", "kind", chk.Kind(), "subject", subject)
	return h.done()
}

func (h *Handler) checkAreas(ctx context.Context) error {
	areas, err := h.store.LoadAreas()
	if err != nil {
		return err
	}
	chk := h.checker(storage.CheckArea, false)
	for _, area := range areas {
		checked, err := h.store.HasCheck(storage.CheckArea, area.Name, area.Name)
		if err != nil {
			return err
		}
		if checked {
			continue
		}
		if err := h.checkOne(ctx, chk, area.Name, area.Name, checker.AreaInput(area, areas)); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) checkAdventures(ctx context.Context, outcome content.Outcome, locked bool) error {
	areas, err := h.areas(locked)
	if err != nil {
		return err
	}
	chk := h.checker(storage.CheckAdventure, locked)
	for _, area := range areas {
		adventures, err := h.store.LoadAdventures(area.Name)
		if err != nil {
			return err
		}
		var prev *content.Adventure
		if locked {
			if p, err := h.predecessor(area); err == nil {
				prev = &p
			}
		}
		for _, adv := range adventures {
			if outcome != "" && adv.Outcome != outcome {
				continue
			}
			checked, err := h.store.HasCheck(storage.CheckAdventure, area.Name, adv.Name)
			if err != nil {
				return err
			}
			if checked {
				continue
			}
			if err := h.checkOne(ctx, chk, area.Name, adv.Name, checker.AdventureInput(area, adv, prev, h.settings)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) checkLogs(ctx context.Context, locked bool) error {
	areas, err := h.areas(locked)
	if err != nil {
		return err
	}
	chk := h.checker(storage.CheckLog, locked)
	for _, area := range areas {
		adventures, err := h.store.LoadAdventures(area.Name)
		if err != nil {
			return err
		}
		for _, adv := range adventures {
			lines, err := storage.ReadLines(h.store.LogPath(area.Name, adv.Name))
			if err != nil {
				continue
			}
			checked, err := h.store.HasCheck(storage.CheckLog, area.Name, adv.Name)
			if err != nil {
				return err
			}
			if checked {
				continue
			}
			if err := h.checkOne(ctx, chk, area.Name, adv.Name, checker.LogInput(adv, lines)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) checkLocations(ctx context.Context) error {
	areas, err := h.store.LoadAreas()
	if err != nil {
		return err
	}
	chk := h.checker(storage.CheckLocation, false)
	for _, area := range areas {
		names, err := h.store.AdventureNames(area.Name)
		if err != nil {
			return err
		}
		for _, name := range names {
			log, err := storage.ReadLines(h.store.LogPath(area.Name, name))
			if err != nil {
				continue
			}
			locs, err := storage.ReadLines(h.store.LocationPath(area.Name, name))
			if err != nil {
				continue
			}
			checked, err := h.store.HasCheck(storage.CheckLocation, area.Name, name)
			if err != nil {
				return err
			}
			if checked {
				continue
			}
			vars, err := checker.LocationInput(area, name, log, locs)
			if err != nil {
				logger.Warning(logger.WithError(h.logger, err), "Skipping location check")
				continue
			}
			if err := h.checkOne(ctx, chk, area.Name, name, vars); err != nil {
				return err
			}
		}
	}
	return nil
}
