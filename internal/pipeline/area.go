package pipeline

import (
	"context"
	"fmt"

	"github.com/jwebster45206/story-forge/internal/checker"
	"github.com/jwebster45206/story-forge/internal/generator"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

type checkedArea struct {
	area   content.Area
	result content.CheckResult
}

// Area generates count new tier-1 areas. It refuses to run while an existing
// area is incomplete or not fully checked, except in debug mode.
func (h *Handler) Area(ctx context.Context, count int) error {
	existing, err := h.store.LoadAreas()
	if err != nil {
		return err
	}
	for _, a := range existing {
		ok, err := h.tracker.IsAreaAllChecked(a.Name)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		logger.Warning(h.logger, "Area is not finished", "area", a.Name)
		if !h.cc.DebugMode {
			logger.Warning(h.logger, "Unfinished areas remain, not generating new ones")
			return nil
		}
	}

	if h.cc.DebugMode {
		count = 1
	}
	for i := 0; i < count; i++ {
		if _, err := h.generateArea(ctx, generator.AreaRequest{Difficulty: 1}); err != nil {
			if gaveUp(err) {
				logger.Error(logger.WithError(h.logger, err), "Area generation gave up")
				continue
			}
			return err
		}
		if err := h.done(); err != nil {
			return err
		}
	}
	return nil
}

// LockedArea generates the follow-up area of every area whose great-success
// log is complete and that has no next area yet.
func (h *Handler) LockedArea(ctx context.Context) error {
	areas, err := h.store.LoadAreas()
	if err != nil {
		return err
	}
	for _, prev := range areas {
		if prev.Next != "" {
			continue
		}
		great := content.AdventureName(content.OutcomeGreatSuccess, 1, prev.Name)
		if !h.tracker.IsLogComplete(prev.Name, great) {
			continue
		}

		area, err := h.generateArea(ctx, generator.AreaRequest{Difficulty: prev.Difficulty + 1, Previous: &prev})
		if err != nil {
			if gaveUp(err) {
				logger.Error(logger.WithError(h.logger, err), "Locked area generation gave up", "previous", prev.Name)
				continue
			}
			return err
		}
		if err := h.store.SetAreaNext(prev.Name, area.Name); err != nil {
			return fmt.Errorf("failed to link %s to %s: %w", prev.Name, area.Name, err)
		}
		logger.Info(h.logger, "Area linked", "previous", prev.Name, "next", area.Name)
		if err := h.done(); err != nil {
			return err
		}
	}
	return nil
}

// generateArea runs the generate and check loop for one area, then saves both.
func (h *Handler) generateArea(ctx context.Context, req generator.AreaRequest) (content.Area, error) {
	existing, err := h.store.LoadAreas()
	if err != nil {
		return content.Area{}, err
	}
	req.Existing = existing

	gen := generator.NewAreaGenerator(h.cc.Client, h.templates[NewAreaTemplate], h.settings, h.store, h.logger)
	chk := h.checker(storage.CheckArea, false)

	res, err := retry.Do(ctx, h.policy, "area", func(ctx context.Context) (checkedArea, error) {
		area, err := gen.Generate(ctx, req)
		if err != nil {
			return checkedArea{}, err
		}
		logger.Generate(h.logger, "Area generated", "area", area.Name)
		result, err := chk.Check(ctx, area.Name, checker.AreaInput(area, existing))
		if err != nil {
			return checkedArea{}, err
		}
		return checkedArea{area: area, result: result}, nil
	})
	if err != nil {
		return content.Area{}, err
	}

	if err := gen.Save(res.area); err != nil {
		return content.Area{}, fmt.Errorf("failed to save area %s: %w", res.area.Name, err)
	}
	if err := chk.Save(res.area.Name, res.result); err != nil {
		return content.Area{}, fmt.Errorf("failed to save area check %s: %w", res.area.Name, err)
	}
	logger.Success(h.logger, "Area saved", "area", res.area.Name, "difficulty", res.area.Difficulty)
	return res.area, nil
}
