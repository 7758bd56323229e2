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

type checkedLocations struct {
	locations []string
	result    content.CheckResult
}

// Location annotates every log that has no location file yet.
func (h *Handler) Location(ctx context.Context) error {
	areas, err := h.store.LoadAreas()
	if err != nil {
		return err
	}
	gen := generator.NewLocationGenerator(h.cc.Client, h.templates[NewLocationTemplate], h.settings, h.logger)
	chk := h.checker(storage.CheckLocation, false)

	for _, area := range areas {
		err := h.locationsForArea(ctx, gen, chk, area)
		if gaveUp(err) {
			logger.Error(logger.WithError(h.logger, err), "Location generation gave up", "area", area.Name)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) locationsForArea(ctx context.Context, gen *generator.LocationGenerator, chk *checker.Checker, area content.Area) error {
	names, err := h.store.AdventureNames(area.Name)
	if err != nil {
		return err
	}
	for _, name := range names {
		logPath := h.store.LogPath(area.Name, name)
		if !storage.Exists(logPath) || storage.Exists(h.store.LocationPath(area.Name, name)) {
			continue
		}
		lines, err := storage.ReadLines(logPath)
		if err != nil {
			return err
		}
		if err := h.writeLocations(ctx, gen, chk, area, name, lines); err != nil {
			if gaveUp(err) {
				h.cascade(storage.KindLocation, area.Name, name)
			}
			return err
		}
		if err := h.done(); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) writeLocations(ctx context.Context, gen *generator.LocationGenerator, chk *checker.Checker, area content.Area, adventure string, log []string) error {
	res, err := retry.Do(ctx, h.policy, "location "+adventure, func(ctx context.Context) (checkedLocations, error) {
		locs, err := gen.Generate(ctx, generator.LocationRequest{Area: area, Adventure: adventure, Log: log})
		if err != nil {
			return checkedLocations{}, err
		}
		logger.Generate(h.logger, "Locations generated", "adventure", adventure)
		vars, err := checker.LocationInput(area, adventure, log, locs)
		if err != nil {
			return checkedLocations{}, err
		}
		result, err := chk.Check(ctx, adventure, vars)
		if err != nil {
			return checkedLocations{}, err
		}
		return checkedLocations{locations: locs, result: result}, nil
	})
	if err != nil {
		return err
	}

	if err := gen.Save(h.store.LocationPath(area.Name, adventure), res.locations); err != nil {
		return fmt.Errorf("failed to save locations %s: %w", adventure, err)
	}
	if err := chk.Save(area.Name, res.result); err != nil {
		return fmt.Errorf("failed to save location check %s: %w", adventure, err)
	}
	logger.Success(h.logger, "Locations saved", "adventure", adventure)
	return nil
}
