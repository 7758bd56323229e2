package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/jwebster45206/story-forge/internal/checker"
	"github.com/jwebster45206/story-forge/internal/generator"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

type checkedAdventure struct {
	adventure content.Adventure
	result    content.CheckResult
}

// Adventure fills the outcome grid of every unlocked area, or of every locked
// area when locked is set. outcome limits the grid to one outcome when non-empty.
func (h *Handler) Adventure(ctx context.Context, outcome content.Outcome, locked bool) error {
	areas, err := h.areas(locked)
	if err != nil {
		return err
	}
	gen := generator.NewAdventureGenerator(h.cc.Client, h.templates[NewAdventureTemplate], h.settings, h.store, h.logger)
	chk := h.checker(storage.CheckAdventure, locked)

	for _, area := range areas {
		var prev *content.Adventure
		if locked {
			p, err := h.predecessor(area)
			if err != nil {
				logger.Warning(logger.WithError(h.logger, err), "Predecessor adventure unavailable, skipping", "area", area.Name)
				continue
			}
			prev = &p
		}

		err := h.adventuresForArea(ctx, gen, chk, area, outcome, prev)
		if gaveUp(err) {
			logger.Error(logger.WithError(h.logger, err), "Adventure generation gave up", "area", area.Name)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// predecessor loads the great-success adventure of the area's previous area.
func (h *Handler) predecessor(area content.Area) (content.Adventure, error) {
	name := content.AdventureName(content.OutcomeGreatSuccess, 1, area.Previous)
	return h.store.LoadAdventure(area.Previous, name)
}

func (h *Handler) adventuresForArea(ctx context.Context, gen *generator.AdventureGenerator, chk *checker.Checker, area content.Area, outcome content.Outcome, prev *content.Adventure) error {
	existing, err := h.store.AdventureNames(area.Name)
	if err != nil {
		return err
	}

	for _, g := range Grid {
		if outcome != "" && g.Outcome != outcome {
			continue
		}
		for n := 1; n <= g.Count; n++ {
			name := content.AdventureName(g.Outcome, n, area.Name)
			if slices.Contains(existing, name) {
				continue
			}
			req := generator.AdventureRequest{Area: area, Name: name, Outcome: g.Outcome, Previous: prev}
			adv, err := h.generateAdventure(ctx, gen, chk, req)
			if err != nil {
				if gaveUp(err) {
					h.cascade(storage.KindAdventure, area.Name, name)
				}
				return err
			}
			if prev != nil && prev.Next == "" {
				if err := h.store.SetAdventureNext(area.Previous, prev.Name, adv.Name); err != nil {
					return fmt.Errorf("failed to link %s to %s: %w", prev.Name, adv.Name, err)
				}
				prev.Next = adv.Name
			}
			if err := h.done(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *Handler) generateAdventure(ctx context.Context, gen *generator.AdventureGenerator, chk *checker.Checker, req generator.AdventureRequest) (content.Adventure, error) {
	res, err := retry.Do(ctx, h.policy, "adventure "+req.Name, func(ctx context.Context) (checkedAdventure, error) {
		adv, err := gen.Generate(ctx, req)
		if err != nil {
			return checkedAdventure{}, err
		}
		logger.Generate(h.logger, "Adventure generated", "adventure", adv.Name)
		result, err := chk.Check(ctx, adv.Name, checker.AdventureInput(req.Area, adv, req.Previous, h.settings))
		if err != nil {
			return checkedAdventure{}, err
		}
		return checkedAdventure{adventure: adv, result: result}, nil
	})
	if err != nil {
		return content.Adventure{}, err
	}

	if err := gen.Save(res.adventure); err != nil {
		return content.Adventure{}, fmt.Errorf("failed to save adventure %s: %w", req.Name, err)
	}
	if err := chk.Save(req.Area.Name, res.result); err != nil {
		return content.Adventure{}, fmt.Errorf("failed to save adventure check %s: %w", req.Name, err)
	}
	logger.Success(h.logger, "Adventure saved", "adventure", req.Name, "item", res.adventure.Item)
	return res.adventure, nil
}
