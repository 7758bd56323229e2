// Package pipeline runs the generate, check and save loop for each kind of content.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jwebster45206/story-forge/internal/checker"
	"github.com/jwebster45206/story-forge/internal/generator"
	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/progress"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

// Command names accepted by Run.
const (
	CommandArea            = "area"
	CommandLockedArea      = "locked_area"
	CommandAdventure       = "adventure"
	CommandLockedAdventure = "locked_adventure"
	CommandLog             = "log"
	CommandLockedLog       = "locked_log"
	CommandLocation        = "location"
)

// Commands lists every command in the order they are usually run.
var Commands = []string{
	CommandArea, CommandLockedArea, CommandAdventure, CommandLockedAdventure,
	CommandLog, CommandLockedLog, CommandLocation,
}

// errDebugStop ends a command after its first saved unit in debug mode.
var errDebugStop = errors.New("debug stop")

// CommandContext carries the backends and run mode of one invocation.
type CommandContext struct {
	Client services.LLMService
	// CheckClient grades content. It defaults to Client.
	CheckClient services.LLMService
	ModelName   string
	DebugMode   bool
}

// GridEntry is one outcome of the adventure grid and how many adventures it gets.
type GridEntry struct {
	Outcome content.Outcome
	Count   int
}

// Grid is the set of adventures generated per area.
var Grid = []GridEntry{
	{Outcome: content.OutcomeFailure, Count: 10},
	{Outcome: content.OutcomeSuccess, Count: 9},
	{Outcome: content.OutcomeGreatSuccess, Count: 1},
}

// Handler executes generation commands.
type Handler struct {
	cc        CommandContext
	settings  *settings.Settings
	store     *storage.Store
	tracker   *progress.Tracker
	templates Templates
	policy    retry.Policy
	logger    *slog.Logger

	// Exit and Sleep are replaced in tests.
	Exit  func(code int)
	Sleep retry.Sleeper
}

func NewHandler(cc CommandContext, s *settings.Settings, store *storage.Store, templates Templates, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cc.CheckClient == nil {
		cc.CheckClient = cc.Client
	}
	h := &Handler{
		cc:        cc,
		settings:  s,
		store:     store,
		tracker:   progress.NewTracker(store, s),
		templates: templates,
		logger:    log,
		Exit:      logger.Exit,
		Sleep:     retry.Sleep,
	}
	h.policy = retry.NewPolicy(s.MaxRetries, s.WaitTime(), log,
		generator.ErrExtraction, generator.ErrValidation, checker.ErrCheckFailed)
	return h
}

// SetSleeper replaces the sleeper used for backoff and the rate-limit cooldown.
func (h *Handler) SetSleeper(sleep retry.Sleeper) {
	h.Sleep = sleep
	h.policy.Sleep = sleep
}

// Run dispatches a command. arg is the area count for "area" and the outcome
// filter for the adventure commands.
func (h *Handler) Run(ctx context.Context, command, arg string, checkOnly bool) error {
	var err error
	if checkOnly {
		err = h.runCheckOnly(ctx, command, arg)
	} else {
		err = h.runGenerate(ctx, command, arg)
	}
	if errors.Is(err, errDebugStop) {
		logger.Info(h.logger, "Debug mode: stopping after one unit")
		return nil
	}
	if errors.Is(err, retry.ErrRateLimitExceeded) {
		return h.rateLimited(ctx, err)
	}
	return err
}

func (h *Handler) runGenerate(ctx context.Context, command, arg string) error {
	switch command {
	case CommandArea:
		count := 1
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 1 {
				return fmt.Errorf("invalid area count %q", arg)
			}
			count = n
		}
		return h.Area(ctx, count)
	case CommandLockedArea:
		return h.LockedArea(ctx)
	case CommandAdventure, CommandLockedAdventure:
		outcome, err := parseOutcomeFilter(arg)
		if err != nil {
			return err
		}
		return h.Adventure(ctx, outcome, command == CommandLockedAdventure)
	case CommandLog:
		return h.Log(ctx, false)
	case CommandLockedLog:
		return h.Log(ctx, true)
	case CommandLocation:
		return h.Location(ctx)
	}
	return fmt.Errorf("unknown command %q", command)
}

func parseOutcomeFilter(arg string) (content.Outcome, error) {
	if arg == "" {
		return "", nil
	}
	return content.ParseOutcome(arg)
}

// rateLimited sleeps the cooldown and exits with status 1.
func (h *Handler) rateLimited(ctx context.Context, err error) error {
	logger.Warning(logger.WithError(h.logger, err), "API rate limit: waiting before exit",
		"model", h.cc.ModelName, "cooldown", retry.Cooldown)
	if serr := h.Sleep(ctx, retry.Cooldown); serr != nil {
		return serr
	}
	h.Exit(1)
	return err
}

// gaveUp reports whether a unit exhausted its retries. Those failures trigger
// a cascade delete and the command moves on to the next area.
func gaveUp(err error) bool {
	return errors.Is(err, retry.ErrRetryLimitExceeded)
}

// cascade deletes a failed unit and its dependents.
func (h *Handler) cascade(kind storage.Kind, area string, names ...string) {
	logger.Delete(h.logger, "Retry limit reached, deleting", "kind", kind, "area", area, "names", names)
	msgs, err := h.store.Delete(kind, area, names...)
	for _, m := range msgs {
		logger.Delete(h.logger, m)
	}
	if err != nil {
		logger.Error(logger.WithError(h.logger, err), "Cascade delete failed", "kind", kind, "area", area)
	}
}

// done returns errDebugStop in debug mode so the command ends after one unit.
func (h *Handler) done() error {
	if h.cc.DebugMode {
		return errDebugStop
	}
	return nil
}

func (h *Handler) checker(kind storage.CheckKind, locked bool) *checker.Checker {
	tmpl := map[storage.CheckKind]string{
		storage.CheckArea:      CheckAreaTemplate,
		storage.CheckAdventure: CheckAdventureTemplate,
		storage.CheckLog:       CheckLogTemplate,
		storage.CheckLocation:  CheckLocationTemplate,
	}[kind]
	return checker.New(h.cc.CheckClient, h.templates[tmpl], h.settings, kind,
		checker.Criteria(h.settings, kind, locked), h.store, h.logger)
}

// areas returns every area, filtered to locked or unlocked ones.
func (h *Handler) areas(locked bool) ([]content.Area, error) {
	all, err := h.store.LoadAreas()
	if err != nil {
		return nil, err
	}
	var out []content.Area
	for _, a := range all {
		if a.IsLocked() == locked {
			out = append(out, a)
		}
	}
	return out, nil
}
