// Package playback replays a stored adventure as a stream of timed events.
package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/progress"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

type EventType string

const (
	EventHiring  EventType = "hiring"
	EventMessage EventType = "message"
	EventSummary EventType = "summary"
	EventError   EventType = "error"
)

// Event is one step of a playback.
type Event struct {
	Type       EventType
	Adventurer string
	Area       string
	Adventure  string
	Precursor  string
	// Time is the simulated clock for message events.
	Time     time.Time
	Text     string
	Location string
	Summary  *Summary
	Err      error
}

// Summary closes a playback.
type Summary struct {
	HistoryID  string
	Outcome    content.Outcome
	Prize      int
	Area       string
	Adventure  string
	Adventurer string
	Precursor  string
	Items      []string
	Elapsed    time.Duration
}

func (s Summary) String() string {
	hours := int(s.Elapsed.Hours())
	minutes := int(s.Elapsed.Minutes()) % 60
	text := fmt.Sprintf("- 結果: `%s`\n- 獲得金額: `%d円`\n- エリア: `%s`\n- 冒険者: `%s`\n- 経過時間: `%d時間%d分`",
		s.Outcome, s.Prize, s.Area, s.Adventurer, hours, minutes)
	if s.Precursor != "" {
		text += fmt.Sprintf("\n- 先人: `%s`", s.Precursor)
	}
	return text
}

// Player picks an adventure and streams it.
type Player struct {
	store    *storage.Store
	tracker  *progress.Tracker
	settings *settings.Settings
	rng      *rand.Rand
	// pace scales simulated time to real sleep. Zero disables sleeping.
	pace   float64
	sleep  retry.Sleeper
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Player)

// WithRand fixes the random source.
func WithRand(r *rand.Rand) Option {
	return func(p *Player) { p.rng = r }
}

// WithPace sets real seconds slept per simulated second.
func WithPace(pace float64) Option {
	return func(p *Player) { p.pace = pace }
}

func WithSleeper(s retry.Sleeper) Option {
	return func(p *Player) { p.sleep = s }
}

func WithClock(now func() time.Time) Option {
	return func(p *Player) { p.now = now }
}

func NewPlayer(store *storage.Store, s *settings.Settings, log *slog.Logger, opts ...Option) *Player {
	if log == nil {
		log = slog.Default()
	}
	p := &Player{
		store:    store,
		tracker:  progress.NewTracker(store, s),
		settings: s,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0)),
		pace:     1,
		sleep:    retry.Sleep,
		now:      time.Now,
		logger:   log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// selection is the adventure chosen for one run.
type selection struct {
	area      content.Area
	adventure content.Adventure
	outcome   content.Outcome
	precursor string
}

// Run starts a playback. The channel is unbuffered and closed when the run
// ends. Cancelling ctx stops the stream without recording history.
func (p *Player) Run(ctx context.Context) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)
		if err := p.run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(logger.WithError(p.logger, err), "Playback failed")
			p.send(ctx, events, Event{Type: EventError, Err: err})
		}
	}()
	return events
}

func (p *Player) send(ctx context.Context, events chan<- Event, e Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case events <- e:
		return nil
	}
}

func (p *Player) run(ctx context.Context, events chan<- Event) error {
	history, err := p.store.LoadHistory()
	if err != nil {
		return err
	}
	valid, err := p.validAreas()
	if err != nil {
		return err
	}
	if len(valid) == 0 {
		return errors.New("有効なエリアがありません")
	}

	outcome := p.rollOutcome()
	sel, ok, err := p.continuation(history, valid, outcome)
	if err != nil {
		return err
	}
	if !ok {
		sel, err = p.pick(history, valid, outcome)
		if err != nil {
			return err
		}
	}

	log, locations, err := p.readAdventure(sel)
	if err != nil {
		return err
	}

	adventurer := p.adventurer()
	if err := p.send(ctx, events, Event{
		Type:       EventHiring,
		Adventurer: adventurer,
		Area:       sel.area.Name,
		Adventure:  sel.adventure.Name,
		Precursor:  sel.precursor,
	}); err != nil {
		return err
	}

	vars := map[string]string{"name": adventurer, "precursor": sel.precursor}
	start := p.now()
	clock := start
	var elapsed time.Duration
	lineStep := minutes(p.settings.Playback.LineMinutes)
	changeStep := minutes(p.settings.Playback.LocationChangeMinutes)

	for i, line := range log {
		step := lineStep
		if i > 0 && locations[i] != locations[i-1] {
			step = changeStep
		}
		clock = clock.Add(step)
		elapsed += step

		if err := p.send(ctx, events, Event{
			Type:      EventMessage,
			Area:      sel.area.Name,
			Adventure: sel.adventure.Name,
			Time:      clock,
			Text:      prompts.Render(line, vars),
			Location:  prompts.Render(locations[i], vars),
		}); err != nil {
			return err
		}
		if p.pace > 0 {
			if err := p.sleep(ctx, time.Duration(float64(step)*p.pace)); err != nil {
				return err
			}
		}
	}

	summary := Summary{
		Outcome:    sel.outcome,
		Prize:      p.settings.Outcomes[sel.outcome].Prize,
		Area:       sel.area.Name,
		Adventure:  sel.adventure.Name,
		Adventurer: adventurer,
		Precursor:  sel.precursor,
		Elapsed:    elapsed,
	}
	if sel.adventure.Item != "" {
		summary.Items = []string{sel.adventure.Item}
		summary.Prize += p.settings.ItemValue(sel.adventure.Item)
	}

	entry, err := p.store.AppendHistory(content.HistoryEntry{
		Timestamp:         start,
		Area:              summary.Area,
		Adventure:         summary.Adventure,
		Outcome:           summary.Outcome,
		Prize:             summary.Prize,
		Items:             summary.Items,
		Adventurer:        adventurer,
		Precursor:         sel.precursor,
		PreviousAdventure: sel.adventure.Previous,
		ElapsedMinutes:    elapsed.Minutes(),
	})
	if err != nil {
		return err
	}
	summary.HistoryID = entry.ID
	logger.Success(p.logger, "Playback finished", "adventure", summary.Adventure, "outcome", summary.Outcome)
	return p.send(ctx, events, Event{Type: EventSummary, Summary: &summary})
}

func minutes(m float64) time.Duration {
	return time.Duration(m * float64(time.Minute))
}

// validAreas returns every area whose logs are complete.
func (p *Player) validAreas() ([]content.Area, error) {
	areas, err := p.store.LoadAreas()
	if err != nil {
		return nil, err
	}
	var valid []content.Area
	for _, a := range areas {
		ok, err := p.tracker.IsAreaComplete(a.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			valid = append(valid, a)
		}
	}
	return valid, nil
}

// rollOutcome draws an outcome weighted by the configured chances.
func (p *Player) rollOutcome() content.Outcome {
	total := 0
	for _, o := range content.Outcomes {
		total += p.settings.Outcomes[o].Chance
	}
	if total <= 0 {
		return content.OutcomeFailure
	}
	n := p.rng.IntN(total)
	for _, o := range content.Outcomes {
		n -= p.settings.Outcomes[o].Chance
		if n < 0 {
			return o
		}
	}
	return content.OutcomeFailure
}

// continuation looks for a great-success run whose storyline continues in a
// valid next area and that this adventurer has not continued yet.
func (p *Player) continuation(history []content.HistoryEntry, valid []content.Area, outcome content.Outcome) (selection, bool, error) {
	byName := make(map[string]content.Area, len(valid))
	for _, a := range valid {
		byName[a.Name] = a
	}

	for i := len(history) - 1; i >= 0; i-- {
		run := history[i]
		if run.Outcome != content.OutcomeGreatSuccess || continued(history, run) {
			continue
		}
		prev, ok := byName[run.Area]
		if !ok || prev.Next == "" {
			continue
		}
		next, ok := byName[prev.Next]
		if !ok {
			continue
		}
		adventures, err := p.store.LoadAdventures(next.Name)
		if err != nil {
			return selection{}, false, err
		}
		var candidates []content.Adventure
		for _, a := range adventures {
			if a.Previous == run.Adventure && a.Outcome == outcome {
				candidates = append(candidates, a)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		adv := p.leastUsed(candidates, history)
		return selection{area: next, adventure: adv, outcome: outcome, precursor: run.Adventurer}, true, nil
	}
	return selection{}, false, nil
}

// continued reports whether run's storyline has already been played onward.
func continued(history []content.HistoryEntry, run content.HistoryEntry) bool {
	for _, h := range history {
		if h.PreviousAdventure == run.Adventure && h.Precursor == run.Adventurer {
			return true
		}
	}
	return false
}

// pick chooses a random unlocked valid area and its least-used adventure for outcome.
func (p *Player) pick(history []content.HistoryEntry, valid []content.Area, outcome content.Outcome) (selection, error) {
	var open []content.Area
	for _, a := range valid {
		if !a.IsLocked() {
			open = append(open, a)
		}
	}
	if len(open) == 0 {
		open = valid
	}
	area := open[p.rng.IntN(len(open))]

	adventures, err := p.store.LoadAdventures(area.Name)
	if err != nil {
		return selection{}, err
	}
	var candidates []content.Adventure
	for _, a := range adventures {
		if a.Outcome == outcome {
			candidates = append(candidates, a)
		}
	}
	if len(candidates) == 0 {
		return selection{}, fmt.Errorf("%sに%s用のシナリオがありません", area.Name, outcome)
	}
	return selection{area: area, adventure: p.leastUsed(candidates, history), outcome: outcome}, nil
}

// leastUsed returns a random adventure among those played the fewest times.
func (p *Player) leastUsed(candidates []content.Adventure, history []content.HistoryEntry) content.Adventure {
	counts := make(map[string]int)
	for _, h := range history {
		counts[h.Adventure]++
	}
	lowest := -1
	var best []content.Adventure
	for _, a := range candidates {
		c := counts[a.Name]
		switch {
		case lowest < 0 || c < lowest:
			lowest = c
			best = []content.Adventure{a}
		case c == lowest:
			best = append(best, a)
		}
	}
	return best[p.rng.IntN(len(best))]
}

func (p *Player) readAdventure(sel selection) ([]string, []string, error) {
	log, err := storage.ReadLines(p.store.LogPath(sel.area.Name, sel.adventure.Name))
	if err != nil {
		return nil, nil, fmt.Errorf("ファイルが見つかりません: %w", err)
	}
	locations, err := storage.ReadLines(p.store.LocationPath(sel.area.Name, sel.adventure.Name))
	if err != nil {
		return nil, nil, fmt.Errorf("ファイルが見つかりません: %w", err)
	}
	n := min(len(log), len(locations))
	if n == 0 {
		return nil, nil, fmt.Errorf("%s has no playable lines", sel.adventure.Name)
	}
	return log[:n], locations[:n], nil
}

func (p *Player) adventurer() string {
	names, err := p.store.ReadNames()
	if err != nil || len(names) == 0 {
		return p.settings.Playback.DefaultName
	}
	return names[p.rng.IntN(len(names))]
}
