package content

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Outcome is the fixed result of an adventure.
type Outcome string

const (
	OutcomeFailure      Outcome = "失敗"
	OutcomeSuccess      Outcome = "成功"
	OutcomeGreatSuccess Outcome = "大成功"
)

// Outcomes lists every outcome in sort order.
var Outcomes = []Outcome{OutcomeFailure, OutcomeSuccess, OutcomeGreatSuccess}

// Rank orders outcomes for CSV sorting. Unknown outcomes sort last.
func (o Outcome) Rank() int {
	switch o {
	case OutcomeFailure:
		return 0
	case OutcomeSuccess:
		return 1
	case OutcomeGreatSuccess:
		return 2
	default:
		return 3
	}
}

func (o Outcome) Valid() bool {
	return o.Rank() < 3
}

// ParseOutcome validates s as an outcome.
func ParseOutcome(s string) (Outcome, error) {
	o := Outcome(strings.TrimSpace(s))
	if !o.Valid() {
		return "", fmt.Errorf("unknown outcome %q", s)
	}
	return o, nil
}

// Entry is a "name: description" pair used by area list fields.
type Entry struct {
	Name        string `json:"名称" yaml:"名称"`
	Description string `json:"特徴" yaml:"特徴"`
}

func (e Entry) String() string {
	if e.Description == "" {
		return e.Name
	}
	return e.Name + ": " + e.Description
}

// ParseEntry splits "name: description". A value without a separator is a bare name.
func ParseEntry(s string) Entry {
	s = strings.TrimSpace(s)
	name, desc, found := strings.Cut(s, ":")
	if !found {
		return Entry{Name: s}
	}
	return Entry{Name: strings.TrimSpace(name), Description: strings.TrimSpace(desc)}
}

// ParseEntries parses a ";"-joined list field.
func ParseEntries(s string) []Entry {
	var entries []Entry
	for _, part := range strings.Split(s, ";") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		entries = append(entries, ParseEntry(part))
	}
	return entries
}

// JoinEntries is the inverse of ParseEntries.
func JoinEntries(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}
	return strings.Join(parts, ";")
}

// EntryNames returns just the names.
func EntryNames(entries []Entry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// Area is a named game zone. Areas form a chain through Previous/Next.
type Area struct {
	Name               string
	Difficulty         int
	Geography          string
	History            string
	Risks              string
	Treasure           Entry
	TreasureLocation   string
	Items              []Entry
	DangerousCreatures []Entry
	HarmlessCreatures  []Entry
	Waypoints          []Entry
	Cities             []Entry
	Routes             []Entry
	RestPoints         []Entry
	Previous           string
	Next               string
}

// IsLocked reports whether the area is reached through a predecessor.
func (a Area) IsLocked() bool {
	return a.Previous != ""
}

// HasItem reports whether name is one of the area's collectibles.
func (a Area) HasItem(name string) bool {
	for _, item := range a.Items {
		if item.Name == name {
			return true
		}
	}
	return false
}

// ListFields returns every list field keyed by its CSV header.
func (a Area) ListFields() map[string][]Entry {
	return map[string][]Entry{
		"採取できるアイテム": a.Items,
		"生息する危険な生物": a.DangerousCreatures,
		"生息する無害な生物": a.HarmlessCreatures,
		"経由地候補":     a.Waypoints,
		"近くの街":      a.Cities,
		"移動路":       a.Routes,
		"休憩ポイント":    a.RestPoints,
	}
}

// Chapter is one chapter of an adventure summary.
type Chapter struct {
	Title   string
	Content string
}

func (c Chapter) String() string {
	return c.Title + ":" + c.Content
}

// ParseChapter splits a stored "title:content" cell.
func ParseChapter(s string) Chapter {
	title, body, found := strings.Cut(s, ":")
	if !found {
		return Chapter{Content: s}
	}
	return Chapter{Title: title, Content: body}
}

// Adventure is one outcome summary inside an area.
type Adventure struct {
	Name     string
	Area     string
	Outcome  Outcome
	Item     string
	Previous string
	Next     string
	Chapters []Chapter
}

// Number returns the numeric part of the adventure name, or 0.
func (a Adventure) Number() int {
	_, n, _, err := ParseAdventureName(a.Name)
	if err != nil {
		return 0
	}
	return n
}

// AdventureName builds "{outcome}{num}_{area}".
func AdventureName(outcome Outcome, num int, area string) string {
	return fmt.Sprintf("%s%d_%s", outcome, num, area)
}

// ParseAdventureName splits a name built by AdventureName.
func ParseAdventureName(name string) (Outcome, int, string, error) {
	var outcome Outcome
	rest := name
	for _, o := range []Outcome{OutcomeGreatSuccess, OutcomeSuccess, OutcomeFailure} {
		if strings.HasPrefix(name, string(o)) {
			outcome = o
			rest = strings.TrimPrefix(name, string(o))
			break
		}
	}
	if outcome == "" {
		return "", 0, "", fmt.Errorf("adventure name %q has no outcome prefix", name)
	}
	digits, area, found := strings.Cut(rest, "_")
	if !found {
		return "", 0, "", fmt.Errorf("adventure name %q has no area suffix", name)
	}
	num, err := strconv.Atoi(digits)
	if err != nil {
		return "", 0, "", fmt.Errorf("adventure name %q has no number: %w", name, err)
	}
	return outcome, num, area, nil
}

// Mark is one rubric criterion score.
type Mark struct {
	Criterion string
	Mark      string
	Reason    string
}

// Cell is the stored "mark+reason" form.
func (m Mark) Cell() string {
	return m.Mark + m.Reason
}

// CheckResult is the rubric record for one artifact.
type CheckResult struct {
	Subject string
	Marks   []Mark
	Verdict string
}

// HistoryEntry records one completed playthrough.
type HistoryEntry struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	Area              string    `json:"area"`
	Adventure         string    `json:"adventure"`
	Outcome           Outcome   `json:"outcome"`
	Prize             int       `json:"prize"`
	Items             []string  `json:"items,omitempty"`
	Adventurer        string    `json:"adventurer"`
	Precursor         string    `json:"precursor,omitempty"`
	PreviousAdventure string    `json:"previous_adventure,omitempty"`
	ElapsedMinutes    float64   `json:"elapsed_minutes"`
}
