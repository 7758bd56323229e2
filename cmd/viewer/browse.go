package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/story-forge/internal/logger"
	"github.com/jwebster45206/story-forge/internal/progress"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
)

const (
	markPass    = "✅"
	markFail    = "❌"
	markMissing = "－"
)

var reviewKinds = []storage.CheckKind{storage.CheckAdventure, storage.CheckLog, storage.CheckLocation}

// areaItem is one row of the area list.
type areaItem struct {
	area   content.Area
	status progress.Status
}

func (i areaItem) Title() string {
	title := fmt.Sprintf("[Lv%d] %s", i.area.Difficulty, i.area.Name)
	if i.area.IsLocked() {
		title += "  ← " + i.area.Previous
	}
	return title
}

func (i areaItem) Description() string {
	return fmt.Sprintf("%s ログ %d/%d ・ チェック %d/%d",
		badge(i.status), i.status.Completed, i.status.Total, i.status.Checked, i.status.Total)
}

func (i areaItem) FilterValue() string { return i.area.Name }

func badge(st progress.Status) string {
	switch {
	case st.Complete() && st.AllChecked():
		return markPass
	case st.Complete():
		return "📝"
	case st.Total == 0:
		return "🆕"
	default:
		return "🚧"
	}
}

// adventureItem is one row of an area's adventure table.
type adventureItem struct {
	adventure content.Adventure
	lines     int
	marks     []string
}

func (i adventureItem) Title() string { return i.adventure.Name }

func (i adventureItem) Description() string {
	item := i.adventure.Item
	if item == "" {
		item = "なし"
	}
	return fmt.Sprintf("%s ・ アイテム: %s ・ %d行 ・ adv%s log%s loc%s",
		i.adventure.Outcome, item, i.lines, i.marks[0], i.marks[1], i.marks[2])
}

func (i adventureItem) FilterValue() string { return i.adventure.Name }

// invalidator is implemented by progress.CachedTracker.
type invalidator interface {
	Invalidate(ctx context.Context, areas ...string)
}

// browser reads and deletes content for the viewer.
type browser struct {
	store    *storage.Store
	tracker  *progress.Tracker
	status   progress.Reader
	settings *settings.Settings
	logger   *slog.Logger
}

func newBrowser(store *storage.Store, s *settings.Settings, status progress.Reader, log *slog.Logger) *browser {
	tracker := progress.NewTracker(store, s)
	if status == nil {
		status = tracker
	}
	return &browser{store: store, tracker: tracker, status: status, settings: s, logger: log}
}

func (b *browser) areaItems(ctx context.Context) ([]list.Item, error) {
	areas, err := b.store.LoadAreas()
	if err != nil {
		return nil, err
	}
	items := make([]list.Item, 0, len(areas))
	for _, a := range areas {
		st, err := b.status.AreaStatus(ctx, a.Name)
		if err != nil {
			return nil, err
		}
		items = append(items, areaItem{area: a, status: st})
	}
	return items, nil
}

func (b *browser) adventureItems(area string) ([]list.Item, error) {
	adventures, err := b.store.LoadAdventures(area)
	if err != nil {
		return nil, err
	}
	tables, err := b.checkTables(area)
	if err != nil {
		return nil, err
	}
	items := make([]list.Item, 0, len(adventures))
	for _, a := range adventures {
		marks := make([]string, len(tables))
		for i, t := range tables {
			marks[i] = b.mark(t, a.Name)
		}
		items = append(items, adventureItem{
			adventure: a,
			lines:     storage.LineCount(b.store.LogPath(area, a.Name)),
			marks:     marks,
		})
	}
	return items, nil
}

func (b *browser) checkTables(area string) ([]*storage.Table, error) {
	tables := make([]*storage.Table, 0, len(reviewKinds))
	for _, kind := range reviewKinds {
		t, err := b.store.LoadChecks(kind, area)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (b *browser) mark(t *storage.Table, subject string) string {
	row, ok := t.Find(subject)
	switch {
	case !ok:
		return markMissing
	case b.tracker.RowPasses(t, row):
		return markPass
	default:
		return markFail
	}
}

// areaInfo renders every filled field of an area.
func (b *browser) areaInfo(a content.Area, width int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(a.Name) + "\n\n")
	for _, kv := range [][2]string{
		{"地理的特徴", a.Geography},
		{"歴史や伝説", a.History},
		{"リスクや挑戦", a.Risks},
		{"財宝", a.Treasure.String()},
		{"財宝の隠し場所", a.TreasureLocation},
		{"前のエリア", a.Previous},
		{"次のエリア", a.Next},
	} {
		if kv[1] == "" {
			continue
		}
		sb.WriteString(labelStyle.Render(kv[0]) + "\n" + wordwrap.String(kv[1], width) + "\n")
	}
	lists := a.ListFields()
	for _, header := range storage.AreaHeader {
		entries, ok := lists[header]
		if !ok || len(entries) == 0 {
			continue
		}
		sb.WriteString(labelStyle.Render(header) + "\n")
		for _, e := range entries {
			sb.WriteString(wordwrap.String(fmt.Sprintf("  * %s: %s", e.Name, e.Description), width) + "\n")
		}
	}
	return sb.String()
}

// adventureDetail renders chapters, the numbered log with its locations and
// the rubric rows of one adventure.
func (b *browser) adventureDetail(a content.Adventure, width int) (string, error) {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(a.Name) + "\n\n")
	fmt.Fprintf(&sb, "結果: %s\n", a.Outcome)
	if a.Item != "" {
		fmt.Fprintf(&sb, "アイテム: %s\n", a.Item)
	}
	if a.Previous != "" {
		fmt.Fprintf(&sb, "前の冒険: %s\n", a.Previous)
	}
	if a.Next != "" {
		fmt.Fprintf(&sb, "次の冒険: %s\n", a.Next)
	}

	sb.WriteString("\n" + labelStyle.Render("章") + "\n")
	for i, c := range a.Chapters {
		sb.WriteString(wordwrap.String(fmt.Sprintf("%d. %s: %s", i+1, c.Title, c.Content), width) + "\n")
	}

	log, err := b.readLines(b.store.LogPath(a.Area, a.Name))
	if err != nil {
		return "", err
	}
	locations, err := b.readLines(b.store.LocationPath(a.Area, a.Name))
	if err != nil {
		return "", err
	}
	sb.WriteString("\n" + labelStyle.Render(fmt.Sprintf("ログ (%d行)", len(log))) + "\n")
	if len(log) == 0 {
		sb.WriteString(dimStyle.Render("ログはまだありません") + "\n")
	}
	for i, line := range log {
		loc := markMissing
		if i < len(locations) {
			loc = locations[i]
		}
		sb.WriteString(fmt.Sprintf("%3d ", i+1) + locationStyle.Render("["+loc+"]") + " " + line + "\n")
	}

	tables, err := b.checkTables(a.Area)
	if err != nil {
		return "", err
	}
	sb.WriteString("\n" + labelStyle.Render("チェック結果") + "\n")
	for i, t := range tables {
		row, ok := t.Find(a.Name)
		if !ok {
			fmt.Fprintf(&sb, "%s: %s\n", reviewKinds[i], markMissing)
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n", reviewKinds[i], b.mark(t, a.Name))
		for col := 1; col < len(t.Header) && col < len(row); col++ {
			sb.WriteString(wordwrap.String(fmt.Sprintf("  %s: %s", t.Header[col], row[col]), width) + "\n")
		}
	}
	return sb.String(), nil
}

func (b *browser) readLines(path string) ([]string, error) {
	if !storage.Exists(path) {
		return nil, nil
	}
	return storage.ReadLines(path)
}

// logText returns the raw log of an adventure for the clipboard.
func (b *browser) logText(a content.Adventure) (string, error) {
	return storage.ReadText(b.store.LogPath(a.Area, a.Name))
}

// delete removes a unit and its dependents, then drops cached progress.
func (b *browser) delete(ctx context.Context, kind storage.Kind, area string, names ...string) ([]string, error) {
	msgs, err := b.store.Delete(kind, area, names...)
	for _, msg := range msgs {
		logger.Delete(b.logger, msg)
	}
	if inv, ok := b.status.(invalidator); ok {
		areas := []string{area}
		if kind == storage.KindArea {
			areas = names
		}
		inv.Invalidate(ctx, areas...)
	}
	return msgs, err
}
