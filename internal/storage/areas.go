package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jwebster45206/story-forge/pkg/content"
)

// AreaHeader is the column order of data/lv{N}.csv.
var AreaHeader = []string{
	"エリア名", "地理的特徴", "歴史や伝説", "リスクや挑戦", "財宝", "財宝の隠し場所",
	"採取できるアイテム", "生息する危険な生物", "生息する無害な生物", "経由地候補",
	"近くの街", "移動路", "休憩ポイント", "前のエリア", "次のエリア",
}

// AreaToRow flattens an area into AreaHeader order.
func AreaToRow(a content.Area) []string {
	return []string{
		a.Name, a.Geography, a.History, a.Risks, a.Treasure.String(), a.TreasureLocation,
		content.JoinEntries(a.Items),
		content.JoinEntries(a.DangerousCreatures),
		content.JoinEntries(a.HarmlessCreatures),
		content.JoinEntries(a.Waypoints),
		content.JoinEntries(a.Cities),
		content.JoinEntries(a.Routes),
		content.JoinEntries(a.RestPoints),
		a.Previous, a.Next,
	}
}

// AreaFromRow parses one lv{N}.csv row.
func AreaFromRow(t *Table, row []string, level int) content.Area {
	return content.Area{
		Name:               t.Get(row, "エリア名"),
		Difficulty:         level,
		Geography:          t.Get(row, "地理的特徴"),
		History:            t.Get(row, "歴史や伝説"),
		Risks:              t.Get(row, "リスクや挑戦"),
		Treasure:           content.ParseEntry(t.Get(row, "財宝")),
		TreasureLocation:   t.Get(row, "財宝の隠し場所"),
		Items:              content.ParseEntries(t.Get(row, "採取できるアイテム")),
		DangerousCreatures: content.ParseEntries(t.Get(row, "生息する危険な生物")),
		HarmlessCreatures:  content.ParseEntries(t.Get(row, "生息する無害な生物")),
		Waypoints:          content.ParseEntries(t.Get(row, "経由地候補")),
		Cities:             content.ParseEntries(t.Get(row, "近くの街")),
		Routes:             content.ParseEntries(t.Get(row, "移動路")),
		RestPoints:         content.ParseEntries(t.Get(row, "休憩ポイント")),
		Previous:           t.Get(row, "前のエリア"),
		Next:               t.Get(row, "次のエリア"),
	}
}

// AreaLevels returns the N of every data/lv{N}.csv in ascending order.
func (s *Store) AreaLevels() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dataDir, "lv*.csv"))
	if err != nil {
		return nil, err
	}
	var levels []int
	for _, m := range matches {
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), "lv"), ".csv")
		n, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		levels = append(levels, n)
	}
	slices.Sort(levels)
	return levels, nil
}

// LoadAreas reads every area across all tiers, lowest tier first.
func (s *Store) LoadAreas() ([]content.Area, error) {
	levels, err := s.AreaLevels()
	if err != nil {
		return nil, fmt.Errorf("failed to list area tiers: %w", err)
	}
	var areas []content.Area
	for _, level := range levels {
		t, err := ReadTable(s.AreaTablePath(level))
		if err != nil {
			return nil, err
		}
		for _, row := range t.Rows {
			areas = append(areas, AreaFromRow(t, row, level))
		}
	}
	return areas, nil
}

// LoadArea finds one area by name.
func (s *Store) LoadArea(name string) (content.Area, error) {
	areas, err := s.LoadAreas()
	if err != nil {
		return content.Area{}, err
	}
	for _, a := range areas {
		if a.Name == name {
			return a, nil
		}
	}
	return content.Area{}, fmt.Errorf("area %s: %w", name, ErrNotFound)
}

// AppendArea appends the area to its tier table and creates its directory.
func (s *Store) AppendArea(a content.Area) error {
	if a.Difficulty <= 0 {
		a.Difficulty = 1
	}
	if err := AppendRow(s.AreaTablePath(a.Difficulty), AreaHeader, AreaToRow(a)); err != nil {
		return err
	}
	if err := os.MkdirAll(s.AreaDir(a.Name), 0o755); err != nil {
		return fmt.Errorf("failed to create area directory: %w", err)
	}
	s.logger.Debug("Area saved", "area", a.Name, "level", a.Difficulty)
	return nil
}

// SetAreaNext patches the 次のエリア link of area.
func (s *Store) SetAreaNext(area, next string) error {
	return s.updateAreaRow(area, "次のエリア", next)
}

func (s *Store) updateAreaRow(area, column, value string) error {
	levels, err := s.AreaLevels()
	if err != nil {
		return err
	}
	for _, level := range levels {
		found := false
		err := UpdateTable(s.AreaTablePath(level), func(t *Table) bool {
			found = setCell(t, area, column, value)
			return found
		})
		if err != nil {
			return err
		}
		if found {
			return nil
		}
	}
	return fmt.Errorf("area %s: %w", area, ErrNotFound)
}

// setCell sets column of the row keyed by key, padding short rows.
func setCell(t *Table, key, column, value string) bool {
	col := t.Index(column)
	if col < 0 {
		return false
	}
	found := false
	for i, row := range t.Rows {
		if len(row) == 0 || row[0] != key {
			continue
		}
		for len(row) <= col {
			row = append(row, "")
		}
		row[col] = value
		t.Rows[i] = row
		found = true
	}
	return found
}
