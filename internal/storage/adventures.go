package storage

import (
	"fmt"

	"github.com/jwebster45206/story-forge/pkg/content"
)

// AdventureHeader returns 冒険名, 結果, アイテム, 前の冒険, 次の冒険 and one column per chapter.
func AdventureHeader(maxChapters int) []string {
	header := []string{"冒険名", "結果", "アイテム", "前の冒険", "次の冒険"}
	for i := 1; i <= maxChapters; i++ {
		header = append(header, fmt.Sprintf("%d章", i))
	}
	return header
}

// AdventureToRow flattens an adventure, padding trailing chapter cells.
func AdventureToRow(a content.Adventure, maxChapters int) []string {
	row := []string{a.Name, string(a.Outcome), a.Item, a.Previous, a.Next}
	for i := 0; i < max(maxChapters, len(a.Chapters)); i++ {
		if i < len(a.Chapters) {
			row = append(row, a.Chapters[i].String())
		} else {
			row = append(row, "")
		}
	}
	return row
}

// AdventureFromRow parses one adventure CSV row.
func AdventureFromRow(t *Table, row []string, area string) content.Adventure {
	a := content.Adventure{
		Name:     t.Get(row, "冒険名"),
		Area:     area,
		Outcome:  content.Outcome(t.Get(row, "結果")),
		Item:     t.Get(row, "アイテム"),
		Previous: t.Get(row, "前の冒険"),
		Next:     t.Get(row, "次の冒険"),
	}
	for i := 1; ; i++ {
		col := t.Index(fmt.Sprintf("%d章", i))
		if col < 0 {
			break
		}
		if col >= len(row) || row[col] == "" {
			continue
		}
		a.Chapters = append(a.Chapters, content.ParseChapter(row[col]))
	}
	return a
}

// LoadAdventures reads every adventure of an area. A missing table yields none.
func (s *Store) LoadAdventures(area string) ([]content.Adventure, error) {
	t, err := readTableOrEmpty(s.AdventureTablePath(area))
	if err != nil {
		return nil, err
	}
	adventures := make([]content.Adventure, 0, len(t.Rows))
	for _, row := range t.Rows {
		adventures = append(adventures, AdventureFromRow(t, row, area))
	}
	return adventures, nil
}

// LoadAdventure finds one adventure in an area.
func (s *Store) LoadAdventure(area, name string) (content.Adventure, error) {
	adventures, err := s.LoadAdventures(area)
	if err != nil {
		return content.Adventure{}, err
	}
	for _, a := range adventures {
		if a.Name == name {
			return a, nil
		}
	}
	return content.Adventure{}, fmt.Errorf("adventure %s: %w", name, ErrNotFound)
}

// AdventureNames lists the adventure names of an area in table order.
func (s *Store) AdventureNames(area string) ([]string, error) {
	t, err := readTableOrEmpty(s.AdventureTablePath(area))
	if err != nil {
		return nil, err
	}
	return t.Keys(), nil
}

// AppendAdventure appends an adventure row and re-sorts the table.
func (s *Store) AppendAdventure(a content.Adventure) error {
	path := s.AdventureTablePath(a.Area)
	if err := AppendRow(path, AdventureHeader(s.maxChapters), AdventureToRow(a, s.maxChapters)); err != nil {
		return err
	}
	if err := SortByResult(path); err != nil {
		return fmt.Errorf("failed to sort %s: %w", path, err)
	}
	s.logger.Debug("Adventure saved", "area", a.Area, "adventure", a.Name)
	return nil
}

// SetAdventureNext patches the 次の冒険 link of an adventure.
func (s *Store) SetAdventureNext(area, adventure, next string) error {
	found := false
	err := UpdateTable(s.AdventureTablePath(area), func(t *Table) bool {
		found = setCell(t, adventure, "次の冒険", next)
		return found
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("adventure %s: %w", adventure, ErrNotFound)
	}
	return nil
}
