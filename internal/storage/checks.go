package storage

import (
	"fmt"
	"os"

	"github.com/jwebster45206/story-forge/pkg/content"
)

// CheckKind names a rubric file.
type CheckKind string

const (
	CheckArea      CheckKind = "area"
	CheckAdventure CheckKind = "adv"
	CheckLog       CheckKind = "log"
	CheckLocation  CheckKind = "loc"
)

// VerdictColumn is the last column of every check table.
const VerdictColumn = "総合評価"

// SubjectColumn is the first column of a check table.
func (k CheckKind) SubjectColumn() string {
	if k == CheckArea {
		return "エリア名"
	}
	return "冒険名"
}

// CheckHeader builds the header for a rubric with the given criteria.
func CheckHeader(kind CheckKind, criteria []string) []string {
	header := []string{kind.SubjectColumn()}
	header = append(header, criteria...)
	return append(header, VerdictColumn)
}

// CheckToRow flattens a result into the order of criteria.
func CheckToRow(r content.CheckResult, criteria []string) []string {
	row := []string{r.Subject}
	for _, c := range criteria {
		cell := ""
		for _, m := range r.Marks {
			if m.Criterion == c {
				cell = m.Cell()
				break
			}
		}
		row = append(row, cell)
	}
	return append(row, r.Verdict)
}

// AppendCheck stores one rubric row and re-sorts the file by outcome then number.
func (s *Store) AppendCheck(kind CheckKind, area string, r content.CheckResult, criteria []string) error {
	path := s.CheckPath(kind, area)
	if err := AppendRow(path, CheckHeader(kind, criteria), CheckToRow(r, criteria)); err != nil {
		return err
	}
	if err := SortByResult(path); err != nil {
		return fmt.Errorf("failed to sort %s: %w", path, err)
	}
	return nil
}

// LoadChecks reads a rubric table. A missing file yields an empty table.
func (s *Store) LoadChecks(kind CheckKind, area string) (*Table, error) {
	return readTableOrEmpty(s.CheckPath(kind, area))
}

// HasCheck reports whether subject already has a row.
func (s *Store) HasCheck(kind CheckKind, area, subject string) (bool, error) {
	t, err := s.LoadChecks(kind, area)
	if err != nil {
		return false, err
	}
	_, ok := t.Find(subject)
	return ok, nil
}

// CheckExists reports whether the rubric file exists.
func (s *Store) CheckExists(kind CheckKind, area string) bool {
	_, err := os.Stat(s.CheckPath(kind, area))
	return err == nil
}
