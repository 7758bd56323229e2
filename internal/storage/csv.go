package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jwebster45206/story-forge/pkg/content"
)

// Table is a whole CSV file held in memory.
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the column index of name, or -1.
func (t *Table) Index(name string) int {
	return slices.Index(t.Header, name)
}

// Get returns the named cell of row, or "" when the column or cell is absent.
func (t *Table) Get(row []string, name string) string {
	i := t.Index(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Find returns the first row whose first column equals key.
func (t *Table) Find(key string) ([]string, bool) {
	for _, row := range t.Rows {
		if len(row) > 0 && row[0] == key {
			return row, true
		}
	}
	return nil, false
}

// Keys returns the first column of every row.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if len(row) > 0 {
			keys = append(keys, row[0])
		}
	}
	return keys
}

// ReadTable reads a CSV file with a header row. A missing file returns ErrNotFound.
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	t := &Table{}
	if len(records) > 0 {
		t.Header = records[0]
		t.Rows = records[1:]
	}
	return t, nil
}

// readTableOrEmpty treats a missing file as an empty table.
func readTableOrEmpty(path string) (*Table, error) {
	t, err := ReadTable(path)
	if errors.Is(err, ErrNotFound) {
		return &Table{}, nil
	}
	return t, err
}

// AppendRow appends row to path, writing header first only when the file is new.
func AppendRow(path string, header, row []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if isNew && len(header) > 0 {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header to %s: %w", path, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write row to %s: %w", path, err)
	}
	w.Flush()
	return w.Error()
}

// WriteTable rewrites path with the whole table.
func WriteTable(path string, t *Table) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if len(t.Header) > 0 {
		if err := w.Write(t.Header); err != nil {
			return err
		}
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// UpdateTable rewrites path with fn's changes to the table. A missing file is a no-op.
func UpdateTable(path string, fn func(t *Table) bool) error {
	t, err := ReadTable(path)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !fn(t) {
		return nil
	}
	return WriteTable(path, t)
}

// DeleteRows removes every row whose first column is in keys and returns how many were removed.
func DeleteRows(path string, keys ...string) (int, error) {
	removed := 0
	err := UpdateTable(path, func(t *Table) bool {
		before := len(t.Rows)
		t.Rows = slices.DeleteFunc(t.Rows, func(row []string) bool {
			return len(row) > 0 && slices.Contains(keys, row[0])
		})
		removed = before - len(t.Rows)
		return removed > 0
	})
	return removed, err
}

// SortByResult orders rows by the outcome and number encoded in the first
// column (失敗 < 成功 < 大成功 < other, then ascending number). The sort is
// stable so re-sorting a sorted file rewrites identical bytes.
func SortByResult(path string) error {
	t, err := ReadTable(path)
	if err != nil {
		return err
	}
	slices.SortStableFunc(t.Rows, func(a, b []string) int {
		ra, na := resultKey(a)
		rb, nb := resultKey(b)
		if ra != rb {
			return ra - rb
		}
		return na - nb
	})
	return WriteTable(path, t)
}

func resultKey(row []string) (int, int) {
	if len(row) == 0 {
		return 3, 0
	}
	name := row[0]
	for _, o := range []content.Outcome{content.OutcomeGreatSuccess, content.OutcomeSuccess, content.OutcomeFailure} {
		if !strings.HasPrefix(name, string(o)) {
			continue
		}
		rest := strings.TrimPrefix(name, string(o))
		digits, _, _ := strings.Cut(rest, "_")
		n, err := strconv.Atoi(digits)
		if err != nil {
			n = 0
		}
		return o.Rank(), n
	}
	return 3, 0
}
