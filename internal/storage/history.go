package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jwebster45206/story-forge/pkg/content"
)

type historyFile struct {
	AdventureHistory []content.HistoryEntry `json:"adventure_history"`
}

// LoadHistory reads user_data/history.json. A missing file is an empty history.
func (s *Store) LoadHistory() ([]content.HistoryEntry, error) {
	data, err := os.ReadFile(s.HistoryPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	var h historyFile
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return h.AdventureHistory, nil
}

// AppendHistory assigns an id and timestamp when missing and rewrites the history file.
func (s *Store) AppendHistory(entry content.HistoryEntry) (content.HistoryEntry, error) {
	history, err := s.LoadHistory()
	if err != nil {
		return entry, err
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	history = append(history, entry)

	data, err := json.MarshalIndent(historyFile{AdventureHistory: history}, "", "  ")
	if err != nil {
		return entry, fmt.Errorf("failed to encode history: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.HistoryPath()), 0o755); err != nil {
		return entry, fmt.Errorf("failed to create user data directory: %w", err)
	}
	if err := os.WriteFile(s.HistoryPath(), data, 0o644); err != nil {
		return entry, fmt.Errorf("failed to write history: %w", err)
	}
	return entry, nil
}
