package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jwebster45206/story-forge/internal/settings"
)

// ErrNotFound is returned when a requested file or row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the flat-file content store rooted at the configured data,
// check-result and user-data directories.
type Store struct {
	dataDir     string
	checkDir    string
	userDataDir string
	maxChapters int
	logger      *slog.Logger
}

// NewStore creates a store from content settings.
func NewStore(s *settings.Settings, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		dataDir:     s.DataDir,
		checkDir:    s.CheckResultDir,
		userDataDir: s.UserDataDir,
		maxChapters: s.MaxChapters(),
		logger:      logger,
	}
}

func (s *Store) DataDir() string { return s.dataDir }

// AreaTablePath is data/lv{N}.csv.
func (s *Store) AreaTablePath(level int) string {
	return filepath.Join(s.dataDir, fmt.Sprintf("lv%d.csv", level))
}

func (s *Store) AreaDir(area string) string {
	return filepath.Join(s.dataDir, area)
}

// AdventureTablePath is data/{area}/{area}.csv.
func (s *Store) AdventureTablePath(area string) string {
	return filepath.Join(s.dataDir, area, area+".csv")
}

func (s *Store) LogPath(area, adventure string) string {
	return filepath.Join(s.dataDir, area, adventure+".txt")
}

// LogTempPath holds a log while its chapters are being generated.
func (s *Store) LogTempPath(area, adventure string) string {
	return filepath.Join(s.dataDir, area, adventure+".temp.txt")
}

func (s *Store) LocationPath(area, adventure string) string {
	return filepath.Join(s.dataDir, area, "loc_"+adventure+".txt")
}

func (s *Store) NamesPath() string {
	return filepath.Join(s.dataDir, "names.txt")
}

func (s *Store) CheckDir(area string) string {
	return filepath.Join(s.checkDir, area)
}

// CheckPath is check_results/{area}/{adv|log|loc}_{area}.csv, or
// check_results/areas.csv for area checks.
func (s *Store) CheckPath(kind CheckKind, area string) string {
	if kind == CheckArea {
		return filepath.Join(s.checkDir, "areas.csv")
	}
	return filepath.Join(s.checkDir, area, fmt.Sprintf("%s_%s.csv", kind, area))
}

func (s *Store) HistoryPath() string {
	return filepath.Join(s.userDataDir, "history.json")
}
