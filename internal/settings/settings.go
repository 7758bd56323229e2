package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/story-forge/pkg/content"
	"gopkg.in/yaml.v3"
)

// DefaultEndingLine is passed as the next chapter when generating the last chapter's log.
const DefaultEndingLine = "（次章はなく、物語はこの章で終わる。）"

// DefaultBannedAreaChars may not appear in a generated area name.
var DefaultBannedAreaChars = []string{"-", "ー", "‐", "~", "〜", "〰", "|", "[", "]", "「", "」", ":", ";", "@", "/", ">", "深", "裏"}

type ChapterSetting struct {
	BeforeChapter string `json:"before_chapter" yaml:"before_chapter"`
	AfterChapter  string `json:"after_chapter" yaml:"after_chapter"`
}

type BeforeLogTemplate struct {
	Default    string `json:"default" yaml:"default"`
	WithPreLog string `json:"with_pre_log" yaml:"with_pre_log"`
}

type OutcomeSetting struct {
	Chance int `json:"chance" yaml:"chance"`
	Prize  int `json:"prize" yaml:"prize"`
}

type PlaybackSetting struct {
	LineMinutes           float64 `json:"line_minutes" yaml:"line_minutes"`
	LocationChangeMinutes float64 `json:"location_change_minutes" yaml:"location_change_minutes"`
	DefaultName           string  `json:"default_name" yaml:"default_name"`
}

// Settings holds the tunable content schema loaded from prompt/config.json.
type Settings struct {
	DataDir        string `json:"DATA_DIR" yaml:"DATA_DIR"`
	CheckResultDir string `json:"CHECK_RESULT_DIR" yaml:"CHECK_RESULT_DIR"`
	PromptDir      string `json:"PROMPT_DIR" yaml:"PROMPT_DIR"`
	UserDataDir    string `json:"USER_DATA_DIR" yaml:"USER_DATA_DIR"`

	CheckMarks      []string `json:"CHECK_MARKS" yaml:"CHECK_MARKS"`
	MaxRetries      int      `json:"MAX_RETRIES" yaml:"MAX_RETRIES"`
	WaitTimeSeconds int      `json:"WAIT_TIME_SECONDS" yaml:"WAIT_TIME_SECONDS"`
	NGWords         []string `json:"NG_WORDS" yaml:"NG_WORDS"`
	BannedAreaChars []string `json:"BANNED_AREA_CHARS" yaml:"BANNED_AREA_CHARS"`

	AreaCheckKeys      []string `json:"AREACHECK_KEYS" yaml:"AREACHECK_KEYS"`
	AdvCheckKeys       []string `json:"ADVCHECK_KEYS" yaml:"ADVCHECK_KEYS"`
	LockedAdvCheckKeys []string `json:"LOCKED_ADVCHECK_KEYS" yaml:"LOCKED_ADVCHECK_KEYS"`
	LogCheckKeys       []string `json:"LOGCHECK_KEYS" yaml:"LOGCHECK_KEYS"`
	LocationCheckKeys  []string `json:"LOCATIONCHECK_KEYS" yaml:"LOCATIONCHECK_KEYS"`

	ChapterSettings       map[content.Outcome][]ChapterSetting `json:"CHAPTER_SETTINGS" yaml:"CHAPTER_SETTINGS"`
	AreaInfoKeysForPrompt []string                             `json:"AREA_INFO_KEYS_FOR_PROMPT" yaml:"AREA_INFO_KEYS_FOR_PROMPT"`
	AreaInfoText          string                               `json:"AREA_INFO_TEXT" yaml:"AREA_INFO_TEXT"`
	BeforeLogTemplate     BeforeLogTemplate                    `json:"BEFORE_LOG_TEMPLATE" yaml:"BEFORE_LOG_TEMPLATE"`
	EndingLine            string                               `json:"ENDING_LINE" yaml:"ENDING_LINE"`
	MinLogLines           int                                  `json:"MIN_LOG_LINES" yaml:"MIN_LOG_LINES"`
	MinChapterLines       int                                  `json:"MIN_CHAPTER_LINES" yaml:"MIN_CHAPTER_LINES"`
	ResultDescriptions    map[content.Outcome]string           `json:"RESULT_DESCRIPTIONS" yaml:"RESULT_DESCRIPTIONS"`

	Outcomes       map[content.Outcome]OutcomeSetting `json:"OUTCOMES" yaml:"OUTCOMES"`
	ItemValueTable map[string]int                     `json:"ITEM_VALUE_TABLE" yaml:"ITEM_VALUE_TABLE"`
	Playback       PlaybackSetting                    `json:"PLAYBACK" yaml:"PLAYBACK"`
}

// Load reads settings from a JSON or YAML file and fills defaults.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings %s: %w", path, err)
	}

	var s Settings
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &s)
	default:
		err = json.Unmarshal(data, &s)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return &s, nil
}

// Default returns settings with every default applied.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

func (s *Settings) applyDefaults() {
	if s.DataDir == "" {
		s.DataDir = "data"
	}
	if s.CheckResultDir == "" {
		s.CheckResultDir = "check_results"
	}
	if s.PromptDir == "" {
		s.PromptDir = "prompt"
	}
	if s.UserDataDir == "" {
		s.UserDataDir = "user_data"
	}
	if len(s.CheckMarks) == 0 {
		s.CheckMarks = []string{"✅"}
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = 10
	}
	if s.WaitTimeSeconds <= 0 {
		s.WaitTimeSeconds = 10
	}
	if s.BannedAreaChars == nil {
		s.BannedAreaChars = DefaultBannedAreaChars
	}
	if len(s.LockedAdvCheckKeys) == 0 {
		s.LockedAdvCheckKeys = s.AdvCheckKeys
	}
	if s.ChapterSettings == nil {
		s.ChapterSettings = map[content.Outcome][]ChapterSetting{}
	}
	for _, o := range content.Outcomes {
		if len(s.ChapterSettings[o]) == 0 {
			s.ChapterSettings[o] = make([]ChapterSetting, 8)
		}
	}
	if s.BeforeLogTemplate.Default == "" {
		s.BeforeLogTemplate.Default = "（これは物語の最初の章である。）"
	}
	if s.BeforeLogTemplate.WithPreLog == "" {
		s.BeforeLogTemplate.WithPreLog = "前章のログ:\n{pre_log}"
	}
	if s.EndingLine == "" {
		s.EndingLine = DefaultEndingLine
	}
	if s.MinLogLines <= 0 {
		s.MinLogLines = 160
	}
	if s.MinChapterLines <= 0 {
		s.MinChapterLines = 20
	}
	if s.Outcomes == nil {
		s.Outcomes = map[content.Outcome]OutcomeSetting{
			content.OutcomeGreatSuccess: {Chance: 5, Prize: 1000},
			content.OutcomeSuccess:      {Chance: 45, Prize: 110},
			content.OutcomeFailure:      {Chance: 50, Prize: 0},
		}
	}
	if s.Playback.LineMinutes <= 0 {
		s.Playback.LineMinutes = 2.5
	}
	if s.Playback.LocationChangeMinutes <= 0 {
		s.Playback.LocationChangeMinutes = 10
	}
	if s.Playback.DefaultName == "" {
		s.Playback.DefaultName = "アーサー"
	}
}

// Validate checks cross-field constraints.
func (s *Settings) Validate() error {
	for _, o := range content.Outcomes {
		if len(s.ChapterSettings[o]) == 0 {
			return fmt.Errorf("CHAPTER_SETTINGS has no chapters for %s", o)
		}
	}
	total := 0
	for o, setting := range s.Outcomes {
		if !o.Valid() {
			return fmt.Errorf("OUTCOMES has unknown outcome %q", o)
		}
		if setting.Chance < 0 {
			return fmt.Errorf("OUTCOMES chance for %s is negative", o)
		}
		total += setting.Chance
	}
	if total == 0 {
		return fmt.Errorf("OUTCOMES chances sum to zero")
	}
	return nil
}

// Chapters returns the chapter schema for an outcome.
func (s *Settings) Chapters(o content.Outcome) []ChapterSetting {
	return s.ChapterSettings[o]
}

// MaxChapters is the widest chapter schema, used for adventure CSV columns.
func (s *Settings) MaxChapters() int {
	n := 0
	for _, chapters := range s.ChapterSettings {
		n = max(n, len(chapters))
	}
	return n
}

// IsPass reports whether mark is one of the pass symbols.
func (s *Settings) IsPass(mark string) bool {
	for _, m := range s.CheckMarks {
		if mark == m {
			return true
		}
	}
	return false
}

// HasPassPrefix reports whether a stored "mark+reason" cell starts with a pass symbol.
func (s *Settings) HasPassPrefix(cell string) bool {
	for _, m := range s.CheckMarks {
		if strings.HasPrefix(cell, m) {
			return true
		}
	}
	return false
}

// WaitTime is the base retry backoff.
func (s *Settings) WaitTime() time.Duration {
	return time.Duration(s.WaitTimeSeconds) * time.Second
}

// PromptPath resolves a template file name inside PromptDir.
func (s *Settings) PromptPath(name string) string {
	return filepath.Join(s.PromptDir, name)
}

// ItemValue returns the configured value of an item, or 0.
func (s *Settings) ItemValue(item string) int {
	return s.ItemValueTable[item]
}
