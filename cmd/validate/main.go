package main

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/jwebster45206/story-forge/internal/config"
	"github.com/jwebster45206/story-forge/internal/pipeline"
	"github.com/jwebster45206/story-forge/internal/progress"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

func main() {
	settingsFile := ""
	if len(os.Args) > 1 {
		settingsFile = os.Args[1]
	} else {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
			os.Exit(1)
		}
		settingsFile = cfg.SettingsFile
	}

	fmt.Printf("Validating %s...\n", settingsFile)
	s, err := settings.Load(settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	v := NewValidator(s)
	v.Run()
	for _, w := range v.warnings {
		fmt.Println(w)
	}
	if err := v.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Settings, templates and data are valid!")
}

// Validator collects every problem instead of stopping at the first one.
type Validator struct {
	settings *settings.Settings
	store    *storage.Store
	tracker  *progress.Tracker
	errors   []string
	warnings []string
}

func NewValidator(s *settings.Settings) *Validator {
	store := storage.NewStore(s, nil)
	return &Validator{settings: s, store: store, tracker: progress.NewTracker(store, s)}
}

func (v *Validator) Run() {
	if err := v.settings.Validate(); err != nil {
		v.addError("settings: %v", err)
	}
	v.validateTemplates()
	v.validateData()
}

// Err joins the collected errors.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	return fmt.Errorf("%d problems:\n%s", len(v.errors), strings.Join(v.errors, "\n"))
}

func (v *Validator) validateTemplates() {
	for _, name := range pipeline.TemplateNames {
		tmpl, err := prompts.Load(v.settings.PromptPath(name))
		if err != nil {
			v.addError("template %s: %v", name, err)
			continue
		}
		if err := prompts.ValidatePlaceholders(tmpl.Text, pipeline.TemplateVars[name]...); err != nil {
			v.addError("template %s: %v", name, err)
		}
	}
	if err := prompts.ValidatePlaceholders(v.settings.BeforeLogTemplate.WithPreLog, "pre_log"); err != nil {
		v.addError("BEFORE_LOG_TEMPLATE.with_pre_log: %v", err)
	}
}

func (v *Validator) validateData() {
	areas, err := v.store.LoadAreas()
	if err != nil {
		v.addError("areas: %v", err)
		return
	}

	names := make([]string, 0, len(areas))
	for _, a := range areas {
		if slices.Contains(names, a.Name) {
			v.addError("area %s is defined twice", a.Name)
		}
		names = append(names, a.Name)
	}
	for _, a := range areas {
		if a.Previous != "" && !slices.Contains(names, a.Previous) {
			v.addError("area %s: previous area %s does not exist", a.Name, a.Previous)
		}
		if a.Next != "" && !slices.Contains(names, a.Next) {
			v.addError("area %s: next area %s does not exist", a.Name, a.Next)
		}
		v.validateArea(a)
	}
}

func (v *Validator) validateArea(a content.Area) {
	adventures, err := v.store.LoadAdventures(a.Name)
	if err != nil {
		v.addError("area %s: %v", a.Name, err)
		return
	}

	known := make([]string, 0, len(adventures))
	for _, adv := range adventures {
		known = append(known, adv.Name)
		outcome, _, area, err := content.ParseAdventureName(adv.Name)
		switch {
		case err != nil:
			v.addError("adventure %s: %v", adv.Name, err)
		case area != a.Name:
			v.addError("adventure %s is stored under area %s", adv.Name, a.Name)
		case outcome != adv.Outcome:
			v.addError("adventure %s has outcome %s", adv.Name, adv.Outcome)
		}
		if len(adv.Chapters) == 0 {
			v.addError("adventure %s has no chapters", adv.Name)
		}
		v.validateLog(a.Name, adv.Name)
	}

	for _, kind := range []storage.CheckKind{storage.CheckAdventure, storage.CheckLog, storage.CheckLocation} {
		table, err := v.store.LoadChecks(kind, a.Name)
		if err != nil {
			v.addError("%s checks of %s: %v", kind, a.Name, err)
			continue
		}
		for _, subject := range table.Keys() {
			if !slices.Contains(known, subject) {
				v.addError("%s check row %s has no adventure", kind, subject)
			}
		}
	}
}

func (v *Validator) validateLog(area, adventure string) {
	logPath := v.store.LogPath(area, adventure)
	locPath := v.store.LocationPath(area, adventure)
	hasLog, hasLoc := storage.Exists(logPath), storage.Exists(locPath)

	if hasLoc && !hasLog {
		v.addError("%s: location file without a log", adventure)
		return
	}
	if !hasLog {
		return
	}
	if storage.Exists(v.store.LogTempPath(area, adventure)) {
		v.addWarning("%s: leftover temporary log", adventure)
	}
	if !v.tracker.IsLogComplete(area, adventure) {
		v.addWarning("%s: log has %d lines, %d required", adventure, storage.LineCount(logPath), v.settings.MinLogLines)
	}
	if hasLoc {
		log, logErr := storage.ReadLines(logPath)
		locs, locErr := storage.ReadLines(locPath)
		if logErr != nil || locErr != nil {
			v.addError("%s: unreadable log or location file", adventure)
		} else if len(log) != len(locs) {
			v.addError("%s: %d log lines but %d locations", adventure, len(log), len(locs))
		}
	}
	if ok, err := v.store.HasCheck(storage.CheckLog, area, adventure); err == nil && !ok {
		v.addWarning("%s: log has no check result", adventure)
	}
}

func (v *Validator) addError(format string, args ...any) {
	v.errors = append(v.errors, "  - "+fmt.Sprintf(format, args...))
}

func (v *Validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, "  ! "+fmt.Sprintf(format, args...))
}
