// Package checker grades generated content against a configured rubric.
package checker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-forge/internal/generator"
	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/internal/storage"
	"github.com/jwebster45206/story-forge/pkg/content"
	"github.com/jwebster45206/story-forge/pkg/prompts"
)

var (
	// ErrCheckFailed means at least one criterion did not receive a pass mark.
	ErrCheckFailed = errors.New("check failed")
	// ErrMissingCriterion means a configured criterion is absent from the result.
	ErrMissingCriterion = errors.New("missing criterion")
)

const (
	markKey   = "評価"
	reasonKey = "理由"
)

// Saver persists rubric rows.
type Saver interface {
	AppendCheck(kind storage.CheckKind, area string, r content.CheckResult, criteria []string) error
}

// Checker scores one kind of artifact.
type Checker struct {
	llm      services.LLMService
	tmpl     *prompts.Template
	settings *settings.Settings
	kind     storage.CheckKind
	criteria []string
	store    Saver
	logger   *slog.Logger
}

func New(llm services.LLMService, tmpl *prompts.Template, s *settings.Settings, kind storage.CheckKind, criteria []string, store Saver, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		llm:      llm,
		tmpl:     tmpl,
		settings: s,
		kind:     kind,
		criteria: criteria,
		store:    store,
		logger:   logger,
	}
}

// Criteria returns the configured rubric keys for kind. Locked adventures
// use LOCKED_ADVCHECK_KEYS.
func Criteria(s *settings.Settings, kind storage.CheckKind, locked bool) []string {
	switch kind {
	case storage.CheckArea:
		return s.AreaCheckKeys
	case storage.CheckAdventure:
		if locked {
			return s.LockedAdvCheckKeys
		}
		return s.AdvCheckKeys
	case storage.CheckLog:
		return s.LogCheckKeys
	case storage.CheckLocation:
		return s.LocationCheckKeys
	}
	return nil
}

func (c *Checker) Kind() storage.CheckKind { return c.kind }

func (c *Checker) Criteria() []string { return c.criteria }

// Check fills the rubric template with vars and the criteria list and scores subject. The parsed
// result is returned alongside ErrCheckFailed when any criterion fails.
func (c *Checker) Check(ctx context.Context, subject string, vars map[string]string) (content.CheckResult, error) {
	b := prompts.New(c.tmpl).WithBullets("criteria", c.criteria, "")
	for k, v := range vars {
		b.With(k, v)
	}
	prompt, err := b.Build()
	if err != nil {
		return content.CheckResult{}, fmt.Errorf("failed to build prompt %s: %w", c.tmpl.Name, err)
	}
	c.logger.Debug("Check prompt built", "template", c.tmpl.Name, "subject", subject)

	resp, err := c.llm.GenerateResponse(ctx, services.Request{
		Prompt:      prompt,
		Temperature: services.DefaultCheckTemperature,
		MaxTokens:   services.DefaultMaxTokens,
		Format:      services.FormatText,
	})
	if err != nil {
		return content.CheckResult{}, err
	}
	if strings.TrimSpace(resp) == "" {
		return content.CheckResult{}, retry.ErrEmptyResponse
	}

	result, err := c.ParseResult(subject, resp)
	if err != nil {
		return content.CheckResult{}, err
	}
	ok, err := c.IsAllChecked(result)
	if err != nil {
		return result, err
	}
	if !ok {
		return result, fmt.Errorf("%w: %s", ErrCheckFailed, failures(result, c.settings))
	}
	return result, nil
}

// ParseResult extracts the rubric JSON from a response. Every configured
// criterion needs both a mark and a reason, and the verdict must be present.
func (c *Checker) ParseResult(subject, resp string) (content.CheckResult, error) {
	var raw map[string]json.RawMessage
	if err := generator.DecodeJSON(resp, &raw); err != nil {
		return content.CheckResult{}, err
	}

	result := content.CheckResult{Subject: subject}
	for _, criterion := range c.criteria {
		v, ok := raw[criterion]
		if !ok {
			return content.CheckResult{}, fmt.Errorf("%w: %w %q", generator.ErrValidation, ErrMissingCriterion, criterion)
		}
		var score map[string]string
		if err := json.Unmarshal(v, &score); err != nil {
			return content.CheckResult{}, fmt.Errorf("%w: criterion %q is not a {%s, %s} object", generator.ErrValidation, criterion, markKey, reasonKey)
		}
		mark, reason := strings.TrimSpace(score[markKey]), strings.TrimSpace(score[reasonKey])
		if mark == "" || reason == "" {
			return content.CheckResult{}, fmt.Errorf("%w: criterion %q needs %s and %s", generator.ErrValidation, criterion, markKey, reasonKey)
		}
		result.Marks = append(result.Marks, content.Mark{Criterion: criterion, Mark: mark, Reason: reason})
	}

	verdict, err := verdictText(raw[storage.VerdictColumn])
	if err != nil {
		return content.CheckResult{}, err
	}
	result.Verdict = verdict
	return result, nil
}

// IsAllChecked reports whether every configured criterion carries a pass mark.
func (c *Checker) IsAllChecked(r content.CheckResult) (bool, error) {
	return IsAllChecked(r, c.criteria, c.settings)
}

// Save appends the result to the rubric table of area.
func (c *Checker) Save(area string, r content.CheckResult) error {
	return c.store.AppendCheck(c.kind, area, r, c.criteria)
}

// IsAllChecked is the standalone form used by readers of stored results.
func IsAllChecked(r content.CheckResult, criteria []string, s *settings.Settings) (bool, error) {
	marks := make(map[string]string, len(r.Marks))
	for _, m := range r.Marks {
		marks[m.Criterion] = m.Mark
	}
	all := true
	for _, criterion := range criteria {
		mark, ok := marks[criterion]
		if !ok {
			return false, fmt.Errorf("%w %q in %s", ErrMissingCriterion, criterion, r.Subject)
		}
		if !s.IsPass(mark) {
			all = false
		}
	}
	return all, nil
}

func failures(r content.CheckResult, s *settings.Settings) string {
	var parts []string
	for _, m := range r.Marks {
		if !s.IsPass(m.Mark) {
			parts = append(parts, fmt.Sprintf("%s: %s%s", m.Criterion, m.Mark, m.Reason))
		}
	}
	return strings.Join(parts, "; ")
}

// verdictText accepts the verdict as a string or as a mark/reason object.
func verdictText(v json.RawMessage) (string, error) {
	if len(v) == 0 {
		return "", fmt.Errorf("%w: %w %q", generator.ErrValidation, ErrMissingCriterion, storage.VerdictColumn)
	}
	var s string
	if json.Unmarshal(v, &s) == nil && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s), nil
	}
	var score map[string]string
	if json.Unmarshal(v, &score) == nil && score[markKey] != "" {
		return score[markKey] + score[reasonKey], nil
	}
	return "", fmt.Errorf("%w: %s is empty", generator.ErrValidation, storage.VerdictColumn)
}
