package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jwebster45206/story-forge/internal/retry"
	"github.com/jwebster45206/story-forge/internal/services"
	"github.com/jwebster45206/story-forge/internal/settings"
	"github.com/jwebster45206/story-forge/pkg/prompts"
	"github.com/jwebster45206/story-forge/pkg/textfilter"
)

var (
	// ErrExtraction means the response held no parseable payload.
	ErrExtraction = errors.New("extraction failed")
	// ErrValidation means the payload broke a content rule.
	ErrValidation = errors.New("validation failed")
)

var jsonBlock = regexp.MustCompile("(?s)```json\\n(.*?)```")

// ExtractJSON returns the body of the first ```json fenced block with
// trailing commas removed. A response that is itself a bare JSON object is
// accepted as-is, which is what backends return in JSON response mode.
func ExtractJSON(response string) ([]byte, error) {
	var body string
	if m := jsonBlock.FindStringSubmatch(response); m != nil {
		body = strings.TrimSpace(m[1])
	} else {
		trimmed := strings.TrimSpace(response)
		if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
			return nil, fmt.Errorf("%w: no ```json block in response", ErrExtraction)
		}
		body = trimmed
	}
	return stripTrailingCommas([]byte(body)), nil
}

// DecodeJSON extracts the fenced block and unmarshals it into v.
func DecodeJSON(response string, v any) error {
	data, err := ExtractJSON(response)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrExtraction, err)
	}
	return nil
}

// stripTrailingCommas removes commas that directly precede '}' or ']',
// ignoring commas inside string literals.
func stripTrailingCommas(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	inString := false
	escaped := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out.WriteByte(c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			out.WriteByte(c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(data) && (data[j] == ' ' || data[j] == '\t' || data[j] == '\n' || data[j] == '\r') {
				j++
			}
			if j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}

// orderedValues decodes a flat JSON object and returns its values in document order.
func orderedValues(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected a JSON object")
	}
	var values []string
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = strings.TrimSpace(string(raw))
		}
		values = append(values, s)
	}
	return values, nil
}

// base holds what every generator shares: the backend, its template and the NG-word filter.
type base struct {
	llm      services.LLMService
	tmpl     *prompts.Template
	settings *settings.Settings
	ngWords  *textfilter.WordFilter
	logger   *slog.Logger
}

func newBase(llm services.LLMService, tmpl *prompts.Template, s *settings.Settings, logger *slog.Logger) base {
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		llm:      llm,
		tmpl:     tmpl,
		settings: s,
		ngWords:  textfilter.NewWordFilter(s.NGWords),
		logger:   logger,
	}
}

// complete fills the template and calls the backend. A blank reply is ErrEmptyResponse.
func (b *base) complete(ctx context.Context, vars *prompts.Builder, temperature float64, format services.ResponseFormat) (string, error) {
	prompt, err := vars.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build prompt %s: %w", b.tmpl.Name, err)
	}
	b.logger.Debug("Prompt built", "template", b.tmpl.Name, "prompt", prompt)

	resp, err := b.llm.GenerateResponse(ctx, services.Request{
		Prompt:      prompt,
		Temperature: temperature,
		MaxTokens:   services.DefaultMaxTokens,
		Format:      format,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp) == "" {
		return "", retry.ErrEmptyResponse
	}
	b.logger.Debug("Response received", "template", b.tmpl.Name, "length", len(resp))
	return resp, nil
}

// checkNG fails validation when text holds an NG word.
func (b *base) checkNG(field, text string) error {
	if w, found := b.ngWords.Find(text); found {
		return fmt.Errorf("%w: %s contains NG word %q", ErrValidation, field, w)
	}
	return nil
}
