package prompts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Template is prompt text with {placeholder} fields. "{{" and "}}" are literal braces.
type Template struct {
	Name string
	Text string
}

// Load reads a template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return &Template{Name: filepath.Base(path), Text: string(data)}, nil
}

// Fill substitutes vars into the template. Every placeholder must have a value.
func (t *Template) Fill(vars map[string]string) (string, error) {
	out, err := expand(t.Text, vars, true)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", t.Name, err)
	}
	return out, nil
}

// Placeholders lists the distinct placeholder names in order of first use.
func (t *Template) Placeholders() ([]string, error) {
	return Placeholders(t.Text)
}

// Render substitutes vars and replaces unknown placeholders with "".
func Render(text string, vars map[string]string) string {
	out, err := expand(text, vars, false)
	if err != nil {
		return text
	}
	return out
}

// Placeholders lists the distinct placeholder names found in text.
func Placeholders(text string) ([]string, error) {
	var names []string
	seen := map[string]bool{}
	err := scan(text, func(literal string) {}, func(name string) error {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return nil
	})
	return names, err
}

// ValidatePlaceholders fails if text has malformed braces or a placeholder not in allowed.
func ValidatePlaceholders(text string, allowed ...string) error {
	names, err := Placeholders(text)
	if err != nil {
		return err
	}
	for _, name := range names {
		ok := false
		for _, a := range allowed {
			if name == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("unexpected placeholder {%s}", name)
		}
	}
	return nil
}

func expand(text string, vars map[string]string, strict bool) (string, error) {
	var b strings.Builder
	b.Grow(len(text))
	err := scan(text, func(literal string) {
		b.WriteString(literal)
	}, func(name string) error {
		v, ok := vars[name]
		if !ok && strict {
			return fmt.Errorf("missing value for {%s}", name)
		}
		b.WriteString(v)
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// scan walks text, calling literal for plain runs and field for each placeholder.
func scan(text string, literal func(string), field func(string) error) error {
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				literal(text[start:i] + "{")
				i++
				start = i + 1
				continue
			}
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return fmt.Errorf("unclosed '{' at offset %d", i)
			}
			name := text[i+1 : i+1+end]
			if !isIdent(name) {
				return fmt.Errorf("invalid placeholder %q at offset %d", name, i)
			}
			literal(text[start:i])
			if err := field(name); err != nil {
				return err
			}
			i += end + 1
			start = i + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				literal(text[start:i] + "}")
				i++
				start = i + 1
				continue
			}
			return fmt.Errorf("single '}' at offset %d", i)
		}
	}
	literal(text[start:])
	return nil
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
