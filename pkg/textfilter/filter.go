package textfilter

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// WordFilter finds forbidden words in generated text.
// Text and words are NFKC-normalized and case-folded before matching, so
// full-width and half-width spellings of a word are treated alike.
type WordFilter struct {
	words      []string
	normalized []string
	fold       cases.Caser
}

// NewWordFilter creates a filter for the given words. Blank words are ignored.
func NewWordFilter(words []string) *WordFilter {
	f := &WordFilter{fold: cases.Fold()}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		f.words = append(f.words, w)
		f.normalized = append(f.normalized, f.normalize(w))
	}
	return f
}

func (f *WordFilter) normalize(s string) string {
	return f.fold.String(norm.NFKC.String(s))
}

// Find returns the first forbidden word contained in text.
func (f *WordFilter) Find(text string) (string, bool) {
	if len(f.words) == 0 {
		return "", false
	}
	n := f.normalize(text)
	for i, w := range f.normalized {
		if strings.Contains(n, w) {
			return f.words[i], true
		}
	}
	return "", false
}

// Contains checks if the text contains any forbidden word
func (f *WordFilter) Contains(text string) bool {
	_, found := f.Find(text)
	return found
}

// FindChar returns the first of chars present in text.
func FindChar(text string, chars []string) (string, bool) {
	for _, c := range chars {
		if c != "" && strings.Contains(text, c) {
			return c, true
		}
	}
	return "", false
}
