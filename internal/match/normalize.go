// Package match implements the fuzzy name matching used to screen catalog
// submissions and to group existing catalog records into duplicate sets.
package match

import (
	"fmt"
	"strings"
	"unicode"
)

// Normalize produces the comparison key for a free-text name: lower-cased,
// apostrophes unified and stripped along with all other punctuation,
// whitespace collapsed to single spaces, trimmed. The result is safe to use
// as a map key for candidate bucketing because the function depends on no
// locale or collation state.
func Normalize(input string) string {
	lowered := strings.ToLower(input)
	if lowered == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(lowered))
	lastSpace := true
	for _, r := range lowered {
		switch {
		case r == '\'' || r == '‘' || r == '’':
			// Both straight and typographic apostrophes drop out entirely,
			// so "Kids' Art" and "Kids’ Art" share one key.
			continue
		case unicode.IsSpace(r):
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// Cache memoizes Normalize for the lifetime of one sweep. It is an explicit
// object passed into sweep calls rather than process-wide state, so callers
// stay reentrant and testable.
type Cache struct {
	keys map[string]string
}

func NewCache() *Cache {
	return &Cache{keys: make(map[string]string)}
}

func (c *Cache) Normalize(input string) string {
	if c == nil || c.keys == nil {
		return Normalize(input)
	}
	if key, ok := c.keys[input]; ok {
		return key
	}
	key := Normalize(input)
	c.keys[input] = key
	return key
}

// Candidate is one side of a pairwise comparison: the raw name (used for
// word-prefix matching), its normalized key, and the record's category tags.
type Candidate struct {
	RawName    string
	Key        string
	Categories []string
}

// InputError reports a malformed candidate rejected before scoring.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid candidate: %s", e.Reason)
}

// NewCandidate builds a Candidate from a display name and category tags.
// A name that is blank (or normalizes to nothing but still blank raw) is
// rejected rather than silently coerced.
func NewCandidate(name string, categories []string) (Candidate, error) {
	return NewCandidateCached(name, categories, nil)
}

// NewCandidateCached is NewCandidate with an optional per-sweep Cache.
func NewCandidateCached(name string, categories []string, cache *Cache) (Candidate, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Candidate{}, &InputError{Reason: "name is required"}
	}

	key := cache.Normalize(trimmed)
	cleaned := make([]string, 0, len(categories))
	seen := make(map[string]struct{}, len(categories))
	for _, category := range categories {
		tag := strings.ToLower(strings.TrimSpace(category))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		cleaned = append(cleaned, tag)
	}

	return Candidate{
		RawName:    trimmed,
		Key:        key,
		Categories: cleaned,
	}, nil
}
