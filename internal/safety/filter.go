// Package safety provides the coarse denylist screen applied to event text.
// It is a substring check, not semantic moderation.
package safety

import "strings"

// Filter rejects text containing any of its denylisted terms. The term list
// is injected at construction and never mutated, so a Filter is safe to
// share across the run.
type Filter struct {
	terms []string
}

// NewFilter creates a filter over a denylist. Terms are lowercased once.
func NewFilter(terms []string) *Filter {
	lowered := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}

	return &Filter{terms: lowered}
}

// IsSafe reports whether the concatenated title and description contain no
// denylisted term. Matching is case-insensitive substring containment.
func (f *Filter) IsSafe(title, description string) bool {
	text := strings.ToLower(title + "\n" + description)

	for _, term := range f.terms {
		if strings.Contains(text, term) {
			return false
		}
	}

	return true
}
