package textmatch

import (
	"strings"

	"golang.org/x/text/cases"
)

// Matcher performs case-insensitive substring matching using Unicode case
// folding. Create one per goroutine.
type Matcher struct {
	term  string
	caser cases.Caser
}

// New builds a Matcher for search. An empty search matches everything.
func New(search string) *Matcher {
	caser := cases.Fold()
	return &Matcher{
		term:  caser.String(strings.TrimSpace(search)),
		caser: caser,
	}
}

// Empty reports whether the matcher accepts every input
func (m *Matcher) Empty() bool {
	return m.term == ""
}

// Match reports whether s contains the search term
func (m *Matcher) Match(s string) bool {
	if m.term == "" {
		return true
	}
	if s == "" {
		return false
	}
	return strings.Contains(m.caser.String(s), m.term)
}

// MatchAny reports whether any field contains the search term
func (m *Matcher) MatchAny(fields ...string) bool {
	if m.term == "" {
		return true
	}
	for _, f := range fields {
		if m.Match(f) {
			return true
		}
	}
	return false
}
