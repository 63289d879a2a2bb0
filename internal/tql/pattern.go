package tql

import (
	"regexp"
	"strings"
)

// Pattern is a query literal compiled to a fully anchored wildcard match:
// '*' matches any sequence, everything else matches itself.
type Pattern struct {
	literal  string
	foldCase bool
	anchored string
	re       *regexp.Regexp
}

// NewPattern compiles literal. foldCase selects case-insensitive matching.
func NewPattern(literal string, foldCase bool) Pattern {
	parts := strings.Split(literal, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	anchored := "^" + strings.Join(parts, ".*") + "$"
	flags := "(?s)"
	if foldCase {
		flags = "(?is)"
	}
	return Pattern{
		literal:  literal,
		foldCase: foldCase,
		anchored: anchored,
		re:       regexp.MustCompile(flags + anchored),
	}
}

// Match reports whether s matches the pattern from start to end.
func (p Pattern) Match(s string) bool {
	return p.re.MatchString(s)
}

// Literal returns the text the pattern was written as in the query.
func (p Pattern) Literal() string {
	return p.literal
}

// FoldCase reports whether matching ignores case.
func (p Pattern) FoldCase() bool {
	return p.foldCase
}

// String returns the anchored form, e.g. ^Git.*$ for Git*.
func (p Pattern) String() string {
	return p.anchored
}
