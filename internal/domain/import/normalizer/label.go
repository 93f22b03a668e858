package normalizer

import (
	"regexp"
	"strings"
)

var (
	asteriskRuns = regexp.MustCompile(`\*+`)
	whitespace   = regexp.MustCompile(`\s+`)
	trailingDash = regexp.MustCompile(`\s+-\s*$`)
)

// CleanLabel removes asterisk runs, collapses whitespace and drops a
// trailing " - " left by some exports.
func CleanLabel(s string) string {
	s = asteriskRuns.ReplaceAllString(s, " ")
	s = whitespace.ReplaceAllString(s, " ")
	s = trailingDash.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
