package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
)

const isoLayout = "2006-01-02"

// datePattern recognizes one layout. The capture groups hold day, month and
// year in the positions given by day, month and year.
type datePattern struct {
	layout string
	re     *regexp.Regexp

	day, month, year int
}

// datePatterns is tried in order and the first valid match wins. The
// day-first slash layout precedes the month-first one, so an ambiguous
// 05/03/2024 is always read as 5 March.
var datePatterns = []datePattern{
	{catalog.LayoutDMYSlash, regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), 1, 2, 3},
	{catalog.LayoutDMYDash, regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`), 1, 2, 3},
	{catalog.LayoutDMYDot, regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`), 1, 2, 3},
	{catalog.LayoutISO, regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`), 3, 2, 1},
	{catalog.LayoutMDYSlash, regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), 2, 1, 3},
	{catalog.LayoutDMYShort, regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{2})$`), 1, 2, 3},
}

// freeFormLayouts are tried when no pattern matches.
var freeFormLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"02 Jan 2006",
	"2 January 2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate converts s to an ISO YYYY-MM-DD date. The layout hint is
// accepted for callers that carry one but does not change the pattern
// order. It returns false when s is not a date.
func ParseDate(s string, hint string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		day, _ := strconv.Atoi(m[p.day])
		month, _ := strconv.Atoi(m[p.month])
		year, _ := strconv.Atoi(m[p.year])
		if len(m[p.year]) == 2 {
			year = expandYear(year)
		}
		if iso, ok := calendarDate(year, month, day); ok {
			return iso, true
		}
	}

	for _, layout := range freeFormLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoLayout), true
		}
	}
	return "", false
}

// expandYear maps two-digit years above 50 to 19xx and the rest to 20xx.
func expandYear(yy int) int {
	if yy > 50 {
		return 1900 + yy
	}
	return 2000 + yy
}

func calendarDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 {
		return "", false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return "", false
	}
	return t.Format(isoLayout), true
}
