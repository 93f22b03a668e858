// Package sniffer resolves the text encoding of a statement file and detects
// which bank export format it follows: header row, separator and the
// descriptor used to read the rest of the file.
package sniffer

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
)

const (
	// headerScanLines bounds the search for the header row.
	headerScanLines = 5
	// minKnownScore is the score a catalog entry needs to be selected.
	minKnownScore = 3

	GenericFormatName = "Format personnalisé"
	UnknownFormatName = "Inconnu"
)

var headerKeywords = ahocorasick.NewStringMatcher([]string{"date", "label", "amount"})

// Detection is the outcome of format detection for one file.
type Detection struct {
	Descriptor  catalog.FormatDescriptor
	HeaderIndex int
	Separator   rune
	Headers     []string
	Score       int
	Known       bool // Descriptor comes from the catalog
	Fingerprint string
}

// SplitLines splits text on LF or CRLF and drops blank lines.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// FindHeaderLine returns the index of the first of the leading lines that
// mentions a date, label or amount column, or 0 when none does.
func FindHeaderLine(lines []string) int {
	for i, line := range lines {
		if i >= headerScanLines {
			break
		}
		if len(headerKeywords.MatchThreadSafe([]byte(strings.ToLower(line)))) > 0 {
			return i
		}
	}
	return 0
}

// DetectSeparator returns the most frequent candidate separator in line.
// Ties go to the earlier entry of catalog.Separators, so ';' wins by default.
func DetectSeparator(line string) rune {
	best := catalog.Separators[0]
	bestCount := 0
	for _, sep := range catalog.Separators {
		if n := strings.Count(line, string(sep)); n > bestCount {
			best = sep
			bestCount = n
		}
	}
	return best
}

// SplitHeader splits a header line into trimmed column names.
func SplitHeader(line string, sep rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	fields, err := r.Read()
	if err != nil {
		fields = strings.Split(line, string(sep))
	}
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = normalizeHeader(f)
	}
	return headers
}

// ScoreFormat rates how well desc fits a header line: 2 points for the
// separator and 1 per canonical field with an alias among the headers.
func ScoreFormat(desc catalog.FormatDescriptor, sep rune, headers []string) int {
	score := 0
	if desc.Separator == sep {
		score += 2
	}
	for _, field := range catalog.Fields {
		if hasAlias(desc.HeaderAliases[field], headers) {
			score++
		}
	}
	return score
}

// DetectFormat picks the best catalog descriptor for text, or synthesizes a
// generic one when no entry reaches the threshold. A descriptor with its own
// SkipLines is scored against that line instead of the detected header.
func DetectFormat(text string, cat catalog.Catalog) Detection {
	lines := SplitLines(text)
	detected := readHeader(lines, FindHeaderLine(lines))

	best, bestIdx, bestScore := detected, -1, 0
	for i, desc := range cat.Formats {
		h := detected
		if desc.SkipLines > 0 && desc.SkipLines != detected.index {
			h = readHeader(lines, desc.SkipLines)
		}
		s := ScoreFormat(desc, h.sep, h.headers)
		if s > bestScore || (s == bestScore && bestIdx >= 0 && prefersQuoted(h.quoted, desc, cat.Formats[bestIdx])) {
			best, bestIdx, bestScore = h, i, s
		}
	}

	if bestIdx >= 0 && bestScore >= minKnownScore {
		desc := cat.Formats[bestIdx].WithSkipLines(best.index)
		if best.quoted {
			desc.Quoted = true
		}
		det := best.detection()
		det.Descriptor = desc
		det.Score = bestScore
		det.Known = true
		return det
	}

	det := detected.detection()
	det.Descriptor = SynthesizeDescriptor(detected.headers, detected.sep, cat.GlobalAliases).WithSkipLines(detected.index)
	det.Score = bestScore
	return det
}

// headerLine is a candidate header row of a file.
type headerLine struct {
	index   int
	sep     rune
	headers []string
	quoted  bool
}

func readHeader(lines []string, idx int) headerLine {
	line := ""
	if idx < len(lines) {
		line = lines[idx]
	}
	h := headerLine{index: idx, sep: DetectSeparator(line)}
	if line != "" {
		h.headers = SplitHeader(line, h.sep)
		h.quoted = IsQuotedLine(line, h.sep)
	}
	return h
}

func (h headerLine) detection() Detection {
	return Detection{
		HeaderIndex: h.index,
		Separator:   h.sep,
		Headers:     h.headers,
		Fingerprint: Fingerprint(h.headers),
	}
}

// IsQuotedLine reports whether every non-empty field of line is wrapped in
// double quotes.
func IsQuotedLine(line string, sep rune) bool {
	seen := false
	for _, f := range strings.Split(line, string(sep)) {
		f = strings.TrimSpace(strings.TrimPrefix(f, "\uFEFF"))
		if f == "" {
			continue
		}
		if len(f) < 2 || f[0] != '"' || f[len(f)-1] != '"' {
			return false
		}
		seen = true
	}
	return seen
}

// prefersQuoted breaks a score tie in favour of the descriptor whose
// quoting matches the header line.
func prefersQuoted(quoted bool, candidate, best catalog.FormatDescriptor) bool {
	return candidate.Quoted == quoted && best.Quoted != quoted
}

// SynthesizeDescriptor maps each header to the first canonical field, in
// catalog.Fields order, having a global alias contained in the header.
// Headers that match nothing stay unmapped.
func SynthesizeDescriptor(headers []string, sep rune, global catalog.AliasTable) catalog.FormatDescriptor {
	aliases := catalog.AliasTable{}
	for _, header := range headers {
		if header == "" {
			continue
		}
		if field, ok := matchGlobal(header, global); ok {
			aliases[field] = append(aliases[field], header)
		}
	}

	name := GenericFormatName
	if len(aliases) == 0 {
		name = UnknownFormatName
	}
	return catalog.FormatDescriptor{
		Name:          name,
		Separator:     sep,
		DateFormat:    catalog.LayoutDMYSlash,
		HeaderAliases: aliases,
		Quoted:        true,
	}
}

// Fingerprint hashes the normalized header names so repeat uploads of the
// same layout can be grouped.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

func matchGlobal(header string, global catalog.AliasTable) (catalog.Field, bool) {
	lower := strings.ToLower(header)
	for _, field := range catalog.Fields {
		for _, alias := range global[field] {
			if alias != "" && strings.Contains(lower, strings.ToLower(alias)) {
				return field, true
			}
		}
	}
	return "", false
}

func hasAlias(aliases, headers []string) bool {
	for _, alias := range aliases {
		for _, h := range headers {
			if strings.EqualFold(strings.TrimSpace(alias), strings.TrimSpace(h)) {
				return true
			}
		}
	}
	return false
}

func normalizeHeader(h string) string {
	h = strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))
	h = strings.Trim(h, `"'`)
	return strings.TrimSpace(h)
}
