// Package parser turns decoded statement text, or spreadsheet rows, into
// RawRecords zipped against the header row.
package parser

import (
	"encoding/csv"
	"strings"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/sniffer"
)

// ParseText splits text into records using desc. The first desc.SkipLines
// non-empty lines are skipped and the next one is the header row. Every
// following non-empty line yields a record, even one holding only
// separators. Without desc.Quoted a pair of quotes around a value is removed.
func ParseText(text string, desc catalog.FormatDescriptor) []RawRecord {
	lines := sniffer.SplitLines(text)
	skip := desc.SkipLines
	if skip < 0 {
		skip = 0
	}
	if skip >= len(lines) {
		return nil
	}

	headers := cleanHeaders(SplitFields(lines[skip], desc.Separator, desc.Quoted))

	records := make([]RawRecord, 0, len(lines)-skip-1)
	for i := skip + 1; i < len(lines); i++ {
		fields := SplitFields(lines[i], desc.Separator, desc.Quoted)
		for j := range fields {
			if desc.Quoted {
				fields[j] = strings.TrimSpace(fields[j])
			} else {
				fields[j] = unquote(fields[j])
			}
		}
		records = append(records, NewRawRecord(headers, fields, i+1))
	}
	return records
}

// SplitFields splits one line on sep. With quoted set, separators inside
// double quotes are kept and a doubled quote is a literal quote.
func SplitFields(line string, sep rune, quoted bool) []string {
	if sep == 0 {
		sep = ';'
	}
	if !quoted {
		return strings.Split(line, string(sep))
	}

	r := csv.NewReader(strings.NewReader(line))
	r.Comma = sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	fields, err := r.Read()
	if err != nil {
		return strings.Split(line, string(sep))
	}
	return fields
}

// ParseRows zips tabular rows, as read from a spreadsheet, the same way
// ParseText zips lines. Leading empty rows are skipped; the first non-empty
// row is the header.
func ParseRows(rows [][]string) []RawRecord {
	start := 0
	for start < len(rows) && rowIsBlank(rows[start]) {
		start++
	}
	if start >= len(rows) {
		return nil
	}

	headers := cleanHeaders(rows[start])

	records := make([]RawRecord, 0, len(rows)-start-1)
	for i := start + 1; i < len(rows); i++ {
		cells := make([]string, len(rows[i]))
		for j, c := range rows[i] {
			cells[j] = strings.TrimSpace(c)
		}
		rec := NewRawRecord(headers, cells, i+1)
		if rec.IsBlank() {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Headers returns the cleaned header row of rows, as ParseRows sees it.
func Headers(rows [][]string) []string {
	for _, row := range rows {
		if !rowIsBlank(row) {
			return cleanHeaders(row)
		}
	}
	return nil
}

func cleanHeaders(fields []string) []string {
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = unquote(strings.TrimPrefix(f, "\uFEFF"))
	}
	return headers
}

// unquote trims v and removes one pair of surrounding double quotes.
func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = strings.TrimSpace(v[1 : len(v)-1])
	}
	return v
}

func rowIsBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
