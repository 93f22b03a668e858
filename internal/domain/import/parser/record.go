package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrRecordShape = errors.New("record headers and values differ in length")

// RawRecord is one data line zipped against the header row. Keys keep the
// spelling and order of the source file.
type RawRecord struct {
	Headers []string
	Values  []string
	Line    int // 1-based position among the non-empty source lines or rows
}

// NewRawRecord zips values against headers. Missing trailing values become
// empty strings and extra values are ignored.
func NewRawRecord(headers, values []string, line int) RawRecord {
	vals := make([]string, len(headers))
	copy(vals, values)
	return RawRecord{Headers: headers, Values: vals, Line: line}
}

// Len returns the number of columns.
func (r RawRecord) Len() int {
	return len(r.Headers)
}

// Validate reports whether the record is well formed.
func (r RawRecord) Validate() error {
	if len(r.Headers) != len(r.Values) {
		return fmt.Errorf("%w: %d headers, %d values", ErrRecordShape, len(r.Headers), len(r.Values))
	}
	return nil
}

// Lookup returns the value of the first column named exactly key.
func (r RawRecord) Lookup(key string) (string, bool) {
	for i, h := range r.Headers {
		if h == key && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return "", false
}

// LookupFold is Lookup with case-insensitive, whitespace-trimmed keys.
func (r RawRecord) LookupFold(key string) (string, bool) {
	key = strings.TrimSpace(key)
	for i, h := range r.Headers {
		if strings.EqualFold(strings.TrimSpace(h), key) && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return "", false
}

// Get returns the value for key or "".
func (r RawRecord) Get(key string) string {
	v, _ := r.Lookup(key)
	return v
}

// IsBlank reports whether every value is empty after trimming.
func (r RawRecord) IsBlank() bool {
	for _, v := range r.Values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the record as an object with keys in source order.
func (r RawRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, h := range r.Headers {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(h)
		if err != nil {
			return nil, err
		}
		val := ""
		if i < len(r.Values) {
			val = r.Values[i]
		}
		value, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of string values, keeping key order.
func (r *RawRecord) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = RawRecord{}
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("raw record: expected object")
	}

	var rec RawRecord
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("raw record %q: %w", key, err)
		}
		rec.Headers = append(rec.Headers, key)
		rec.Values = append(rec.Values, value)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*r = rec
	return nil
}
