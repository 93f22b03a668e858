package sniffer

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Canonical encoding names.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingISO88591    = "iso-8859-1"
)

// DefaultEncodings is the candidate order used when the caller passes none.
var DefaultEncodings = []string{EncodingUTF8, EncodingWindows1252, EncodingISO88591}

// garbledMarkers are UTF-8 sequences read back through a single-byte code
// page. Finding one means the bytes were decoded with the wrong table.
var garbledMarkers = []string{"Ã©", "Ã¨", "Ãª", "Ã ", "Ã§", "Ã´", "Ã¹", "â‚¬"}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var knownEncodings = map[string]encoding.Encoding{
	EncodingUTF8:        unicode.UTF8,
	"utf8":              unicode.UTF8,
	EncodingWindows1252: charmap.Windows1252,
	"cp1252":            charmap.Windows1252,
	EncodingISO88591:    charmap.ISO8859_1,
	"latin1":            charmap.ISO8859_1,
	"iso-8859-15":       charmap.ISO8859_15,
}

// ResolveEncoding decodes data with the first candidate whose output looks
// clean. When every candidate looks garbled the UTF-8 decoding is returned.
// It never fails: text import always produces something.
func ResolveEncoding(data []byte, candidates ...string) (string, string) {
	if len(candidates) == 0 {
		candidates = DefaultEncodings
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	for _, name := range candidates {
		enc := lookupEncoding(name)
		if enc == nil {
			continue
		}
		text, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		if looksClean(string(text)) {
			return string(text), strings.ToLower(name)
		}
	}

	text, _ := unicode.UTF8.NewDecoder().Bytes(data)
	return string(text), EncodingUTF8
}

func lookupEncoding(name string) encoding.Encoding {
	key := strings.ToLower(strings.TrimSpace(name))
	if enc, ok := knownEncodings[key]; ok {
		return enc
	}
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil
	}
	return enc
}

func looksClean(text string) bool {
	if strings.ContainsRune(text, '\uFFFD') {
		return false
	}
	for _, marker := range garbledMarkers {
		if strings.Contains(text, marker) {
			return false
		}
	}
	return true
}
