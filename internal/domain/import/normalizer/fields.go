package normalizer

import (
	"strings"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/parser"
)

// ResolveField returns the value of field in rec. The descriptor's aliases
// are tried first against the exact header keys, then the global aliases
// case-insensitively. The first non-empty value wins.
func ResolveField(rec parser.RawRecord, field catalog.Field, desc catalog.FormatDescriptor, global catalog.AliasTable) (string, bool) {
	if v, ok := lookupDescriptor(rec, desc.HeaderAliases[field]); ok {
		return v, true
	}
	return lookupGlobal(rec, global[field])
}

// lookupDescriptor matches aliases against header keys exactly.
func lookupDescriptor(rec parser.RawRecord, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := rec.Lookup(alias); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// lookupGlobal matches aliases against every header key, ignoring case.
func lookupGlobal(rec parser.RawRecord, aliases []string) (string, bool) {
	for _, alias := range aliases {
		if v, ok := rec.LookupFold(alias); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}
