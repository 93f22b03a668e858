// Package catalog holds the static configuration of the statement importer:
// known bank export formats, the global header alias table and the ordered
// category rules. A Catalog is a plain value injected into the detector and
// the normalizer; nothing in this package keeps global mutable state.
package catalog

import (
	"errors"
	"fmt"
	"regexp"
)

// Field is a canonical transaction field name.
type Field string

const (
	FieldDate      Field = "date"
	FieldDateValue Field = "dateValue"
	FieldLabel     Field = "label"
	FieldAmount    Field = "amount"
	FieldDebit     Field = "debit"
	FieldCredit    Field = "credit"
	FieldBalance   Field = "balance"
	FieldReference Field = "reference"
	FieldCurrency  Field = "currency"
	FieldCategory  Field = "category"
)

// Fields is the canonical field order. Alias tables are always walked in
// this order, so it decides which field wins an ambiguous header.
var Fields = []Field{
	FieldDate,
	FieldDateValue,
	FieldLabel,
	FieldAmount,
	FieldDebit,
	FieldCredit,
	FieldBalance,
	FieldReference,
	FieldCurrency,
	FieldCategory,
}

// Date layout tags understood by the normalizer.
const (
	LayoutDMYSlash = "DD/MM/YYYY"
	LayoutDMYDash  = "DD-MM-YYYY"
	LayoutDMYDot   = "DD.MM.YYYY"
	LayoutISO      = "YYYY-MM-DD"
	LayoutMDYSlash = "MM/DD/YYYY"
	LayoutDMYShort = "DD/MM/YY"
)

// Separators lists the accepted field separators in tie-break order.
var Separators = []rune{';', ',', '\t', '|'}

var (
	ErrInvalidSeparator = errors.New("invalid separator")
	ErrEmptyAliasList   = errors.New("empty alias list")
	ErrUnknownField     = errors.New("unknown field")
)

// AliasTable maps a canonical field to the header spellings accepted for it.
type AliasTable map[Field][]string

// FormatDescriptor describes how to read one bank's export.
type FormatDescriptor struct {
	Name          string
	Separator     rune
	Encoding      string // informational, decoding happens before detection
	DateFormat    string
	HeaderAliases AliasTable
	SkipLines     int
	Quoted        bool
}

// Validate checks the descriptor invariants.
func (d FormatDescriptor) Validate() error {
	if !IsSeparator(d.Separator) {
		return fmt.Errorf("format %q: %w: %q", d.Name, ErrInvalidSeparator, d.Separator)
	}
	for field, aliases := range d.HeaderAliases {
		if !IsField(field) {
			return fmt.Errorf("format %q: %w: %s", d.Name, ErrUnknownField, field)
		}
		if len(aliases) == 0 {
			return fmt.Errorf("format %q field %s: %w", d.Name, field, ErrEmptyAliasList)
		}
	}
	return nil
}

// WithSkipLines returns a copy of d with SkipLines replaced. The alias table
// is shared; descriptors are never mutated after creation.
func (d FormatDescriptor) WithSkipLines(n int) FormatDescriptor {
	d.SkipLines = n
	return d
}

// CategoryRule assigns Category to labels matching Pattern.
type CategoryRule struct {
	Pattern  *regexp.Regexp
	Category string
}

// Catalog bundles everything the importer needs to read statements.
type Catalog struct {
	Formats       []FormatDescriptor
	GlobalAliases AliasTable
	CategoryRules []CategoryRule
}

// Validate checks every format descriptor of the catalog.
func (c Catalog) Validate() error {
	for _, f := range c.Formats {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	for field, aliases := range c.GlobalAliases {
		if !IsField(field) {
			return fmt.Errorf("global aliases: %w: %s", ErrUnknownField, field)
		}
		if len(aliases) == 0 {
			return fmt.Errorf("global aliases field %s: %w", field, ErrEmptyAliasList)
		}
	}
	return nil
}

// IsSeparator reports whether r is one of the accepted separators.
func IsSeparator(r rune) bool {
	for _, s := range Separators {
		if s == r {
			return true
		}
	}
	return false
}

// IsField reports whether f is a canonical field.
func IsField(f Field) bool {
	for _, known := range Fields {
		if known == f {
			return true
		}
	}
	return false
}
