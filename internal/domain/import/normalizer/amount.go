package normalizer

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAmount   = errors.New("empty amount")
	ErrInvalidAmount = errors.New("invalid amount")
)

var (
	currencySymbols = strings.NewReplacer("€", "", "$", "", "£", "")
	currencyCodes   = regexp.MustCompile(`(?i)EUR|USD|GBP`)
)

// ParseAmount reads a French or English formatted amount. Anything that
// cannot be read yields 0.
func ParseAmount(s string) float64 {
	d, err := ParseDecimal(s)
	if err != nil {
		return 0
	}
	return d.InexactFloat64()
}

// ParseDecimal is ParseAmount with an error for empty or unreadable input.
//
// Separators are disambiguated as follows: a lone comma is the decimal
// mark; a lone dot already is; when both appear the later one is the
// decimal mark and the others are grouping; several commas alone are
// grouping; several dots alone are grouping and are removed.
func ParseDecimal(s string) (decimal.Decimal, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = currencySymbols.Replace(s)
	s = currencyCodes.ReplaceAllString(s, "")
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}

	commas := strings.Count(s, ",")
	dots := strings.Count(s, ".")

	switch {
	case commas == 1 && dots == 0:
		s = strings.Replace(s, ",", ".", 1)
	case dots == 1 && commas == 0:
	case commas > 0 && dots > 0:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case commas > 1:
		s = strings.ReplaceAll(s, ",", "")
	case dots > 1:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}

	s = strings.TrimPrefix(s, "+")
	// decimal accepts exponents; a statement cell never uses them
	if strings.ContainsAny(s, "eE") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
