// Package normalizer maps raw statement records to canonical transactions:
// field resolution, amount and date parsing, label cleaning and rule-based
// categorization.
package normalizer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/parser"
)

// Direction tells whether money left or entered the account.
type Direction string

const (
	DirectionDebit   Direction = "debit"
	DirectionCredit  Direction = "credit"
	DirectionUnknown Direction = "unknown"
)

const DefaultCurrency = "EUR"

var (
	ErrRowPanic = errors.New("row processing panicked")
	ErrBlankRow = errors.New("row has no values")
)

// Transaction is a normalized statement line. Date and DateValue are ISO
// dates, empty when the source value could not be read.
type Transaction struct {
	Date           string           `json:"date"`
	DateValue      string           `json:"dateValue"`
	Label          string           `json:"label"`
	Amount         float64          `json:"amount"`
	Direction      Direction        `json:"direction"`
	Reference      string           `json:"reference,omitempty"`
	Balance        float64          `json:"balance"`
	Currency       string           `json:"currency"`
	Category       string           `json:"category"`
	SourceCategory string           `json:"sourceCategory,omitempty"`
	Raw            parser.RawRecord `json:"raw"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// MarshalJSON encodes empty dates as null.
func (t Transaction) MarshalJSON() ([]byte, error) {
	type plain Transaction
	return json.Marshal(struct {
		plain
		Date      *string `json:"date"`
		DateValue *string `json:"dateValue"`
	}{plain(t), nullable(t.Date), nullable(t.DateValue)})
}

// UnmarshalJSON accepts null dates.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	aux := struct {
		*plain
		Date      *string `json:"date"`
		DateValue *string `json:"dateValue"`
	}{plain: (*plain)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t.Date = deref(aux.Date)
	t.DateValue = deref(aux.DateValue)
	return nil
}

// DroppedRecord is a row that could not be normalized.
type DroppedRecord struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Result is the output of Normalize.
type Result struct {
	Transactions []Transaction
	Dropped      []DroppedRecord
}

// Normalizer converts RawRecords into Transactions. It holds no mutable
// state and can be shared between imports.
type Normalizer struct {
	global      catalog.AliasTable
	categorizer *Categorizer
	logger      *slog.Logger
}

// New creates a normalizer from the catalog's global aliases and rules.
func New(cat catalog.Catalog, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		global:      cat.GlobalAliases,
		categorizer: NewCategorizer(cat.CategoryRules),
		logger:      logger,
	}
}

// Categorizer returns the categorizer used for labels.
func (n *Normalizer) Categorizer() *Categorizer {
	return n.categorizer
}

// Normalize converts every record. A record that fails is logged and
// reported in Result.Dropped; the others are unaffected.
func (n *Normalizer) Normalize(records []parser.RawRecord, desc catalog.FormatDescriptor) Result {
	res := Result{Transactions: make([]Transaction, 0, len(records))}
	for _, rec := range records {
		tx, err := n.normalizeSafe(rec, desc)
		if err != nil {
			n.logger.Warn("dropping statement row",
				slog.String("format", desc.Name),
				slog.Int("line", rec.Line),
				slog.Any("error", err),
			)
			res.Dropped = append(res.Dropped, DroppedRecord{Line: rec.Line, Reason: err.Error()})
			continue
		}
		for _, w := range tx.Warnings {
			n.logger.Warn("degraded statement row",
				slog.String("format", desc.Name),
				slog.Int("line", rec.Line),
				slog.String("warning", w),
			)
		}
		res.Transactions = append(res.Transactions, tx)
	}
	return res
}

func (n *Normalizer) normalizeSafe(rec parser.RawRecord, desc catalog.FormatDescriptor) (tx Transaction, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRowPanic, p)
		}
	}()
	return n.NormalizeRecord(rec, desc)
}

// NormalizeRecord converts one record.
func (n *Normalizer) NormalizeRecord(rec parser.RawRecord, desc catalog.FormatDescriptor) (Transaction, error) {
	if err := rec.Validate(); err != nil {
		return Transaction{}, err
	}
	if rec.IsBlank() {
		return Transaction{}, ErrBlankRow
	}

	resolve := func(f catalog.Field) (string, bool) {
		return ResolveField(rec, f, desc, n.global)
	}

	tx := Transaction{
		Currency: DefaultCurrency,
		Raw:      rec,
	}

	if v, ok := resolve(catalog.FieldDate); ok {
		if iso, ok := ParseDate(v, desc.DateFormat); ok {
			tx.Date = iso
		} else {
			tx.Warnings = append(tx.Warnings, fmt.Sprintf("unparsable date %q", v))
		}
	}
	if v, ok := resolve(catalog.FieldDateValue); ok {
		if iso, ok := ParseDate(v, desc.DateFormat); ok {
			tx.DateValue = iso
		} else {
			tx.Warnings = append(tx.Warnings, fmt.Sprintf("unparsable value date %q", v))
		}
	}

	label, _ := resolve(catalog.FieldLabel)
	tx.Label = CleanLabel(label)

	tx.Amount, tx.Direction = n.resolveAmount(resolve, &tx.Warnings)

	if v, ok := resolve(catalog.FieldBalance); ok {
		tx.Balance = n.amount(v, "balance", &tx.Warnings)
	}
	if v, ok := resolve(catalog.FieldReference); ok {
		tx.Reference = v
	}
	if v, ok := resolve(catalog.FieldCurrency); ok {
		tx.Currency = strings.ToUpper(v)
	}
	if v, ok := resolve(catalog.FieldCategory); ok {
		tx.SourceCategory = v
	}

	tx.Category = n.categorizer.Categorize(tx.Label)
	return tx, nil
}

// resolveAmount applies debit, then credit, then a signed amount column.
func (n *Normalizer) resolveAmount(resolve func(catalog.Field) (string, bool), warnings *[]string) (float64, Direction) {
	if v, ok := resolve(catalog.FieldDebit); ok {
		return positiveZero(-math.Abs(n.amount(v, "debit", warnings))), DirectionDebit
	}
	if v, ok := resolve(catalog.FieldCredit); ok {
		return positiveZero(math.Abs(n.amount(v, "credit", warnings))), DirectionCredit
	}
	if v, ok := resolve(catalog.FieldAmount); ok {
		amount := positiveZero(n.amount(v, "amount", warnings))
		if amount < 0 {
			return amount, DirectionDebit
		}
		return amount, DirectionCredit
	}
	return 0, DirectionUnknown
}

func (n *Normalizer) amount(v, field string, warnings *[]string) float64 {
	d, err := ParseDecimal(v)
	if err != nil {
		*warnings = append(*warnings, fmt.Sprintf("unparsable %s %q", field, v))
		return 0
	}
	return d.InexactFloat64()
}

func positiveZero(f float64) float64 {
	if f == 0 {
		return 0
	}
	return f
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
