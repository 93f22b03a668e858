// Package export renders normalized transactions as CSV for French
// spreadsheet users: semicolon separated, comma decimal mark.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/stats"
	"github.com/FACorreiaa/orixis-statements/pkg/money"
)

// Header is the column row of the transaction export.
var Header = []string{"Date", "Date valeur", "Libellé", "Montant", "Type", "Catégorie", "Référence", "Solde"}

// WriteCSV writes txs with every field quoted.
func WriteCSV(w io.Writer, txs []normalizer.Transaction) error {
	if err := writeQuoted(w, Header); err != nil {
		return err
	}
	for _, tx := range txs {
		row := []string{
			tx.Date,
			tx.DateValue,
			tx.Label,
			FormatAmount(tx.Amount),
			directionLabel(tx.Direction),
			tx.Category,
			tx.Reference,
			FormatAmount(tx.Balance),
		}
		if err := writeQuoted(w, row); err != nil {
			return err
		}
	}
	return nil
}

// CSV returns the export of txs as a string.
func CSV(txs []normalizer.Transaction) string {
	var buf bytes.Buffer
	_ = WriteCSV(&buf, txs)
	return buf.String()
}

type categoryRow struct {
	Category string `csv:"Catégorie"`
	Count    int    `csv:"Nombre"`
	Total    string `csv:"Total"`
}

// WriteCategorySummary writes one line per category of s, sorted by name.
func WriteCategorySummary(w io.Writer, s stats.Summary) error {
	totals := stats.CategoryRows(s)
	rows := make([]*categoryRow, 0, len(totals))
	for _, t := range totals {
		rows = append(rows, &categoryRow{Category: t.Category, Count: t.Count, Total: FormatAmount(t.Sum)})
	}

	cw := csv.NewWriter(w)
	cw.Comma = ';'
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("marshal category summary: %w", err)
	}
	cw.Flush()
	return cw.Error()
}

// FormatAmount renders f in euro cents with a comma decimal mark.
func FormatAmount(f float64) string {
	return strings.Replace(money.NewFromFloat(f, money.EUR).String(), ".", ",", 1)
}

func directionLabel(d normalizer.Direction) string {
	switch d {
	case normalizer.DirectionDebit:
		return "Débit"
	case normalizer.DirectionCredit:
		return "Crédit"
	default:
		return ""
	}
}

func writeQuoted(w io.Writer, fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(f, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}
