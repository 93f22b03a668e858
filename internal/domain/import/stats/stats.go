// Package stats folds normalized transactions into an import summary.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/normalizer"
)

// Bucket counts transactions and sums their amounts.
type Bucket struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
}

// Period is the date range covered by an import.
type Period struct {
	Start    string `json:"start,omitempty"`
	End      string `json:"end,omitempty"`
	SpanDays int    `json:"spanDays"`
}

// Summary aggregates one import. Credits and Debits sum magnitudes, Balance
// and category sums are signed.
type Summary struct {
	Total      int               `json:"total"`
	Credits    Bucket            `json:"credits"`
	Debits     Bucket            `json:"debits"`
	Balance    float64           `json:"balance"`
	Categories map[string]Bucket `json:"categories"`
	Period     Period            `json:"period"`
}

// CategoryTotal is one category line of a summary.
type CategoryTotal struct {
	Category string
	Count    int
	Sum      float64
}

type acc struct {
	count int
	sum   decimal.Decimal
}

// Summarize computes the summary in a single pass. txs is not modified.
func Summarize(txs []normalizer.Transaction) Summary {
	var (
		credits, debits acc
		balance         = decimal.Zero
		categories      = map[string]*acc{}
		start, end      string
	)

	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount)
		balance = balance.Add(amount)

		switch {
		case amount.IsNegative():
			debits.add(amount.Abs())
		case amount.IsPositive():
			credits.add(amount)
		case tx.Direction == normalizer.DirectionDebit:
			debits.add(decimal.Zero)
		case tx.Direction == normalizer.DirectionCredit:
			credits.add(decimal.Zero)
		}

		c, ok := categories[tx.Category]
		if !ok {
			c = &acc{}
			categories[tx.Category] = c
		}
		c.add(amount)

		if tx.Date != "" {
			if start == "" || tx.Date < start {
				start = tx.Date
			}
			if end == "" || tx.Date > end {
				end = tx.Date
			}
		}
	}

	s := Summary{
		Total:      len(txs),
		Credits:    credits.bucket(),
		Debits:     debits.bucket(),
		Balance:    balance.InexactFloat64(),
		Categories: make(map[string]Bucket, len(categories)),
		Period:     Period{Start: start, End: end, SpanDays: SpanDays(start, end)},
	}
	for name, c := range categories {
		s.Categories[name] = c.bucket()
	}
	return s
}

// CategoryRows returns the category buckets sorted by name.
func CategoryRows(s Summary) []CategoryTotal {
	rows := make([]CategoryTotal, 0, len(s.Categories))
	for name, b := range s.Categories {
		rows = append(rows, CategoryTotal{Category: name, Count: b.Count, Sum: b.Sum})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Category < rows[j].Category })
	return rows
}

func (a *acc) add(d decimal.Decimal) {
	a.count++
	a.sum = a.sum.Add(d)
}

func (a acc) bucket() Bucket {
	return Bucket{Count: a.count, Sum: a.sum.InexactFloat64()}
}

// SpanDays is the number of days between two ISO dates, 0 when either is missing.
func SpanDays(start, end string) int {
	if start == "" || end == "" {
		return 0
	}
	s, err := time.Parse("2006-01-02", start)
	if err != nil {
		return 0
	}
	e, err := time.Parse("2006-01-02", end)
	if err != nil {
		return 0
	}
	return int(math.Ceil(e.Sub(s).Hours() / 24))
}
