// Package repository persists import jobs and their normalized transactions
// in PostgreSQL.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/account"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/stats"
	"github.com/FACorreiaa/orixis-statements/pkg/money"
)

var ErrNotFound = errors.New("import not found")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// DB is the subset of pgxpool.Pool used by the repository.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Import is a persisted import job with its transactions.
type Import struct {
	ID           uuid.UUID
	Filename     string
	Format       string
	KnownFormat  bool
	Encoding     string
	Fingerprint  string
	Currency     string
	Dropped      int
	AccountHint  *account.Hint
	CreatedAt    time.Time
	Summary      stats.Summary
	Transactions []normalizer.Transaction
}

// ImportSummary is one row of the import history.
type ImportSummary struct {
	ID          uuid.UUID     `json:"id"`
	Filename    string        `json:"filename"`
	Format      string        `json:"format"`
	KnownFormat bool          `json:"knownFormat"`
	Total       int           `json:"total"`
	Dropped     int           `json:"dropped"`
	Credits     float64       `json:"credits"`
	Debits      float64       `json:"debits"`
	Balance     float64       `json:"balance"`
	Period      stats.Period  `json:"period"`
	AccountHint *account.Hint `json:"accountInfo,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// ImportRepository defines the persistence operations of the import service
type ImportRepository interface {
	SaveImport(ctx context.Context, imp *Import) error
	GetImport(ctx context.Context, id uuid.UUID) (*Import, error)
	ListImports(ctx context.Context, limit, offset int) ([]ImportSummary, error)
	DeleteImport(ctx context.Context, id uuid.UUID) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresImportRepository implements ImportRepository using PostgreSQL
type PostgresImportRepository struct {
	db DB
}

// NewPostgresImportRepository creates a new PostgreSQL-backed import repository
func NewPostgresImportRepository(db DB) *PostgresImportRepository {
	return &PostgresImportRepository{db: db}
}

var transactionColumns = []string{
	"import_id", "line_number", "booking_date", "value_date", "label",
	"amount_cents", "direction", "reference", "balance_cents", "currency_code",
	"category", "source_category", "raw",
}

// SaveImport writes the job row and bulk-copies its transactions in one
// database transaction.
func (r *PostgresImportRepository) SaveImport(ctx context.Context, imp *Import) error {
	if imp.ID == uuid.Nil {
		imp.ID = uuid.New()
	}
	if imp.Currency == "" {
		imp.Currency = normalizer.DefaultCurrency
	}

	hint, err := marshalHint(imp.AccountHint)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	s := imp.Summary
	query := `
		INSERT INTO import_jobs (
			id, filename, format_name, known_format, encoding, fingerprint, currency_code,
			total_count, dropped_count, credits_cents, debits_cents, balance_cents,
			period_start, period_end, account_hint
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			NULLIF($13, '')::date, NULLIF($14, '')::date, $15)
		RETURNING created_at
	`
	err = tx.QueryRow(ctx, query,
		imp.ID, imp.Filename, imp.Format, imp.KnownFormat, imp.Encoding, imp.Fingerprint, imp.Currency,
		s.Total, imp.Dropped,
		money.Cents(s.Credits.Sum, imp.Currency),
		money.Cents(s.Debits.Sum, imp.Currency),
		money.Cents(s.Balance, imp.Currency),
		s.Period.Start, s.Period.End, hint,
	).Scan(&imp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert import job: %w", err)
	}

	if len(imp.Transactions) > 0 {
		rows, err := transactionRows(imp.ID, imp.Transactions)
		if err != nil {
			return err
		}
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"import_transactions"}, transactionColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to copy transactions: %w", err)
		}
		if int(n) != len(rows) {
			return fmt.Errorf("copied %d of %d transactions", n, len(rows))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

// GetImport loads a job and its transactions. The summary is recomputed
// from the stored transactions.
func (r *PostgresImportRepository) GetImport(ctx context.Context, id uuid.UUID) (*Import, error) {
	query := `
		SELECT id, filename, format_name, known_format, encoding, fingerprint, currency_code,
		       dropped_count, COALESCE(account_hint::text, ''), created_at
		FROM import_jobs
		WHERE id = $1
	`
	var (
		imp  Import
		hint string
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&imp.ID, &imp.Filename, &imp.Format, &imp.KnownFormat, &imp.Encoding, &imp.Fingerprint,
		&imp.Currency, &imp.Dropped, &hint, &imp.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import: %w", err)
	}
	if imp.AccountHint, err = unmarshalHint(hint); err != nil {
		return nil, err
	}

	imp.Transactions, err = r.listTransactions(ctx, id)
	if err != nil {
		return nil, err
	}
	imp.Summary = stats.Summarize(imp.Transactions)
	return &imp, nil
}

func (r *PostgresImportRepository) listTransactions(ctx context.Context, id uuid.UUID) ([]normalizer.Transaction, error) {
	query := `
		SELECT line_number,
		       COALESCE(to_char(booking_date, 'YYYY-MM-DD'), ''),
		       COALESCE(to_char(value_date, 'YYYY-MM-DD'), ''),
		       label, amount_cents, direction, reference, balance_cents,
		       currency_code, category, source_category, raw::text
		FROM import_transactions
		WHERE import_id = $1
		ORDER BY line_number
	`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txs := []normalizer.Transaction{}
	for rows.Next() {
		var (
			t                    normalizer.Transaction
			line                 int
			amount, balance      int64
			direction, rawRecord string
		)
		err := rows.Scan(
			&line, &t.Date, &t.DateValue, &t.Label, &amount, &direction, &t.Reference, &balance,
			&t.Currency, &t.Category, &t.SourceCategory, &rawRecord,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Amount = money.FromCents(amount, t.Currency)
		t.Balance = money.FromCents(balance, t.Currency)
		t.Direction = normalizer.Direction(direction)
		if err := json.Unmarshal([]byte(rawRecord), &t.Raw); err != nil {
			return nil, fmt.Errorf("failed to decode raw record: %w", err)
		}
		t.Raw.Line = line
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListImports returns the import history, newest first
func (r *PostgresImportRepository) ListImports(ctx context.Context, limit, offset int) ([]ImportSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, filename, format_name, known_format, total_count, dropped_count,
		       credits_cents, debits_cents, balance_cents, currency_code,
		       COALESCE(to_char(period_start, 'YYYY-MM-DD'), ''),
		       COALESCE(to_char(period_end, 'YYYY-MM-DD'), ''),
		       COALESCE(account_hint::text, ''), created_at
		FROM import_jobs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list imports: %w", err)
	}
	defer rows.Close()

	out := []ImportSummary{}
	for rows.Next() {
		var (
			s                        ImportSummary
			credits, debits, balance int64
			currency, hint           string
		)
		err := rows.Scan(
			&s.ID, &s.Filename, &s.Format, &s.KnownFormat, &s.Total, &s.Dropped,
			&credits, &debits, &balance, &currency,
			&s.Period.Start, &s.Period.End, &hint, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan import: %w", err)
		}
		s.Credits = money.FromCents(credits, currency)
		s.Debits = money.FromCents(debits, currency)
		s.Balance = money.FromCents(balance, currency)
		s.Period.SpanDays = stats.SpanDays(s.Period.Start, s.Period.End)
		if s.AccountHint, err = unmarshalHint(hint); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteImport removes a job; its transactions cascade
func (r *PostgresImportRepository) DeleteImport(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM import_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete import: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteOlderThan removes jobs created before cutoff and returns the count
func (r *PostgresImportRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM import_jobs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge imports: %w", err)
	}
	return tag.RowsAffected(), nil
}

func transactionRows(id uuid.UUID, txs []normalizer.Transaction) ([][]any, error) {
	rows := make([][]any, 0, len(txs))
	for i, t := range txs {
		raw, err := json.Marshal(t.Raw)
		if err != nil {
			return nil, fmt.Errorf("failed to encode raw record: %w", err)
		}
		currency := t.Currency
		if currency == "" {
			currency = normalizer.DefaultCurrency
		}
		line := t.Raw.Line
		if line == 0 {
			line = i + 1
		}
		rows = append(rows, []any{
			id, line, isoDate(t.Date), isoDate(t.DateValue), t.Label,
			money.Cents(t.Amount, currency), string(t.Direction), t.Reference,
			money.Cents(t.Balance, currency), currency, t.Category, t.SourceCategory, raw,
		})
	}
	return rows, nil
}

// isoDate returns nil for an empty date so the column stays NULL.
func isoDate(s string) any {
	if s == "" {
		return nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil
	}
	return d
}

func marshalHint(h *account.Hint) ([]byte, error) {
	if h == nil {
		return nil, nil
	}
	data, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode account hint: %w", err)
	}
	return data, nil
}

func unmarshalHint(s string) (*account.Hint, error) {
	if s == "" {
		return nil, nil
	}
	var h account.Hint
	if err := json.Unmarshal([]byte(s), &h); err != nil {
		return nil, fmt.Errorf("failed to decode account hint: %w", err)
	}
	return &h, nil
}
