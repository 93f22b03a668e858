// Package service provides the import orchestration logic.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/account"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/repository"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/sniffer"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/stats"
	"github.com/FACorreiaa/orixis-statements/pkg/metrics"
	"github.com/FACorreiaa/orixis-statements/pkg/storage"
)

var (
	ErrUnsupportedExtension   = errors.New("unsupported file extension")
	ErrEmptyFile              = errors.New("file is empty")
	ErrEmptySpreadsheet       = parser.ErrEmptySpreadsheet
	ErrSpreadsheetUnavailable = errors.New("spreadsheet import unavailable: no excelize/xls reader configured")
	ErrHistoryUnavailable     = errors.New("import history unavailable: no repository configured")
	ErrArchiveUnavailable     = errors.New("statement archive unavailable: no storage configured")
	ErrNotFound               = repository.ErrNotFound
)

// ExcelFormatName is the format reported for spreadsheet imports.
const ExcelFormatName = "Excel"

const tracerName = "github.com/FACorreiaa/orixis-statements/internal/domain/import/service"

const (
	kindText        = "text"
	kindSpreadsheet = "spreadsheet"
)

// FileInput is an uploaded statement file.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// ImportResult is the outcome of one import.
type ImportResult struct {
	ID          uuid.UUID                  `json:"id"`
	Operations  []normalizer.Transaction   `json:"operations"`
	Stats       stats.Summary              `json:"stats"`
	Format      string                     `json:"format"`
	Filename    string                     `json:"filename"`
	AccountInfo *account.Hint              `json:"accountInfo,omitempty"`
	KnownFormat bool                       `json:"knownFormat"`
	Encoding    string                     `json:"encoding,omitempty"`
	Fingerprint string                     `json:"fingerprint,omitempty"`
	Dropped     []normalizer.DroppedRecord `json:"dropped,omitempty"`
	ImportedAt  time.Time                  `json:"importedAt"`
}

// PurgeReport counts what a retention run removed.
type PurgeReport struct {
	Files int
	Jobs  int64
}

// ImportService runs statement files through encoding resolution, format
// detection, parsing, normalization and aggregation. It holds no per-import
// state, so concurrent ImportFile calls are safe.
type ImportService struct {
	catalog      catalog.Catalog
	normalizer   *normalizer.Normalizer
	encodings    []string
	spreadsheets parser.SpreadsheetReader // Optional: nil rejects .xlsx/.xls
	repo         repository.ImportRepository
	storage      storage.Storage
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	logger       *slog.Logger
	now          func() time.Time
}

// NewImportService creates a new import service
func NewImportService(cat catalog.Catalog, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		catalog:    cat,
		normalizer: normalizer.New(cat, logger),
		encodings:  sniffer.DefaultEncodings,
		tracer:     otel.Tracer(tracerName),
		logger:     logger,
		now:        time.Now,
	}
}

// WithSpreadsheetReader enables the .xlsx/.xls path
func (s *ImportService) WithSpreadsheetReader(r parser.SpreadsheetReader) *ImportService {
	s.spreadsheets = r
	return s
}

// WithRepository persists every successful import
func (s *ImportService) WithRepository(repo repository.ImportRepository) *ImportService {
	s.repo = repo
	return s
}

// WithStorage archives the raw file of every successful import
func (s *ImportService) WithStorage(st storage.Storage) *ImportService {
	s.storage = st
	return s
}

// WithMetrics records import counters and durations
func (s *ImportService) WithMetrics(m *metrics.Metrics) *ImportService {
	s.metrics = m
	return s
}

// WithEncodings overrides the ordered candidate encodings
func (s *ImportService) WithEncodings(encodings []string) *ImportService {
	if len(encodings) > 0 {
		s.encodings = encodings
	}
	return s
}

// Catalog returns the format catalog in use
func (s *ImportService) Catalog() catalog.Catalog {
	return s.catalog
}

// ImportFile imports one statement file. Whole-file problems are returned as
// errors; row-level problems only degrade the result.
func (s *ImportService) ImportFile(ctx context.Context, in FileInput) (*ImportResult, error) {
	ctx, span := s.tracer.Start(ctx, "ImportFile", trace.WithAttributes(
		attribute.String("import.filename", in.Name),
		attribute.Int("import.size", len(in.Data)),
	))
	defer span.End()

	start := s.now()
	ext := strings.ToLower(filepath.Ext(in.Name))

	var (
		res  *ImportResult
		err  error
		kind = kindText
	)
	switch ext {
	case ".csv", ".txt":
		res, err = s.importText(ctx, in)
	case ".xlsx", ".xls":
		kind = kindSpreadsheet
		res, err = s.importSpreadsheet(ctx, in)
	default:
		if ext == "" {
			ext = "(none)"
		}
		err = fmt.Errorf("%w: %s", ErrUnsupportedExtension, ext)
	}

	if err == nil {
		err = s.persist(ctx, in, res)
	}

	format := "unknown"
	rows, dropped := 0, 0
	if res != nil {
		format = res.Format
		rows, dropped = len(res.Operations), len(res.Dropped)
	}
	s.metrics.ObserveImport(format, kind, rows, dropped, s.now().Sub(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("statement import failed",
			slog.String("filename", in.Name),
			slog.Any("error", err),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("import.format", res.Format),
		attribute.Int("import.rows", rows),
		attribute.Int("import.dropped", dropped),
	)
	s.logger.Info("statement imported",
		slog.String("import_id", res.ID.String()),
		slog.String("filename", res.Filename),
		slog.String("format", res.Format),
		slog.String("encoding", res.Encoding),
		slog.Int("rows", rows),
		slog.Int("dropped", dropped),
		slog.Duration("elapsed", s.now().Sub(start)),
	)
	return res, nil
}

func (s *ImportService) importText(ctx context.Context, in FileInput) (*ImportResult, error) {
	if len(in.Data) == 0 {
		return nil, ErrEmptyFile
	}

	_, span := s.tracer.Start(ctx, "DetectFormat")
	text, enc := sniffer.ResolveEncoding(in.Data, s.encodings...)
	det := sniffer.DetectFormat(text, s.catalog)
	span.SetAttributes(
		attribute.String("import.encoding", enc),
		attribute.String("import.format", det.Descriptor.Name),
		attribute.Int("import.score", det.Score),
	)
	span.End()

	s.logger.Debug("statement format detected",
		slog.String("filename", in.Name),
		slog.String("format", det.Descriptor.Name),
		slog.Bool("known", det.Known),
		slog.Int("score", det.Score),
		slog.Int("header_line", det.HeaderIndex),
		slog.String("separator", string(det.Separator)),
	)

	records := parser.ParseText(text, det.Descriptor)
	res := s.normalize(ctx, records, det.Descriptor)

	return s.result(in.Name, det.Descriptor.Name, res, func(r *ImportResult) {
		r.KnownFormat = det.Known
		r.Encoding = enc
		r.Fingerprint = det.Fingerprint
	}), nil
}

func (s *ImportService) importSpreadsheet(ctx context.Context, in FileInput) (*ImportResult, error) {
	if s.spreadsheets == nil {
		return nil, ErrSpreadsheetUnavailable
	}
	if len(in.Data) == 0 {
		return nil, ErrEmptySpreadsheet
	}

	_, span := s.tracer.Start(ctx, "ReadSpreadsheet")
	rows, err := s.spreadsheets.ReadRows(in.Name, in.Data)
	span.End()
	if err != nil {
		if errors.Is(err, parser.ErrEmptySpreadsheet) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to read spreadsheet: %w", err)
	}

	headers := parser.Headers(rows)
	desc := sniffer.SynthesizeDescriptor(headers, ';', s.catalog.GlobalAliases)
	desc.Name = ExcelFormatName

	records := parser.ParseRows(rows)
	res := s.normalize(ctx, records, desc)

	return s.result(in.Name, ExcelFormatName, res, func(r *ImportResult) {
		r.Fingerprint = sniffer.Fingerprint(headers)
	}), nil
}

func (s *ImportService) normalize(ctx context.Context, records []parser.RawRecord, desc catalog.FormatDescriptor) normalizer.Result {
	_, span := s.tracer.Start(ctx, "Normalize", trace.WithAttributes(attribute.Int("import.records", len(records))))
	defer span.End()
	return s.normalizer.Normalize(records, desc)
}

func (s *ImportService) result(filename, format string, res normalizer.Result, extra func(*ImportResult)) *ImportResult {
	r := &ImportResult{
		ID:          uuid.New(),
		Operations:  res.Transactions,
		Stats:       stats.Summarize(res.Transactions),
		Format:      format,
		Filename:    filename,
		AccountInfo: account.DetectHint(filename),
		Dropped:     res.Dropped,
		ImportedAt:  s.now().UTC(),
	}
	if extra != nil {
		extra(r)
	}
	return r
}

func (s *ImportService) persist(ctx context.Context, in FileInput, res *ImportResult) error {
	if s.storage != nil {
		contentType := in.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		if _, err := s.storage.Save(ctx, res.ID, in.Name, contentType, bytes.NewReader(in.Data)); err != nil {
			return fmt.Errorf("failed to archive statement: %w", err)
		}
	}

	if s.repo != nil {
		imp := &repository.Import{
			ID:           res.ID,
			Filename:     res.Filename,
			Format:       res.Format,
			KnownFormat:  res.KnownFormat,
			Encoding:     res.Encoding,
			Fingerprint:  res.Fingerprint,
			Currency:     currencyOf(res.Operations),
			Dropped:      len(res.Dropped),
			AccountHint:  res.AccountInfo,
			Summary:      res.Stats,
			Transactions: res.Operations,
		}
		if err := s.repo.SaveImport(ctx, imp); err != nil {
			s.discardArchive(ctx, res.ID)
			return fmt.Errorf("failed to save import: %w", err)
		}
		res.ImportedAt = imp.CreatedAt
	}
	return nil
}

// discardArchive removes the raw file of an import that could not be saved.
func (s *ImportService) discardArchive(ctx context.Context, id uuid.UUID) {
	if s.storage == nil {
		return
	}
	// the request context may already be done when the save failed on it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.storage.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("failed to discard archived statement",
			slog.String("import_id", id.String()),
			slog.Any("error", err),
		)
	}
}

// GetImport returns a stored import
func (s *ImportService) GetImport(ctx context.Context, id uuid.UUID) (*ImportResult, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	imp, err := s.repo.GetImport(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ImportResult{
		ID:          imp.ID,
		Operations:  imp.Transactions,
		Stats:       imp.Summary,
		Format:      imp.Format,
		Filename:    imp.Filename,
		AccountInfo: imp.AccountHint,
		KnownFormat: imp.KnownFormat,
		Encoding:    imp.Encoding,
		Fingerprint: imp.Fingerprint,
		ImportedAt:  imp.CreatedAt,
	}, nil
}

// ListImports returns the import history, newest first
func (s *ImportService) ListImports(ctx context.Context, limit, offset int) ([]repository.ImportSummary, error) {
	if s.repo == nil {
		return nil, ErrHistoryUnavailable
	}
	return s.repo.ListImports(ctx, limit, offset)
}

// OpenSource opens the archived upload of an import. The caller closes the reader.
func (s *ImportService) OpenSource(ctx context.Context, id uuid.UUID) (io.ReadCloser, *storage.FileInfo, error) {
	if s.storage == nil {
		return nil, nil, ErrArchiveUnavailable
	}
	rc, info, err := s.storage.Open(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archived statement: %w", err)
	}
	return rc, info, nil
}

// DeleteImport removes a stored import and its archived file
func (s *ImportService) DeleteImport(ctx context.Context, id uuid.UUID) error {
	if s.repo == nil {
		return ErrHistoryUnavailable
	}
	if err := s.repo.DeleteImport(ctx, id); err != nil {
		return err
	}
	if s.storage != nil {
		if err := s.storage.Delete(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to delete archived statement: %w", err)
		}
	}
	return nil
}

// PurgeOlderThan removes archived files and stored imports created before cutoff
func (s *ImportService) PurgeOlderThan(ctx context.Context, cutoff time.Time) (PurgeReport, error) {
	var report PurgeReport
	if s.storage != nil {
		n, err := storage.PurgeOlderThan(ctx, s.storage, cutoff)
		report.Files = n
		if err != nil {
			return report, fmt.Errorf("failed to purge archived statements: %w", err)
		}
	}
	if s.repo != nil {
		n, err := s.repo.DeleteOlderThan(ctx, cutoff)
		report.Jobs = n
		if err != nil {
			return report, fmt.Errorf("failed to purge imports: %w", err)
		}
	}
	return report, nil
}

// currencyOf returns the currency shared by the transactions, or the default.
func currencyOf(txs []normalizer.Transaction) string {
	for _, tx := range txs {
		if tx.Currency != "" {
			return tx.Currency
		}
	}
	return normalizer.DefaultCurrency
}
