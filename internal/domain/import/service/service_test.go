package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/catalog"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/normalizer"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/parser"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/repository"
	"github.com/FACorreiaa/orixis-statements/pkg/metrics"
	"github.com/FACorreiaa/orixis-statements/pkg/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService() *ImportService {
	return NewImportService(catalog.Default(), discardLogger()).
		WithSpreadsheetReader(parser.NewWorkbookReader())
}

func readFixture(t *testing.T, name string) FileInput {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return FileInput{Name: name, ContentType: "text/csv", Data: data}
}

// fakeRepo keeps imports in memory.
type fakeRepo struct {
	mu      sync.Mutex
	saved   map[uuid.UUID]*repository.Import
	saveErr error
	purged  int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{saved: map[uuid.UUID]*repository.Import{}}
}

func (r *fakeRepo) SaveImport(_ context.Context, imp *repository.Import) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	imp.CreatedAt = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	r.saved[imp.ID] = imp
	return nil
}

func (r *fakeRepo) GetImport(_ context.Context, id uuid.UUID) (*repository.Import, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	imp, ok := r.saved[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return imp, nil
}

func (r *fakeRepo) ListImports(_ context.Context, _, _ int) ([]repository.ImportSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []repository.ImportSummary{}
	for _, imp := range r.saved {
		out = append(out, repository.ImportSummary{ID: imp.ID, Filename: imp.Filename, Format: imp.Format})
	}
	return out, nil
}

func (r *fakeRepo) DeleteImport(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.saved[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.saved, id)
	return nil
}

func (r *fakeRepo) DeleteOlderThan(_ context.Context, _ time.Time) (int64, error) {
	return r.purged, nil
}

type fakeSheets struct {
	rows [][]string
	err  error
}

func (f fakeSheets) ReadRows(string, []byte) ([][]string, error) {
	return f.rows, f.err
}

func TestImportFile_CreditMutuelScenario(t *testing.T) {
	svc := newTestService()

	res, err := svc.ImportFile(context.Background(), readFixture(t, "credit_mutuel.csv"))
	require.NoError(t, err)

	assert.Equal(t, "Crédit Mutuel", res.Format)
	assert.True(t, res.KnownFormat)
	assert.Equal(t, "credit_mutuel.csv", res.Filename)
	assert.Equal(t, "utf-8", res.Encoding)
	require.Len(t, res.Operations, 2)

	salary := res.Operations[0]
	assert.Equal(t, "2024-01-01", salary.Date)
	assert.Equal(t, 1500.0, salary.Amount)
	assert.Equal(t, normalizer.DirectionCredit, salary.Direction)
	assert.Equal(t, catalog.CategorySalary, salary.Category)

	cash := res.Operations[1]
	assert.Equal(t, "2024-01-02", cash.Date)
	assert.Equal(t, -40.0, cash.Amount)
	assert.Equal(t, normalizer.DirectionDebit, cash.Direction)
	assert.Equal(t, catalog.CategoryCashWithdrawal, cash.Category)

	assert.InDelta(t, 1460.0, res.Stats.Balance, 1e-9)
	assert.Equal(t, 2, res.Stats.Total)
	assert.Nil(t, res.AccountInfo)
	assert.Empty(t, res.Dropped)
}

func TestImportFile_Latin1WithPreamble(t *testing.T) {
	svc := newTestService()

	res, err := svc.ImportFile(context.Background(), readFixture(t, "latin1.csv"))
	require.NoError(t, err)

	assert.Equal(t, "windows-1252", res.Encoding)
	assert.Equal(t, "Crédit Mutuel", res.Format)
	require.Len(t, res.Operations, 2)
	assert.Equal(t, "PRLV EDF ÉLECTRICITÉ", res.Operations[0].Label)
	assert.Equal(t, -82.4, res.Operations[0].Amount)
	assert.InDelta(t, 1017.6, res.Operations[0].Balance, 1e-9)
	assert.Equal(t, "2024-03-06", res.Operations[1].Date)
	assert.Equal(t, 250.0, res.Operations[1].Amount)
}

func TestImportFile_Boursorama(t *testing.T) {
	svc := newTestService()

	res, err := svc.ImportFile(context.Background(), readFixture(t, "boursorama.csv"))
	require.NoError(t, err)

	assert.Equal(t, "Boursorama", res.Format)
	require.Len(t, res.Operations, 2)
	assert.Equal(t, "2024-02-01", res.Operations[0].Date)
	assert.Equal(t, "CARTE 31/01/24 MONOPRIX", res.Operations[0].Label)
	assert.Equal(t, -23.45, res.Operations[0].Amount)
	assert.Equal(t, "Alimentation", res.Operations[0].SourceCategory)
	assert.Equal(t, 2100.0, res.Operations[1].Amount)
	assert.Equal(t, "2024-02-01", res.Stats.Period.Start)
	assert.Equal(t, "2024-02-03", res.Stats.Period.End)
}

func TestImportFile_QuotedCIC(t *testing.T) {
	svc := newTestService()

	res, err := svc.ImportFile(context.Background(), readFixture(t, "cic_quoted.csv"))
	require.NoError(t, err)

	assert.Equal(t, "CIC", res.Format)
	assert.True(t, res.KnownFormat)
	require.Len(t, res.Operations, 2)
	assert.Empty(t, res.Dropped)

	salary := res.Operations[0]
	assert.Equal(t, "2024-01-01", salary.Date)
	assert.Equal(t, "VIREMENT SALAIRE JANVIER", salary.Label)
	assert.Equal(t, 1500.0, salary.Amount)
	assert.Equal(t, normalizer.DirectionCredit, salary.Direction)

	cash := res.Operations[1]
	assert.Equal(t, "2024-01-02", cash.Date)
	assert.Equal(t, "2024-01-03", cash.DateValue)
	assert.Equal(t, `RETRAIT DAB "GARE"; PARIS`, cash.Label)
	assert.Equal(t, -40.0, cash.Amount)
	assert.Equal(t, normalizer.DirectionDebit, cash.Direction)
	assert.Equal(t, catalog.CategoryCashWithdrawal, cash.Category)
	assert.InDelta(t, 1460.0, cash.Balance, 1e-9)

	assert.InDelta(t, 1460.0, res.Stats.Balance, 1e-9)
}

func TestImportFile_Spreadsheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Date", "Libellé", "Montant"},
		{"15/01/2024", "VIREMENT SALAIRE", "1500"},
		{"16/01/2024", "CARREFOUR MARKET", "-42,10"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	svc := newTestService()
	res, err := svc.ImportFile(context.Background(), FileInput{Name: "12345678901.xlsx", Data: buf.Bytes()})
	require.NoError(t, err)

	assert.Equal(t, ExcelFormatName, res.Format)
	assert.False(t, res.KnownFormat)
	require.Len(t, res.Operations, 2)
	assert.Equal(t, "2024-01-15", res.Operations[0].Date)
	assert.Equal(t, 1500.0, res.Operations[0].Amount)
	assert.Equal(t, -42.1, res.Operations[1].Amount)
	assert.NotEmpty(t, res.Fingerprint)
	require.NotNil(t, res.AccountInfo)
	assert.Equal(t, "Crédit Mutuel", res.AccountInfo.BankGuess)
}

func TestImportFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		svc     *ImportService
		input   FileInput
		wantErr error
		wantMsg string
	}{
		{
			name:    "unsupported extension",
			svc:     newTestService(),
			input:   FileInput{Name: "releve.pdf", Data: []byte("%PDF")},
			wantErr: ErrUnsupportedExtension,
			wantMsg: ".pdf",
		},
		{
			name:    "no extension",
			svc:     newTestService(),
			input:   FileInput{Name: "releve", Data: []byte("x")},
			wantErr: ErrUnsupportedExtension,
		},
		{
			name:    "empty text file",
			svc:     newTestService(),
			input:   FileInput{Name: "releve.csv"},
			wantErr: ErrEmptyFile,
		},
		{
			name:    "spreadsheet reader missing",
			svc:     NewImportService(catalog.Default(), discardLogger()),
			input:   FileInput{Name: "releve.xlsx", Data: []byte("PK")},
			wantErr: ErrSpreadsheetUnavailable,
			wantMsg: "excelize",
		},
		{
			name:    "empty spreadsheet",
			svc:     newTestService().WithSpreadsheetReader(fakeSheets{err: parser.ErrEmptySpreadsheet}),
			input:   FileInput{Name: "releve.xls", Data: []byte{0xD0, 0xCF}},
			wantErr: ErrEmptySpreadsheet,
		},
		{
			name:    "corrupt spreadsheet",
			svc:     newTestService().WithSpreadsheetReader(fakeSheets{err: errors.New("zip: not a valid zip file")}),
			input:   FileInput{Name: "releve.xlsx", Data: []byte("garbage")},
			wantMsg: "failed to read spreadsheet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.svc.ImportFile(context.Background(), tt.input)
			require.Error(t, err)
			assert.Nil(t, res)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestImportFile_HeaderOnlySpreadsheet(t *testing.T) {
	svc := newTestService().WithSpreadsheetReader(fakeSheets{rows: [][]string{{"Date", "Libellé", "Montant"}}})

	res, err := svc.ImportFile(context.Background(), FileInput{Name: "releve.xlsx", Data: []byte("PK")})
	require.NoError(t, err)
	assert.Empty(t, res.Operations)
	assert.Equal(t, 0, res.Stats.Total)
}

func TestImportFile_PersistsAndArchives(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	m := metrics.New()

	svc := newTestService().WithRepository(repo).WithStorage(st).WithMetrics(m)

	res, err := svc.ImportFile(ctx, readFixture(t, "credit_mutuel.csv"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), res.ImportedAt)

	saved, ok := repo.saved[res.ID]
	require.True(t, ok)
	assert.Equal(t, "Crédit Mutuel", saved.Format)
	assert.Len(t, saved.Transactions, 2)
	assert.Equal(t, "EUR", saved.Currency)

	info, err := st.Stat(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "credit_mutuel.csv", info.Name)

	rc, info, err := svc.OpenSource(ctx, res.ID)
	require.NoError(t, err)
	source, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, readFixture(t, "credit_mutuel.csv").Data, source)
	assert.Equal(t, "text/csv", info.ContentType)

	_, _, err = svc.OpenSource(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetImport(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, got.ID)
	assert.InDelta(t, 1460.0, got.Stats.Balance, 1e-9)

	list, err := svc.ListImports(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	count, err := testutil.GatherAndCount(m.Registry(), "orixis_imports_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, svc.DeleteImport(ctx, res.ID))
	_, err = st.Stat(ctx, res.ID)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = svc.GetImport(ctx, res.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestImportFile_RepositoryFailure(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.saveErr = errors.New("connection refused")
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	svc := newTestService().WithRepository(repo).WithStorage(st)

	_, err = svc.ImportFile(ctx, readFixture(t, "credit_mutuel.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to save import")
	assert.Contains(t, err.Error(), "connection refused")

	files, err := st.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, files, "archive of a failed import is removed")
}

func TestHistoryWithoutRepository(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.GetImport(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrHistoryUnavailable))
	_, err = svc.ListImports(ctx, 10, 0)
	assert.True(t, errors.Is(err, ErrHistoryUnavailable))
	assert.True(t, errors.Is(svc.DeleteImport(ctx, uuid.New()), ErrHistoryUnavailable))
	_, _, err = svc.OpenSource(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrArchiveUnavailable)
}

func TestPurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.purged = 3
	st, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	svc := newTestService().WithStorage(st).WithRepository(repo)
	_, err = svc.ImportFile(ctx, readFixture(t, "credit_mutuel.csv"))
	require.NoError(t, err)

	report, err := svc.PurgeOlderThan(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Files)
	assert.Equal(t, int64(3), report.Jobs)
}

func TestImportFile_Concurrent(t *testing.T) {
	svc := newTestService()
	in := readFixture(t, "credit_mutuel.csv")

	var wg sync.WaitGroup
	results := make([]*ImportResult, 16)
	errs := make([]error, len(results))
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.ImportFile(context.Background(), in)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		require.NoError(t, errs[i])
		assert.InDelta(t, 1460.0, res.Stats.Balance, 1e-9)
		assert.Len(t, res.Operations, 2)
	}
}

func TestWithEncodings(t *testing.T) {
	svc := newTestService().WithEncodings(nil)
	assert.NotEmpty(t, svc.encodings)

	svc = svc.WithEncodings([]string{"iso-8859-1"})
	res, err := svc.ImportFile(context.Background(), readFixture(t, "latin1.csv"))
	require.NoError(t, err)
	assert.Equal(t, "iso-8859-1", res.Encoding)
}
