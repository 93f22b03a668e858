package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/orixis-statements/pkg/config"
	"github.com/FACorreiaa/orixis-statements/pkg/storage"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           0,
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 1 << 20,
		},
		Storage: storage.Config{
			Type:      storage.StorageTypeLocal,
			LocalPath: t.TempDir(),
		},
		Observability: config.ObservabilityConfig{MetricsEnabled: true},
		Retention:     config.RetentionConfig{Enabled: true, Schedule: "0 3 * * *", Days: 30},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestInitDependencies_WithoutDatabase(t *testing.T) {
	deps, err := InitDependencies(context.Background(), testConfig(t), discardLogger())
	require.NoError(t, err)
	defer deps.Cleanup()

	assert.Nil(t, deps.Pool)
	assert.Nil(t, deps.ImportRepo)
	assert.NotNil(t, deps.Metrics)
	assert.NotNil(t, deps.Scheduler)
	assert.NotEmpty(t, deps.Catalog.Formats)

	rec := httptest.NewRecorder()
	deps.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	deps.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/imports", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestInitDependencies_CatalogOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
formats:
  - name: Ma Banque
    separator: ";"
    dateFormat: DD/MM/YYYY
    headerAliases:
      date: ["Jour"]
      label: ["Opération"]
      amount: ["Valeur"]
`), 0o644))

	cfg := testConfig(t)
	cfg.Import.CatalogPath = path

	deps, err := InitDependencies(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer deps.Cleanup()
	assert.Equal(t, "Ma Banque", deps.Catalog.Formats[0].Name)
}

func TestInitDependencies_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"missing catalog", func(c *config.Config) { c.Import.CatalogPath = "/nonexistent/catalog.yaml" }},
		{"bad retention", func(c *config.Config) { c.Retention.Days = 0 }},
		{"s3 without bucket", func(c *config.Config) { c.Storage = storage.Config{Type: storage.StorageTypeS3} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			_, err := InitDependencies(context.Background(), cfg, discardLogger())
			assert.Error(t, err)
		})
	}
}
