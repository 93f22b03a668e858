// Package handler exposes the import service over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/FACorreiaa/orixis-statements/internal/domain/import/export"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/normalizer"
	importservice "github.com/FACorreiaa/orixis-statements/internal/domain/import/service"
	"github.com/FACorreiaa/orixis-statements/internal/domain/import/stats"
)

const (
	defaultMaxUploadBytes = 10 << 20
	uploadField           = "file"
	csvContentType        = "text/csv; charset=utf-8"
)

// ImportHandler handles the statement import endpoints
type ImportHandler struct {
	importSvc      *importservice.ImportService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc *importservice.ImportService, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc:      importSvc,
		maxUploadBytes: defaultMaxUploadBytes,
		logger:         logger,
	}
}

// WithMaxUploadBytes caps the size of uploaded statements
func (h *ImportHandler) WithMaxUploadBytes(n int64) *ImportHandler {
	if n > 0 {
		h.maxUploadBytes = n
	}
	return h
}

// Routes registers the import endpoints on r
func (h *ImportHandler) Routes(r chi.Router) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/formats", h.ListFormats)
		r.Route("/imports", func(r chi.Router) {
			r.Post("/", h.UploadStatement)
			r.Get("/", h.ListImports)
			r.Get("/{id}", h.GetImport)
			r.Delete("/{id}", h.DeleteImport)
			r.Get("/{id}/export.csv", h.ExportStoredImport)
			r.Get("/{id}/source", h.DownloadSource)
		})
		r.Route("/exports", func(r chi.Router) {
			r.Post("/csv", h.ExportCSV)
			r.Post("/categories", h.ExportCategories)
		})
	})
}

// UploadStatement imports a multipart "file" field
func (h *ImportHandler) UploadStatement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if r.ContentLength > h.maxUploadBytes {
		h.uploadError(w, &http.MaxBytesError{Limit: h.maxUploadBytes})
		return
	}
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.uploadError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("missing %q form field", uploadField))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.uploadError(w, err)
		return
	}

	result, err := h.importSvc.ImportFile(r.Context(), importservice.FileInput{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// ListImports returns the import history
func (h *ImportHandler) ListImports(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	offset := queryInt(r, "offset", 0)

	imports, err := h.importSvc.ListImports(r.Context(), limit, offset)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"imports": imports})
}

// GetImport returns one stored import
func (h *ImportHandler) GetImport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.importSvc.GetImport(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// DeleteImport removes a stored import
func (h *ImportHandler) DeleteImport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.importSvc.DeleteImport(r.Context(), id); err != nil {
		h.serviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportStoredImport renders a stored import as CSV
func (h *ImportHandler) ExportStoredImport(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	result, err := h.importSvc.GetImport(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	h.writeCSV(w, "operations.csv", func(w io.Writer) error {
		return export.WriteCSV(w, result.Operations)
	})
}

// DownloadSource streams the archived upload of an import
func (h *ImportHandler) DownloadSource(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rc, info, err := h.importSvc.OpenSource(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}
	defer rc.Close()

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Name))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Error("failed to stream archived statement",
			slog.String("import_id", id.String()),
			slog.Any("error", err),
		)
	}
}

type exportRequest struct {
	Operations []normalizer.Transaction `json:"operations"`
}

// ExportCSV renders posted operations as the French CSV export
func (h *ImportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExport(w, r)
	if !ok {
		return
	}
	h.writeCSV(w, "operations.csv", func(w io.Writer) error {
		return export.WriteCSV(w, req.Operations)
	})
}

// ExportCategories renders the per-category totals of posted operations
func (h *ImportHandler) ExportCategories(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeExport(w, r)
	if !ok {
		return
	}
	summary := stats.Summarize(req.Operations)
	h.writeCSV(w, "categories.csv", func(w io.Writer) error {
		return export.WriteCategorySummary(w, summary)
	})
}

type formatInfo struct {
	Name       string `json:"name"`
	Separator  string `json:"separator"`
	DateFormat string `json:"dateFormat"`
	Quoted     bool   `json:"quoted"`
}

// ListFormats describes the known bank formats
func (h *ImportHandler) ListFormats(w http.ResponseWriter, _ *http.Request) {
	cat := h.importSvc.Catalog()
	formats := make([]formatInfo, 0, len(cat.Formats))
	for _, f := range cat.Formats {
		formats = append(formats, formatInfo{
			Name:       f.Name,
			Separator:  string(f.Separator),
			DateFormat: f.DateFormat,
			Quoted:     f.Quoted,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{"formats": formats})
}

func (h *ImportHandler) writeCSV(w http.ResponseWriter, filename string, write func(io.Writer) error) {
	w.Header().Set("Content-Type", csvContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := write(w); err != nil {
		h.logger.Error("failed to write CSV export", slog.Any("error", err))
	}
}

func (h *ImportHandler) uploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", tooLarge.Limit))
		return
	}
	respondError(w, http.StatusBadRequest, "invalid multipart upload")
}

func (h *ImportHandler) serviceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("import request failed", slog.Any("error", err))
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	respondError(w, status, msg)
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, importservice.ErrUnsupportedExtension), errors.Is(err, importservice.ErrEmptyFile):
		return http.StatusBadRequest
	case errors.Is(err, importservice.ErrEmptySpreadsheet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, importservice.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, importservice.ErrSpreadsheetUnavailable), errors.Is(err, importservice.ErrHistoryUnavailable),
		errors.Is(err, importservice.ErrArchiveUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeExport(w http.ResponseWriter, r *http.Request) (exportRequest, bool) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return req, false
	}
	return req, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid import id")
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
