// Package storage archives uploaded statement files, keyed by import ID,
// on the local filesystem or in S3.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("file not found")

// FileInfo contains metadata about a stored file
type FileInfo struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"path"` // Internal storage path
	CreatedAt   time.Time `json:"created_at"`
}

// Storage defines the archive operations used by the import service and
// the retention job.
type Storage interface {
	// Save stores the raw file of an import
	Save(ctx context.Context, importID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error)

	// Open returns the raw file of an import
	Open(ctx context.Context, importID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// Stat returns metadata without reading the file
	Stat(ctx context.Context, importID uuid.UUID) (*FileInfo, error)

	// Delete removes the file of an import
	Delete(ctx context.Context, importID uuid.UUID) error

	// List returns every archived file
	List(ctx context.Context) ([]*FileInfo, error)
}

// PurgeOlderThan deletes every file created before cutoff and returns how
// many were removed.
func PurgeOlderThan(ctx context.Context, s Storage, cutoff time.Time) (int, error) {
	files, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if !f.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Delete(ctx, f.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// StorageType identifies the storage backend
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// Config holds storage configuration
type Config struct {
	Type StorageType

	// Local storage config
	LocalPath string

	// S3 storage config
	S3Bucket          string
	S3Region          string
	S3Prefix          string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Endpoint        string // For S3-compatible services (MinIO, etc.)
}

// New creates a new Storage implementation based on configuration
func New(ctx context.Context, cfg *Config) (Storage, error) {
	switch cfg.Type {
	case StorageTypeS3:
		return NewS3Storage(ctx, cfg)
	case StorageTypeLocal:
		fallthrough
	default:
		return NewLocalStorage(cfg.LocalPath)
	}
}

// sanitizeFilename removes unsafe characters from filenames
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		"..", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	safe := replacer.Replace(name)
	if safe == "" {
		return "statement"
	}
	return safe
}
