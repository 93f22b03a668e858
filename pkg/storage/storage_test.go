package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestLocalStorage_SaveOpen(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)
	id := uuid.New()

	info, err := s.Save(ctx, id, "releve 2024.csv", "text/csv", strings.NewReader("Date;Libellé\n"))
	require.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "releve 2024.csv", info.Name)
	assert.Equal(t, int64(len("Date;Libellé\n")), info.Size)

	rc, got, err := s.Open(ctx, id)
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Date;Libellé\n", string(data))
	assert.Equal(t, "text/csv", got.ContentType)
}

func TestLocalStorage_SanitizesName(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)
	id := uuid.New()

	info, err := s.Save(ctx, id, "../../etc/passwd", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	assert.NotContains(t, info.Path, "..")
	assert.Equal(t, "../../etc/passwd", info.Name)
}

func TestLocalStorage_NotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)
	id := uuid.New()

	_, err := s.Stat(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, _, err = s.Open(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = s.Delete(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestLocalStorage_DeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	first, second := uuid.New(), uuid.New()
	_, err := s.Save(ctx, first, "a.csv", "text/csv", strings.NewReader("a"))
	require.NoError(t, err)
	_, err = s.Save(ctx, second, "b.csv", "text/csv", strings.NewReader("b"))
	require.NoError(t, err)

	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, s.Delete(ctx, first))

	files, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, second, files[0].ID)
}

func TestPurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	s := newTestLocal(t)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	old, recent := uuid.New(), uuid.New()

	s.now = func() time.Time { return now.AddDate(0, 0, -40) }
	_, err := s.Save(ctx, old, "old.csv", "text/csv", strings.NewReader("old"))
	require.NoError(t, err)

	s.now = func() time.Time { return now.AddDate(0, 0, -2) }
	_, err = s.Save(ctx, recent, "recent.csv", "text/csv", strings.NewReader("recent"))
	require.NoError(t, err)

	removed, err := PurgeOlderThan(ctx, s, now.AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Stat(ctx, old)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.Stat(ctx, recent)
	assert.NoError(t, err)
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"releve.csv", "releve.csv"},
		{"a/b.csv", "a_b.csv"},
		{"a:b*c?.xls", "a_b_c_.xls"},
		{"", "statement"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFilename(tt.in))
		})
	}
}

func TestNew_DefaultsToLocal(t *testing.T) {
	s, err := New(context.Background(), &Config{LocalPath: t.TempDir()})
	require.NoError(t, err)
	_, ok := s.(*LocalStorage)
	assert.True(t, ok)
}
