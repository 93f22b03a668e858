package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	body        []byte
	contentType string
	metadata    map[string]string
	modified    time.Time
}

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]fakeObject
	now     time.Time
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]fakeObject{}, now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = fakeObject{
		body:        data,
		contentType: aws.ToString(in.ContentType),
		metadata:    in.Metadata,
		modified:    f.now,
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(obj.body))}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obj, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(obj.body))),
		ContentType:   aws.String(obj.contentType),
		Metadata:      obj.metadata,
		LastModified:  aws.Time(obj.modified),
	}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := aws.ToString(in.Prefix)
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if limit := int(aws.ToInt32(in.MaxKeys)); limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for _, k := range keys {
		obj := f.objects[k]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(int64(len(obj.body))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

func TestS3Storage_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := newS3Storage(fake, "bucket", "/archive/")
	id := uuid.New()

	info, err := s.Save(ctx, id, "releve.csv", "text/csv", strings.NewReader("Date;Montant\n"))
	require.NoError(t, err)
	assert.Equal(t, "archive/"+id.String()+"/releve.csv", info.Path)
	assert.Equal(t, int64(13), info.Size)

	rc, got, err := s.Open(ctx, id)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "Date;Montant\n", string(data))
	assert.Equal(t, "releve.csv", got.Name)
	assert.Equal(t, "text/csv", got.ContentType)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Stat(ctx, id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestS3Storage_ListAndPurge(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	s := newS3Storage(fake, "bucket", "")

	old := uuid.New()
	fake.now = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := s.Save(ctx, old, "old.csv", "text/csv", strings.NewReader("x"))
	require.NoError(t, err)

	recent := uuid.New()
	fake.now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.Save(ctx, recent, "new.csv", "text/csv", strings.NewReader("y"))
	require.NoError(t, err)

	// Keys outside the import layout are ignored.
	fake.objects["imports/readme.txt"] = fakeObject{body: []byte("z"), modified: fake.now}

	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	removed, err := PurgeOlderThan(ctx, s, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = s.Stat(ctx, recent)
	assert.NoError(t, err)
}

func TestS3Storage_OpenMissing(t *testing.T) {
	s := newS3Storage(newFakeS3(), "bucket", "")
	_, _, err := s.Open(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestNewS3Storage_RequiresBucketAndRegion(t *testing.T) {
	_, err := NewS3Storage(context.Background(), &Config{Type: StorageTypeS3, S3Region: "eu-west-3"})
	assert.Error(t, err)

	_, err = NewS3Storage(context.Background(), &Config{Type: StorageTypeS3, S3Bucket: "b"})
	assert.Error(t, err)
}
