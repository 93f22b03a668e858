package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

const (
	defaultS3Prefix  = "imports"
	metaFilename     = "filename"
	maxListPageItems = 1000
)

// s3API is the subset of *s3.Client used by S3Storage.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage implements Storage using Amazon S3 or S3-compatible services.
// Objects are stored under <prefix>/<import id>/<filename>.
type S3Storage struct {
	client s3API
	bucket string
	prefix string
}

// NewS3Storage creates an S3 client from cfg. Static credentials are used
// when provided, otherwise the default AWS credential chain applies.
func NewS3Storage(ctx context.Context, cfg *Config) (*S3Storage, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3 bucket is required")
	}
	if cfg.S3Region == "" {
		return nil, fmt.Errorf("S3 region is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKeyID != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.S3Endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true // Required for MinIO
		})
	}

	return newS3Storage(s3.NewFromConfig(awsCfg, opts...), cfg.S3Bucket, cfg.S3Prefix), nil
}

func newS3Storage(client s3API, bucket, prefix string) *S3Storage {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = defaultS3Prefix
	}
	return &S3Storage{client: client, bucket: bucket, prefix: prefix}
}

// Save uploads a file and returns its metadata
func (s *S3Storage) Save(ctx context.Context, importID uuid.UUID, filename, contentType string, r io.Reader) (*FileInfo, error) {
	key := path.Join(s.importPrefix(importID), sanitizeFilename(filename))

	// Statements are small; buffering gives the SDK a seekable body.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		Metadata:      map[string]string{metaFilename: filename},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &FileInfo{
		ID:          importID,
		Name:        filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		Path:        key,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Open downloads a file by its import ID
func (s *S3Storage) Open(ctx context.Context, importID uuid.UUID) (io.ReadCloser, *FileInfo, error) {
	info, err := s.Stat(ctx, importID)
	if err != nil {
		return nil, nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(info.Path),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, importID)
		}
		return nil, nil, fmt.Errorf("failed to download from S3: %w", err)
	}
	return out.Body, info, nil
}

// Stat finds the object of an import and reads its metadata
func (s *S3Storage) Stat(ctx context.Context, importID uuid.UUID) (*FileInfo, error) {
	list, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.importPrefix(importID) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 objects: %w", err)
	}
	if len(list.Contents) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, importID)
	}
	key := aws.ToString(list.Contents[0].Key)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, importID)
		}
		return nil, fmt.Errorf("failed to stat S3 object: %w", err)
	}

	name := head.Metadata[metaFilename]
	if name == "" {
		name = path.Base(key)
	}
	return &FileInfo{
		ID:          importID,
		Name:        name,
		Size:        aws.ToInt64(head.ContentLength),
		ContentType: aws.ToString(head.ContentType),
		Path:        key,
		CreatedAt:   aws.ToTime(head.LastModified),
	}, nil
}

// Delete removes the object of an import
func (s *S3Storage) Delete(ctx context.Context, importID uuid.UUID) error {
	info, err := s.Stat(ctx, importID)
	if err != nil {
		return err
	}
	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(info.Path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// List returns every archived object under the prefix
func (s *S3Storage) List(ctx context.Context) ([]*FileInfo, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(s.prefix + "/"),
		MaxKeys: aws.Int32(maxListPageItems),
	})

	var files []*FileInfo
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list S3 objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			id, ok := s.importIDFromKey(key)
			if !ok {
				continue
			}
			files = append(files, &FileInfo{
				ID:        id,
				Name:      path.Base(key),
				Size:      aws.ToInt64(obj.Size),
				Path:      key,
				CreatedAt: aws.ToTime(obj.LastModified),
			})
		}
	}
	return files, nil
}

func (s *S3Storage) importPrefix(importID uuid.UUID) string {
	return path.Join(s.prefix, importID.String())
}

func (s *S3Storage) importIDFromKey(key string) (uuid.UUID, bool) {
	rest := strings.TrimPrefix(key, s.prefix+"/")
	idPart, _, found := strings.Cut(rest, "/")
	if !found {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idPart)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func isNotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noKey) || errors.As(err, &notFound)
}
