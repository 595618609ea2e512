package recipients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source serves lists stored as objects under bucket/prefix.
type S3Source struct {
	bucket   string
	prefix   string
	s3Client S3API
	logger   *slog.Logger
}

// NewS3Source creates an S3-backed list store.
func NewS3Source(s3Client S3API, bucket, prefix string, logger *slog.Logger) *S3Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Source{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		s3Client: s3Client,
		logger:   logger,
	}
}

var _ Store = (*S3Source)(nil)

func (s *S3Source) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Source) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	key := s.key(name)
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("recipients: s3 get %s: %w", key, err)
	}
	s.logger.Debug("opened recipient list from s3", "bucket", s.bucket, "key", key)
	return out.Body, nil
}

func (s *S3Source) Put(ctx context.Context, name string, r io.Reader) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	key := s.key(name)
	if _, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String("text/plain; charset=utf-8"),
	}); err != nil {
		return fmt.Errorf("recipients: s3 put %s: %w", key, err)
	}
	s.logger.Info("stored recipient list in s3", "bucket", s.bucket, "key", key)
	return nil
}
