// Package storage archives fetched feed payloads in S3-compatible object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/feedsync/backend/internal/domain/supplier"
	infraconfig "github.com/feedsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const defaultPrefix = "feeds"

// FeedArchive stores the raw payload of one supplier fetch and returns the
// object key.
type FeedArchive interface {
	Store(ctx context.Context, supplierID, runID string, format supplier.FormatType, payload []byte) (string, error)
}

// Key builds the object key <prefix>/<supplier_id>/<run_id>.<ext>
func Key(prefix, supplierID, runID string, format supplier.FormatType) string {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return path.Join(prefix, supplierID, runID+"."+extension(format))
}

func extension(format supplier.FormatType) string {
	switch {
	case format == supplier.FormatCSV:
		return "csv"
	case format.IsXML():
		return "xml"
	default:
		return "bin"
	}
}

func contentType(format supplier.FormatType) string {
	switch {
	case format == supplier.FormatCSV:
		return "text/csv"
	case format.IsXML():
		return "application/xml"
	default:
		return "application/octet-stream"
	}
}

// S3FeedArchive implements FeedArchive using AWS S3 SDK v2.
// It works with any S3-compatible storage (AWS S3, MinIO, RustFS).
type S3FeedArchive struct {
	client *s3.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// S3FeedArchiveOption configures an S3FeedArchive
type S3FeedArchiveOption func(*S3FeedArchive)

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) S3FeedArchiveOption {
	return func(s *S3FeedArchive) {
		s.logger = logger
	}
}

// NewS3FeedArchive creates an archive from configuration
func NewS3FeedArchive(cfg *infraconfig.StorageConfig, opts ...S3FeedArchiveOption) (*S3FeedArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:9000"
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})

	archive := &S3FeedArchive{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	return archive, nil
}

// EnsureBucket creates the bucket if it does not exist
func (s *S3FeedArchive) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	s.logger.Info("Creating feed archive bucket", zap.String("bucket", s.bucket))
	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Store uploads payload under the supplier/run key
func (s *S3FeedArchive) Store(ctx context.Context, supplierID, runID string, format supplier.FormatType, payload []byte) (string, error) {
	if supplierID == "" || runID == "" {
		return "", errors.New("supplier id and run id are required")
	}
	key := Key(s.prefix, supplierID, runID, format)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType(format)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to archive feed %s: %w", key, err)
	}

	s.logger.Debug("Feed payload archived",
		zap.String("bucket", s.bucket),
		zap.String("key", key),
		zap.Int("bytes", len(payload)),
	)
	return key, nil
}

// Bucket returns the bucket name
func (s *S3FeedArchive) Bucket() string {
	return s.bucket
}

// NopArchive discards payloads. It is used when archiving is disabled.
type NopArchive struct{}

func (NopArchive) Store(context.Context, string, string, supplier.FormatType, []byte) (string, error) {
	return "", nil
}

var (
	_ FeedArchive = (*S3FeedArchive)(nil)
	_ FeedArchive = NopArchive{}
)
