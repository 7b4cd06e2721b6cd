package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/jittakal/fifolog/pkg/encoder"
	"github.com/jittakal/fifolog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Uploader = (*S3Uploader)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	BasePath     string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// validateS3Config checks required S3 settings.
func validateS3Config(cfg S3Config) error {
	if cfg.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if cfg.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// s3API is the subset of manager.Uploader used here.
type s3API interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Uploader uploads segment objects to AWS S3, with optional server-side
// encryption (SSE-S3 or SSE-KMS).
type S3Uploader struct {
	api         s3API
	bucket      string
	sseEnabled  bool
	sseKMSKeyID string
}

// NewS3Uploader creates an uploader from the default AWS credential chain.
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	if err := validateS3Config(cfg); err != nil {
		return nil, err
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	// Segments are at most one chunk, so a single part is the common case
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = manager.MinUploadPartSize
		u.Concurrency = 1
	})

	return newS3Uploader(uploader, cfg), nil
}

func newS3Uploader(api s3API, cfg S3Config) *S3Uploader {
	return &S3Uploader{
		api:         api,
		bucket:      cfg.Bucket,
		sseEnabled:  cfg.SSEEnabled,
		sseKMSKeyID: cfg.SSEKMSKeyID,
	}
}

// Upload puts body under key.
func (u *S3Uploader) Upload(ctx context.Context, key, contentType string, body []byte) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	}

	if u.sseEnabled {
		if u.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(u.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}

	if _, err := u.api.Upload(ctx, input); err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}
	return nil
}

// Close is a no-op; the S3 client holds no closable resources.
func (u *S3Uploader) Close() error {
	return nil
}

// NewS3Sink creates an ObjectSink that writes segments to S3.
func NewS3Sink(
	ctx context.Context,
	cfg S3Config,
	stream string,
	enc encoder.Encoder,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*ObjectSink, error) {
	uploader, err := NewS3Uploader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("S3 sink created",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("format", string(enc.Format())),
		zap.Bool("sse_enabled", cfg.SSEEnabled),
	)

	router := NewRouter("s3", cfg.Bucket, cfg.BasePath)
	return NewObjectSink("s3", stream, router, enc, uploader, logger, metrics), nil
}
