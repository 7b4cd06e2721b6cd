package storage

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/jittakal/fifolog/pkg/encoder"
	"github.com/jittakal/fifolog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Uploader = (*GCSUploader)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	BasePath             string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// clientOptions builds client options from the configured credentials.
// Explicit JSON wins over a credentials file; otherwise ADC is used.
func (c GCSConfig) clientOptions() []option.ClientOption {
	var opts []option.ClientOption
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}

	switch {
	case c.UseDefaultCredential:
	case c.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(c.CredentialsJSON)))
	case c.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(c.CredentialsFile))
	}
	return opts
}

// GCSUploader uploads segment objects to a Google Cloud Storage bucket.
type GCSUploader struct {
	client *gcs.Client
	bucket string
}

// NewGCSUploader creates a new GCS uploader.
func NewGCSUploader(ctx context.Context, cfg GCSConfig) (*GCSUploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := gcs.NewClient(ctx, cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSUploader{client: client, bucket: cfg.Bucket}, nil
}

// Upload writes body as one object. The object is committed by Close on
// the object writer.
func (u *GCSUploader) Upload(ctx context.Context, key, contentType string, body []byte) error {
	w := u.client.Bucket(u.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = 0 // single request upload

	if _, err := w.Write(body); err != nil {
		w.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize GCS object: %w", err)
	}
	return nil
}

// Close closes the GCS client.
func (u *GCSUploader) Close() error {
	if u.client != nil {
		return u.client.Close()
	}
	return nil
}

// NewGCSSink creates an ObjectSink that writes segments to GCS.
func NewGCSSink(
	ctx context.Context,
	cfg GCSConfig,
	stream string,
	enc encoder.Encoder,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*ObjectSink, error) {
	uploader, err := NewGCSUploader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("GCS sink created",
		zap.String("bucket", cfg.Bucket),
		zap.String("project_id", cfg.ProjectID),
		zap.String("format", string(enc.Format())),
	)

	router := NewRouter("gs", cfg.Bucket, cfg.BasePath)
	return NewObjectSink("gcs", stream, router, enc, uploader, logger, metrics), nil
}
