package storage

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"go.uber.org/zap"

	"github.com/jittakal/fifolog/pkg/encoder"
	"github.com/jittakal/fifolog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Uploader = (*AzureUploader)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	BasePath      string
	Endpoint      string
}

// connectionString builds a shared-key connection string. A custom
// endpoint (e.g. Azurite) replaces the public endpoint suffix.
func (c AzureConfig) connectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// azureAPI is the subset of azblob.Client used here.
type azureAPI interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureUploader uploads segment blobs to an Azure Blob Storage container.
type AzureUploader struct {
	api       azureAPI
	container string
}

// NewAzureUploader creates a new Azure uploader.
func NewAzureUploader(cfg AzureConfig) (*AzureUploader, error) {
	if cfg.AccountName == "" || cfg.ContainerName == "" {
		return nil, fmt.Errorf("azure account name and container are required")
	}

	client, err := azblob.NewClientFromConnectionString(cfg.connectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	return &AzureUploader{api: client, container: cfg.ContainerName}, nil
}

// Upload writes body as one block blob.
func (u *AzureUploader) Upload(ctx context.Context, key, contentType string, body []byte) error {
	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := u.api.UploadBuffer(ctx, u.container, key, body, opts); err != nil {
		return fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}
	return nil
}

// Close is a no-op; the Azure client holds no closable resources.
func (u *AzureUploader) Close() error {
	return nil
}

// NewAzureSink creates an ObjectSink that writes segments to Azure Blob Storage.
func NewAzureSink(
	cfg AzureConfig,
	stream string,
	enc encoder.Encoder,
	logger *zap.Logger,
	metrics MetricsCollector,
) (*ObjectSink, error) {
	uploader, err := NewAzureUploader(cfg)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Azure sink created",
		zap.String("container", cfg.ContainerName),
		zap.String("account", cfg.AccountName),
		zap.String("format", string(enc.Format())),
	)

	router := NewRouter("wasbs", cfg.ContainerName, cfg.BasePath)
	return NewObjectSink("azure", stream, router, enc, uploader, logger, metrics), nil
}
