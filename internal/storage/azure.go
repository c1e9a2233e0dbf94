// Package storage implements Azure Blob storage writer.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/jittakal/ringlog/internal/encoder"
	"github.com/jittakal/ringlog/pkg/record"
	"github.com/jittakal/ringlog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// ConnectionString builds the shared-key connection string for the account.
func (c AzureConfig) ConnectionString() string {
	if c.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			c.AccountName, c.AccountKey, c.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		c.AccountName, c.AccountKey)
}

// AzureWriter implements storage.Writer for Azure Blob Storage.
type AzureWriter struct {
	client         *azblob.Client
	containerName  string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(
	cfg AzureConfig,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.ConnectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("Azure writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
		"format", format,
		"compression", compression,
	)

	return &AzureWriter{
		client:         client,
		containerName:  cfg.ContainerName,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metricsOrNoop(metrics),
	}, nil
}

// Write encodes evictions in memory and uploads them as a block blob.
func (w *AzureWriter) Write(ctx context.Context, evictions []record.Eviction, path string, format record.FileFormat) (int64, error) {
	if len(evictions) == 0 {
		return 0, fmt.Errorf("no records to write")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.metrics.IncStorageErrors("azure", "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	data, err := enc.EncodeToBytes(evictions)
	if err != nil {
		w.metrics.IncStorageErrors("azure", "encode")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}

	ext := enc.FileExtension()
	blobPath := objectKey(path, "wasbs") + archiveFileName(startTime, startTime.Nanosecond()/1e6, ext)

	ct := contentType(ext)
	_, err = w.client.UploadBuffer(ctx, w.containerName, blobPath, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		w.metrics.IncStorageErrors("azure", "upload")
		w.metrics.IncFilesWritten(string(format), "failure")
		return 0, fmt.Errorf("failed to upload to Azure Blob: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to Azure Blob",
		"container", w.containerName,
		"blob", blobPath,
		"record_count", len(evictions),
		"file_size", len(data),
		"format", format,
		"total_duration_ms", duration.Milliseconds(),
	)

	w.metrics.IncFilesWritten(string(format), "success")
	w.metrics.ObserveFileSize(string(format), float64(len(data)))
	w.metrics.ObserveStorageWriteDuration("azure", duration.Seconds())

	return int64(len(data)), nil
}

// Close closes the Azure writer.
func (w *AzureWriter) Close() error {
	w.logger.Info("Azure writer closed")
	return nil
}
