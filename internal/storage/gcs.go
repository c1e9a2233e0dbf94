// Package storage implements Google Cloud Storage writer.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/ringlog/internal/encoder"
	"github.com/jittakal/ringlog/pkg/record"
	pkgstorage "github.com/jittakal/ringlog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ pkgstorage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// clientOptions selects the authentication method for the GCS client.
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

// GCSWriter implements storage.Writer for Google Cloud Storage.
type GCSWriter struct {
	client         *storage.Client
	bucket         string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(
	cfg GCSConfig,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	client, err := storage.NewClient(context.Background(), cfg.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"format", format,
		"compression", compression,
		"default_credentials", cfg.UseDefaultCredential || (cfg.CredentialsJSON == "" && cfg.CredentialsFile == ""),
	)

	return &GCSWriter{
		client:         client,
		bucket:         cfg.Bucket,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metricsOrNoop(metrics),
	}, nil
}

// Write encodes evictions in memory and streams them to a new GCS object.
func (w *GCSWriter) Write(
	ctx context.Context,
	evictions []record.Eviction,
	path string,
	format record.FileFormat,
) (int64, error) {
	if len(evictions) == 0 {
		return 0, fmt.Errorf("no records to write")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.metrics.IncStorageErrors("gcs", "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	data, err := enc.EncodeToBytes(evictions)
	if err != nil {
		w.metrics.IncStorageErrors("gcs", "encode")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}

	ext := enc.FileExtension()
	objectPath := objectKey(path, "gs") + archiveFileName(startTime, startTime.Nanosecond()/1e6, ext)

	gcsWriter := w.client.Bucket(w.bucket).Object(objectPath).NewWriter(ctx)
	gcsWriter.ContentType = contentType(ext)

	bytesWritten, err := io.Copy(gcsWriter, bytes.NewReader(data))
	if err != nil {
		w.metrics.IncStorageErrors("gcs", "upload")
		w.metrics.IncFilesWritten(string(format), "failure")
		gcsWriter.Close()
		return 0, fmt.Errorf("failed to write to GCS: %w", err)
	}

	// Close finalizes the upload
	if err := gcsWriter.Close(); err != nil {
		w.metrics.IncStorageErrors("gcs", "close")
		w.metrics.IncFilesWritten(string(format), "failure")
		return 0, fmt.Errorf("failed to close GCS writer: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to GCS",
		"bucket", w.bucket,
		"object", objectPath,
		"record_count", len(evictions),
		"bytes_written", bytesWritten,
		"format", format,
		"total_duration_ms", duration.Milliseconds(),
	)

	w.metrics.IncFilesWritten(string(format), "success")
	w.metrics.ObserveFileSize(string(format), float64(bytesWritten))
	w.metrics.ObserveStorageWriteDuration("gcs", duration.Seconds())

	return bytesWritten, nil
}

// Close closes the GCS writer.
func (w *GCSWriter) Close() error {
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
