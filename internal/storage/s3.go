// Package storage implements S3 storage writer.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/ringlog/internal/encoder"
	"github.com/jittakal/ringlog/pkg/record"
	"github.com/jittakal/ringlog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Writer implements storage.Writer for AWS S3 storage.
// It uploads through the multipart upload manager with optional
// server-side encryption.
type S3Writer struct {
	uploader       *manager.Uploader
	bucket         string
	sseEnabled     bool
	sseKMSKeyID    string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(
	cfg S3Config,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	awsConfig, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(s3Client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024 // 10MB parts
		u.Concurrency = 5
	})

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"format", format,
		"compression", compression,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Writer{
		uploader:       uploader,
		bucket:         cfg.Bucket,
		sseEnabled:     cfg.SSEEnabled,
		sseKMSKeyID:    cfg.SSEKMSKeyID,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metricsOrNoop(metrics),
	}, nil
}

// putInput builds the upload request for one archive object.
func (w *S3Writer) putInput(key string, body []byte, ext string) *s3.PutObjectInput {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType(ext)),
	}

	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			input.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			input.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			input.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return input
}

// Write encodes evictions in memory and uploads them to S3.
func (w *S3Writer) Write(
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

	fileEncoder, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.metrics.IncStorageErrors("s3", "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	data, err := fileEncoder.EncodeToBytes(evictions)
	if err != nil {
		w.metrics.IncStorageErrors("s3", "encode")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}

	ext := fileEncoder.FileExtension()
	key := objectKey(path, "s3") + archiveFileName(startTime, startTime.Nanosecond()/1e6, ext)

	result, err := w.uploader.Upload(ctx, w.putInput(key, data, ext))
	if err != nil {
		w.metrics.IncStorageErrors("s3", "upload")
		w.metrics.IncFilesWritten(string(format), "failure")
		return 0, fmt.Errorf("failed to upload to S3: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to S3",
		"bucket", w.bucket,
		"key", key,
		"record_count", len(evictions),
		"file_size", len(data),
		"format", format,
		"location", result.Location,
		"total_duration_ms", duration.Milliseconds(),
	)

	w.metrics.IncFilesWritten(string(format), "success")
	w.metrics.ObserveFileSize(string(format), float64(len(data)))
	w.metrics.ObserveStorageWriteDuration("s3", duration.Seconds())

	return int64(len(data)), nil
}

// Close closes the S3 writer.
func (w *S3Writer) Close() error {
	w.logger.Info("closing S3 writer")
	return nil
}
