// Package storage implements storage writer implementations.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jittakal/ringlog/internal/encoder"
	"github.com/jittakal/ringlog/pkg/record"
	"github.com/jittakal/ringlog/pkg/storage"
)

// Ensure implementation satisfies interface at compile time.
var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter implements storage.Writer for local filesystem storage.
// Files are written under BasePath following the routed directory layout.
type FileWriter struct {
	basePath       string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	metrics        MetricsCollector
	mu             sync.Mutex
	fileSequence   int    // Sequence counter for files created in the same second
	lastTimestamp  string // Last timestamp used for filename generation
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(
	config FileConfig,
	format record.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("filesystem writer created",
		"base_path", config.BasePath,
		"format", format,
		"compression", compression,
	)

	return &FileWriter{
		basePath:       config.BasePath,
		encoderFactory: encoderFactory,
		logger:         logger,
		metrics:        metricsOrNoop(metrics),
	}, nil
}

// Write encodes evictions into a new file below the routed path.
func (w *FileWriter) Write(
	ctx context.Context,
	evictions []record.Eviction,
	path string,
	format record.FileFormat,
) (int64, error) {
	if len(evictions) == 0 {
		return 0, fmt.Errorf("no records to write")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	startTime := time.Now()

	fileEncoder, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		w.metrics.IncStorageErrors("file", "encoder_create")
		return 0, fmt.Errorf("failed to create encoder: %w", err)
	}

	timestamp := startTime.UTC().Format("20060102_150405")
	if timestamp == w.lastTimestamp {
		w.fileSequence++
	} else {
		w.fileSequence = 1
		w.lastTimestamp = timestamp
	}

	dir := filepath.Join(w.basePath, objectKey(path, "file"))
	fullPath := filepath.Join(dir, archiveFileName(startTime, w.fileSequence, fileEncoder.FileExtension()))

	if err := os.MkdirAll(dir, 0755); err != nil {
		w.metrics.IncStorageErrors("file", "mkdir")
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	stats, err := fileEncoder.Encode(fullPath, evictions)
	if err != nil {
		w.metrics.IncStorageErrors("file", "encode")
		w.metrics.IncFilesWritten(string(format), "failure")
		return 0, fmt.Errorf("failed to encode records: %w", err)
	}

	duration := time.Since(startTime)

	w.logger.Info("wrote records to file",
		"path", fullPath,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"format", format,
		"total_duration_ms", duration.Milliseconds(),
	)

	w.metrics.IncFilesWritten(string(format), "success")
	w.metrics.ObserveFileSize(string(format), float64(stats.SizeBytes))
	w.metrics.ObserveStorageWriteDuration("file", duration.Seconds())

	return stats.SizeBytes, nil
}

// Close closes the writer.
func (w *FileWriter) Close() error {
	w.logger.Info("closing filesystem writer")
	return nil
}
