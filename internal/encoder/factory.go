// Package encoder implements encoder factory for creating file format encoders.
package encoder

import (
	"fmt"

	"github.com/jittakal/ringlog/pkg/encoder"
	"github.com/jittakal/ringlog/pkg/record"
)

// BytesEncoder is an encoder that can also produce its output in memory.
// Both built-in encoders implement it.
type BytesEncoder interface {
	encoder.Encoder
	EncodeToBytes(evictions []record.Eviction) ([]byte, error)
}

// Factory creates encoders based on format and configuration.
type Factory struct {
	format      record.FileFormat
	compression string
}

// NewFactory creates a new encoder factory.
func NewFactory(format record.FileFormat, compression string) *Factory {
	return &Factory{
		format:      format,
		compression: compression,
	}
}

// CreateEncoder creates an encoder based on the configured format.
func (f *Factory) CreateEncoder() (BytesEncoder, error) {
	switch f.format {
	case record.FormatParquet:
		return NewParquetEncoder(f.compression), nil
	case record.FormatAvro:
		return NewAvroEncoder(f.compression)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", f.format)
	}
}

// SupportedFormats returns a list of supported file formats.
func SupportedFormats() []record.FileFormat {
	return []record.FileFormat{
		record.FormatParquet,
		record.FormatAvro,
	}
}

// SupportedCompressions returns supported compression codecs for a given format.
func SupportedCompressions(format record.FileFormat) []string {
	switch format {
	case record.FormatParquet:
		return []string{"uncompressed", "snappy", "gzip", "lz4", "zstd"}
	case record.FormatAvro:
		return []string{"uncompressed", "gzip"}
	default:
		return []string{}
	}
}

// DefaultCompression returns the default compression for a format.
func DefaultCompression(format record.FileFormat) string {
	switch format {
	case record.FormatParquet:
		return "snappy"
	case record.FormatAvro:
		return "gzip"
	default:
		return "uncompressed"
	}
}

// fileStats describes a written file holding evictions.
func fileStats(evictions []record.Eviction, size int64) *record.BatchStats {
	return &record.BatchStats{
		RecordCount:    len(evictions),
		SizeBytes:      size,
		FirstWriteTime: evictions[0].EvictedAt,
		LastWriteTime:  evictions[len(evictions)-1].EvictedAt,
	}
}
