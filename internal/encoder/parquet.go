// Package encoder implements file format encoders.
package encoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jittakal/ringlog/pkg/encoder"
	"github.com/jittakal/ringlog/pkg/record"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// EvictedRecordParquet is the Parquet row for one archived eviction.
// Time fields use TIMESTAMP_MICROS for Athena compatibility.
type EvictedRecordParquet struct {
	Seq        int64     `parquet:"seq"`
	Data       []byte    `parquet:"data"`
	Size       int32     `parquet:"size"`
	AppendedAt time.Time `parquet:"appended_at,timestamp(microsecond)"`
	EvictedAt  time.Time `parquet:"evicted_at,timestamp(microsecond)"`
	Reason     string    `parquet:"reason,dict"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Supports SNAPPY (default), GZIP, LZ4 and ZSTD compression.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes evictions to a Parquet file.
func (e *ParquetEncoder) Encode(filePath string, evictions []record.Eviction) (*record.BatchStats, error) {
	if len(evictions) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if err := e.encodeTo(file, evictions); err != nil {
		file.Close()
		return nil, err
	}

	// Close file before getting stats to ensure all data is flushed
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return fileStats(evictions, fileInfo.Size()), nil
}

// EncodeToBytes encodes evictions to an in-memory Parquet file.
func (e *ParquetEncoder) EncodeToBytes(evictions []record.Eviction) ([]byte, error) {
	if len(evictions) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	if err := e.encodeTo(&buf, evictions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *ParquetEncoder) encodeTo(w io.Writer, evictions []record.Eviction) error {
	rows := make([]EvictedRecordParquet, len(evictions))
	for i, ev := range evictions {
		rows[i] = toParquetRow(ev)
	}

	writer := parquet.NewGenericWriter[EvictedRecordParquet](
		w,
		parquet.SchemaOf(new(EvictedRecordParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("ringlog", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func toParquetRow(ev record.Eviction) EvictedRecordParquet {
	return EvictedRecordParquet{
		Seq:        int64(ev.Record.Seq),
		Data:       ev.Record.Data,
		Size:       int32(ev.Record.Len()),
		AppendedAt: ev.Record.AppendedAt.UTC(),
		EvictedAt:  ev.EvictedAt.UTC(),
		Reason:     ev.Reason,
	}
}

// Format returns the file format.
func (e *ParquetEncoder) Format() record.FileFormat {
	return record.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
