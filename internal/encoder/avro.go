// Package encoder implements file format encoders.
package encoder

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jittakal/ringlog/pkg/encoder"
	"github.com/jittakal/ringlog/pkg/record"
	"github.com/linkedin/goavro/v2"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// It supports optional gzip compression and produces OCF (Object Container
// File) output readable by Spark and other Avro readers.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for archived evictions.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "EvictedRecord",
		"namespace": "io.ringlog.archive",
		"fields": [
			{"name": "seq", "type": "long"},
			{"name": "data", "type": "bytes"},
			{"name": "size", "type": "int"},
			{"name": "appended_at", "type": "string"},
			{"name": "evicted_at", "type": "string"},
			{"name": "reason", "type": "string"}
		]
	}`
}

// Encode writes evictions to an Avro file.
func (e *AvroEncoder) Encode(filePath string, evictions []record.Eviction) (*record.BatchStats, error) {
	if len(evictions) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if err := e.encodeTo(file, evictions); err != nil {
		return nil, err
	}

	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return fileStats(evictions, fileInfo.Size()), nil
}

// EncodeToBytes encodes evictions to bytes. Cloud writers use it to upload
// without touching the local filesystem.
func (e *AvroEncoder) EncodeToBytes(evictions []record.Eviction) ([]byte, error) {
	if len(evictions) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	if err := e.encodeTo(&buf, evictions); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) encodeTo(w io.Writer, evictions []record.Eviction) error {
	var gzipWriter *gzip.Writer
	if e.gzip() {
		gzipWriter = gzip.NewWriter(w)
		w = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: e.codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	for _, ev := range evictions {
		if err := ocfWriter.Append([]interface{}{toAvroMap(ev)}); err != nil {
			return fmt.Errorf("failed to write record %d: %w", ev.Record.Seq, err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

// toAvroMap converts an eviction to its Avro map representation.
func toAvroMap(ev record.Eviction) map[string]interface{} {
	return map[string]interface{}{
		"seq":         int64(ev.Record.Seq),
		"data":        ev.Record.Data,
		"size":        int32(ev.Record.Len()),
		"appended_at": ev.Record.AppendedAt.UTC().Format(time.RFC3339Nano),
		"evicted_at":  ev.EvictedAt.UTC().Format(time.RFC3339Nano),
		"reason":      ev.Reason,
	}
}

func (e *AvroEncoder) gzip() bool {
	return e.compression == "gzip" || e.compression == "GZIP"
}

// Format returns the file format.
func (e *AvroEncoder) Format() record.FileFormat {
	return record.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzip() {
		return ".avro.gz"
	}
	return ".avro"
}
