// Package encoder defines interfaces for encoding evicted records to archive file formats.
package encoder

import "github.com/jittakal/ringlog/pkg/record"

// Encoder encodes evictions to a specific file format.
type Encoder interface {
	// Encode writes evictions to a file and returns statistics for the written file.
	Encode(filePath string, evictions []record.Eviction) (*record.BatchStats, error)

	// Format returns the file format this encoder produces.
	Format() record.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".avro").
	FileExtension() string
}
