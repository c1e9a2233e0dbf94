// Package encoder writes evicted ring records to archive file formats.
//
// # Supported Formats
//
//   - Parquet: columnar format for Athena and Spark queries
//   - Avro: row-based OCF with embedded schema
//
// Both formats carry the same columns: seq, data (the raw record bytes,
// terminator included), size, appended_at, evicted_at and reason.
//
// # Encoder Factory
//
//	factory := encoder.NewFactory(record.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := enc.Encode(filePath, evictions)
//
// Encoders returned by the factory also implement EncodeToBytes, which the
// cloud storage writers use to upload without a temporary file.
//
// # Compression Options
//
//	Parquet: "snappy" (default), "gzip", "lz4", "zstd", "uncompressed"
//	Avro:    "gzip", "uncompressed"
//
// Encoder instances hold no per-call state and are safe for concurrent use.
package encoder
