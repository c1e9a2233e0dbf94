// Package record defines the core record types shared by the ring, the
// socket front end, the Kafka ingest path and the eviction archive.
package record

import (
	"fmt"
	"time"
)

// Terminator ends every record stored in the ring. It is stored as part of
// the record's bytes.
const Terminator = '\n'

// Record is one complete, terminator-delimited unit of data held in a ring slot.
// Data is owned by the slot that holds it and must not be modified once the
// record has been installed.
type Record struct {
	Seq        uint64
	Data       []byte
	AppendedAt time.Time
}

// Len returns the number of bytes in the record, terminator included.
func (r Record) Len() int {
	return len(r.Data)
}

// IsZero reports whether r is an empty slot value.
func (r Record) IsZero() bool {
	return r.Data == nil && r.Seq == 0
}

// Position addresses a byte inside the log as a (record index, intra-record
// offset) pair. Index 0 is the oldest valid record.
type Position struct {
	Index  int
	Offset int
}

// String returns the position in the "index,offset" form used by the seek command.
func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.Index, p.Offset)
}

// Stats describes the current state of a log.
type Stats struct {
	Records       int
	Capacity      int
	SizeBytes     int64
	PendingBytes  int
	TotalAppended uint64
	TotalEvicted  uint64
}

// Full reports whether every slot holds a record.
func (s Stats) Full() bool {
	return s.Capacity > 0 && s.Records == s.Capacity
}

// Eviction is a record that left the ring, either overwritten by a newer
// record or drained at teardown.
type Eviction struct {
	Record    Record
	Reason    string
	EvictedAt time.Time
}

// Eviction reasons.
const (
	ReasonOverwritten = "overwritten"
	ReasonTeardown    = "teardown"
)

// BatchStats contains statistics about a batch of evictions waiting to be archived.
type BatchStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// FileFormat represents the archive file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// Inbound is a payload received from an external producer such as Kafka,
// before it has been validated and appended.
type Inbound struct {
	Topic      string
	Partition  int32
	Offset     int64
	Key        []byte
	Value      []byte
	Headers    map[string]string
	Timestamp  time.Time
	CommitFunc func() error
}

// Source returns a "topic-partition" label for the inbound payload.
func (in *Inbound) Source() string {
	return fmt.Sprintf("%s-%d", in.Topic, in.Partition)
}
