// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrOutOfRange is returned when an offset or record index has no
	// corresponding data. It is distinct from an empty log: it can occur on a
	// non-empty log when the offset is past the end of its content.
	ErrOutOfRange = errors.New("offset out of range")

	// ErrInterrupted is returned when waiting for a lock was aborted. Nothing
	// was mutated; the caller should retry the whole operation.
	ErrInterrupted = errors.New("operation interrupted")

	// ErrAllocation is returned when storage for a record could not be
	// obtained. The accumulation buffer and the ring are left unchanged.
	ErrAllocation = errors.New("record storage allocation failed")

	// ErrBatchFull is returned when an archive batch reached its record or
	// size limit and must be flushed before accepting more.
	ErrBatchFull = errors.New("batch is full")

	ErrLogClosed      = errors.New("log is closed")
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrWriterClosed   = errors.New("storage writer is closed")
	ErrConnectionLost = errors.New("connection lost")
	ErrInvalidRecord  = errors.New("invalid record")
)

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return errors.As(err, target) }

// InterruptedError reports an aborted lock acquisition. It matches both
// ErrInterrupted and the context error that caused it.
type InterruptedError struct {
	Lock string
	Err  error
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted waiting for %s lock: %v", e.Lock, e.Err)
}

func (e *InterruptedError) Unwrap() []error {
	return []error{ErrInterrupted, e.Err}
}

// SeekError represents a failed seek to a (record index, intra-record offset) pair.
type SeekError struct {
	Index  int
	Offset int
	Err    error
}

func (e *SeekError) Error() string {
	return fmt.Sprintf("seek error: index=%d offset=%d: %v", e.Index, e.Offset, e.Err)
}

func (e *SeekError) Unwrap() error {
	return e.Err
}

// IngestError represents an error while appending a payload received from Kafka.
type IngestError struct {
	Topic     string
	Partition int32
	Offset    int64
	Err       error
}

func (e *IngestError) Error() string {
	return fmt.Sprintf("ingest error: topic=%s partition=%d offset=%d: %v",
		e.Topic, e.Partition, e.Offset, e.Err)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// ValidationError represents an inbound payload validation failure.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field=%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidRecord
}

// StorageError represents an archive storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.IsRetryable()
	}

	switch {
	case errors.Is(err, ErrInterrupted),
		errors.Is(err, ErrAllocation),
		errors.Is(err, ErrConnectionLost):
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if an IngestError is retryable.
func (e *IngestError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// Kind returns a short label for err, suitable as a metric label value.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrOutOfRange):
		return "out_of_range"
	case errors.Is(err, ErrInterrupted):
		return "interrupted"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrBatchFull):
		return "full"
	case errors.Is(err, ErrLogClosed), errors.Is(err, ErrWriterClosed), errors.Is(err, ErrConsumerClosed):
		return "closed"
	case errors.Is(err, ErrInvalidRecord):
		return "invalid"
	default:
		return "other"
	}
}
