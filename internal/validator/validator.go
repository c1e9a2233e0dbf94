// Package validator checks inbound payloads before they are appended to the log.
package validator

import (
	"bytes"
	"fmt"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/record"
)

// RecordValidator validates that an inbound payload frames as exactly one record.
type RecordValidator struct {
	maxBytes int
}

// NewRecordValidator creates a validator rejecting records longer than
// maxBytes once terminated. A non-positive maxBytes disables the size check.
func NewRecordValidator(maxBytes int) *RecordValidator {
	return &RecordValidator{maxBytes: maxBytes}
}

// Validate validates an inbound payload.
func (v *RecordValidator) Validate(in *record.Inbound) error {
	if len(in.Value) == 0 {
		return &errors.ValidationError{
			Field:  "value",
			Reason: "payload is empty",
		}
	}

	// Normalize a missing terminator
	if in.Value[len(in.Value)-1] != record.Terminator {
		framed := make([]byte, len(in.Value)+1)
		copy(framed, in.Value)
		framed[len(in.Value)] = record.Terminator
		in.Value = framed
	}

	if i := bytes.IndexByte(in.Value, record.Terminator); i != len(in.Value)-1 {
		return &errors.ValidationError{
			Field:  "value",
			Reason: fmt.Sprintf("embedded terminator at offset %d", i),
		}
	}

	if v.maxBytes > 0 && len(in.Value) > v.maxBytes {
		return &errors.ValidationError{
			Field:  "value",
			Reason: fmt.Sprintf("record of %d bytes exceeds limit of %d", len(in.Value), v.maxBytes),
		}
	}

	return nil
}
