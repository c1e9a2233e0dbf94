package ring

import (
	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/record"
)

// StartOffset returns the global byte offset of the first byte of the record
// at logical index, summing the lengths of the records before it.
func (r *Ring) StartOffset(index int) (int64, error) {
	if index < 0 || index >= r.Len() {
		return 0, &errors.SeekError{Index: index, Err: errors.ErrOutOfRange}
	}

	var off int64
	for j, i := 0, r.out; j < index; j, i = j+1, r.advance(i) {
		off += int64(r.slots.at(i).Len())
	}
	return off, nil
}

// Seek converts a (record index, intra-record offset) pair into a global
// byte offset. The offset must address a byte inside the record.
func (r *Ring) Seek(index, offset int) (int64, error) {
	start, err := r.StartOffset(index)
	if err != nil {
		if seekErr, ok := err.(*errors.SeekError); ok {
			seekErr.Offset = offset
		}
		return 0, err
	}

	rec := r.slots.at(r.physical(index))
	if offset < 0 || offset >= rec.Len() {
		return 0, &errors.SeekError{Index: index, Offset: offset, Err: errors.ErrOutOfRange}
	}
	return start + int64(offset), nil
}

// Locate is the inverse of Seek: it returns the position of a global offset.
func (r *Ring) Locate(off int64) (record.Position, error) {
	_, pos, ok := r.Find(off)
	if !ok {
		return record.Position{}, errors.ErrOutOfRange
	}
	return pos, nil
}
