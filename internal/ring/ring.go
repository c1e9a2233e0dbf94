// Package ring implements a fixed-capacity circular log of variable-length records.
package ring

import (
	"fmt"

	"github.com/jittakal/ringlog/pkg/record"
)

// DefaultCapacity is the number of slots used when no capacity is configured.
const DefaultCapacity = 10

// Ring is a fixed-capacity circular log of records addressed by global byte
// offset. When full, adding a record displaces the oldest one.
//
// Ring is not safe for concurrent use; callers serialize access.
type Ring struct {
	slots store
	in    int   // next slot to fill
	out   int   // oldest valid slot
	full  bool  // in caught up with out after at least one lap
	size  int64 // sum of the lengths of all valid records
}

// New creates an empty ring with the given number of slots.
func New(capacity int) (*Ring, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("ring capacity must be at least 1, got %d", capacity)
	}
	return &Ring{slots: newStore(capacity)}, nil
}

// Reset empties every slot and rewinds both cursors. Records still held are
// dropped, not returned; use Drain first to take ownership of them.
func (r *Ring) Reset() {
	r.slots.clear()
	r.in = 0
	r.out = 0
	r.full = false
	r.size = 0
}

// Add installs rec at the write cursor. If the ring was full, the record that
// occupied the slot is the oldest one; it is returned with ok set, and the
// caller owns it from then on. Add never allocates.
func (r *Ring) Add(rec record.Record) (evicted record.Record, ok bool) {
	if r.full {
		evicted = r.slots.swap(r.in, rec)
		ok = true
		r.size -= int64(evicted.Len())
	} else {
		r.slots.swap(r.in, rec)
	}
	r.size += int64(rec.Len())

	r.in = r.advance(r.in)
	if ok {
		r.out = r.advance(r.out)
	} else if r.in == r.out {
		r.full = true
	}
	return evicted, ok
}

// Find resolves a global byte offset into the record containing it and the
// position of that byte. An offset on a record boundary resolves to byte 0
// of the later record. ok is false if the offset is past the end of the data.
func (r *Ring) Find(off int64) (rec record.Record, pos record.Position, ok bool) {
	if off < 0 {
		return record.Record{}, record.Position{}, false
	}

	var acc int64
	// The lap guard (j == 0) keeps a full ring, where in == out, from being
	// walked as if it were empty.
	for j, i := 0, r.out; j < r.Len() && (j == 0 || i != r.in); j, i = j+1, r.advance(i) {
		cur := r.slots.at(i)
		n := int64(cur.Len())
		if acc+n > off {
			return cur, record.Position{Index: j, Offset: int(off - acc)}, true
		}
		acc += n
	}
	return record.Record{}, record.Position{}, false
}

// At returns the record at logical index i, where 0 is the oldest.
func (r *Ring) At(i int) (record.Record, bool) {
	if i < 0 || i >= r.Len() {
		return record.Record{}, false
	}
	return r.slots.at(r.physical(i)), true
}

// Each calls fn for every valid record, oldest first, until fn returns false.
func (r *Ring) Each(fn func(i int, rec record.Record) bool) {
	for j := 0; j < r.Len(); j++ {
		if !fn(j, r.slots.at(r.physical(j))) {
			return
		}
	}
}

// Drain removes and returns every valid record, oldest first, then resets
// the ring. Each record is returned exactly once.
func (r *Ring) Drain() []record.Record {
	n := r.Len()
	if n == 0 {
		r.Reset()
		return nil
	}
	out := make([]record.Record, 0, n)
	for j := 0; j < n; j++ {
		out = append(out, r.slots.take(r.physical(j)))
	}
	r.Reset()
	return out
}

// Len returns the number of valid records.
func (r *Ring) Len() int {
	switch {
	case r.full:
		return r.slots.cap()
	case r.in >= r.out:
		return r.in - r.out
	default:
		return r.slots.cap() - r.out + r.in
	}
}

// Cap returns the number of slots.
func (r *Ring) Cap() int {
	return r.slots.cap()
}

// Size returns the total logical byte length of all valid records.
func (r *Ring) Size() int64 {
	return r.size
}

// Full reports whether every slot holds a valid record.
func (r *Ring) Full() bool {
	return r.full
}

// Empty reports whether the ring holds no records.
func (r *Ring) Empty() bool {
	return !r.full && r.in == r.out
}

func (r *Ring) advance(i int) int {
	i++
	if i == r.slots.cap() {
		return 0
	}
	return i
}

func (r *Ring) physical(logical int) int {
	return (r.out + logical) % r.slots.cap()
}
