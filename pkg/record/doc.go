// Package record defines the core record types shared across ringlog.
//
// A Record is an opaque byte sequence terminated by a single '\n'. Records
// live in a fixed-capacity ring; the log addresses them either by global byte
// offset (as if every valid record were concatenated oldest-first) or by a
// Position, which is a (record index, intra-record offset) pair.
//
// # Ownership
//
// A Record's Data is owned by the ring slot that holds it. When a slot is
// overwritten the displaced Record is returned by value to the caller, who
// then owns it:
//
//	evicted, ok := r.Add(rec)
//	if ok {
//	    archive(evicted)
//	}
//
// # Evictions
//
// Records leaving the ring are wrapped in an Eviction with a reason
// (ReasonOverwritten or ReasonTeardown) and may be shipped to an archive.
// The archive is write-only; nothing is ever reloaded from it.
package record
