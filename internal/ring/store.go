package ring

import "github.com/jittakal/ringlog/pkg/record"

// store is the fixed array of record slots. It has no concurrency or ring
// semantics of its own; Ring decides which slots are valid.
type store struct {
	slots []record.Record
}

func newStore(capacity int) store {
	return store{slots: make([]record.Record, capacity)}
}

func (s *store) cap() int {
	return len(s.slots)
}

func (s *store) at(i int) record.Record {
	return s.slots[i]
}

// swap installs rec at slot i and returns whatever the slot held before.
// The previous value is handed over, not copied.
func (s *store) swap(i int, rec record.Record) record.Record {
	old := s.slots[i]
	s.slots[i] = rec
	return old
}

// take empties slot i and returns its record.
func (s *store) take(i int) record.Record {
	return s.swap(i, record.Record{})
}

func (s *store) clear() {
	clear(s.slots)
}
