package ring

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/jittakal/ringlog/internal/errors"
	"github.com/jittakal/ringlog/pkg/record"
)

func rec(seq uint64, s string) record.Record {
	return record.Record{Seq: seq, Data: []byte(s)}
}

func mustNew(t *testing.T, capacity int) *Ring {
	t.Helper()
	r, err := New(capacity)
	if err != nil {
		t.Fatalf("New(%d) error = %v", capacity, err)
	}
	return r
}

// contents concatenates every valid record in logical order.
func contents(r *Ring) []byte {
	var buf bytes.Buffer
	r.Each(func(_ int, rec record.Record) bool {
		buf.Write(rec.Data)
		return true
	})
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantErr  bool
	}{
		{name: "default", capacity: DefaultCapacity},
		{name: "single slot", capacity: 1},
		{name: "zero", capacity: 0, wantErr: true},
		{name: "negative", capacity: -3, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.capacity)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if r.Cap() != tt.capacity {
				t.Errorf("Cap() = %d, want %d", r.Cap(), tt.capacity)
			}
			if !r.Empty() || r.Full() || r.Len() != 0 || r.Size() != 0 {
				t.Errorf("new ring not empty: len=%d size=%d full=%v", r.Len(), r.Size(), r.Full())
			}
		})
	}
}

func TestRing_CapacityInvariant(t *testing.T) {
	const capacity = 5

	for n := 0; n <= 3*capacity+1; n++ {
		t.Run(fmt.Sprintf("appends=%d", n), func(t *testing.T) {
			r := mustNew(t, capacity)
			for i := 0; i < n; i++ {
				r.Add(rec(uint64(i+1), fmt.Sprintf("line-%d\n", i)))
			}

			want := min(n, capacity)
			if r.Len() != want {
				t.Fatalf("Len() = %d, want %d", r.Len(), want)
			}
			if r.Full() != (n >= capacity) {
				t.Errorf("Full() = %v, want %v", r.Full(), n >= capacity)
			}

			var wantSize int64
			r.Each(func(i int, got record.Record) bool {
				wantSeq := uint64(n - want + i + 1)
				if got.Seq != wantSeq {
					t.Errorf("record %d Seq = %d, want %d", i, got.Seq, wantSeq)
				}
				wantSize += int64(got.Len())
				return true
			})
			if r.Size() != wantSize {
				t.Errorf("Size() = %d, want %d", r.Size(), wantSize)
			}
		})
	}
}

func TestRing_Scenario(t *testing.T) {
	r := mustNew(t, 4)

	lines := []string{"aa\n", "bb\n", "cc\n", "dd\n", "ee\n"}
	var evicted []record.Record
	for i, l := range lines {
		ev, ok := r.Add(rec(uint64(i+1), l))
		if ok {
			evicted = append(evicted, ev)
		}
		if i < 4 && ok {
			t.Fatalf("append %d evicted %q before the ring was full", i, ev.Data)
		}
	}

	if len(evicted) != 1 || string(evicted[0].Data) != "aa\n" {
		t.Fatalf("evicted = %v, want [aa\\n]", evicted)
	}
	if got := string(contents(r)); got != "bb\ncc\ndd\nee\n" {
		t.Errorf("contents = %q, want %q", got, "bb\ncc\ndd\nee\n")
	}
	if r.Size() != 12 {
		t.Errorf("Size() = %d, want 12", r.Size())
	}

	got, pos, ok := r.Find(0)
	if !ok || string(got.Data) != "bb\n" || pos.Offset != 0 || pos.Index != 0 {
		t.Errorf("Find(0) = (%q, %v, %v), want (bb\\n, 0,0, true)", got.Data, pos, ok)
	}

	got, pos, ok = r.Find(11)
	if !ok || string(got.Data) != "ee\n" || pos.Offset != 2 || pos.Index != 3 {
		t.Errorf("Find(11) = (%q, %v, %v), want (ee\\n, 3,2, true)", got.Data, pos, ok)
	}
}

func TestRing_FindMatchesConcatenation(t *testing.T) {
	lines := []string{"a\n", "longer line\n", "\n", "xyz\n", "0123456789\n", "q\n", "last one\n"}

	for _, capacity := range []int{1, 3, 4, 7, 10} {
		for n := 1; n <= len(lines); n++ {
			t.Run(fmt.Sprintf("cap=%d/n=%d", capacity, n), func(t *testing.T) {
				r := mustNew(t, capacity)
				for i := 0; i < n; i++ {
					r.Add(rec(uint64(i+1), lines[i]))
				}

				flat := contents(r)
				if int64(len(flat)) != r.Size() {
					t.Fatalf("Size() = %d, want %d", r.Size(), len(flat))
				}
				for off := range flat {
					got, pos, ok := r.Find(int64(off))
					if !ok {
						t.Fatalf("Find(%d) not found", off)
					}
					if got.Data[pos.Offset] != flat[off] {
						t.Errorf("Find(%d) byte = %q, want %q", off, got.Data[pos.Offset], flat[off])
					}
				}
			})
		}
	}
}

func TestRing_FindBoundaries(t *testing.T) {
	r := mustNew(t, 3)
	r.Add(rec(1, "ab\n"))
	r.Add(rec(2, "cd\n"))

	tests := []struct {
		name       string
		off        int64
		wantOK     bool
		wantData   string
		wantOffset int
	}{
		{name: "first byte", off: 0, wantOK: true, wantData: "ab\n", wantOffset: 0},
		{name: "end of first record", off: 2, wantOK: true, wantData: "ab\n", wantOffset: 2},
		{name: "record boundary", off: 3, wantOK: true, wantData: "cd\n", wantOffset: 0},
		{name: "last byte", off: 5, wantOK: true, wantData: "cd\n", wantOffset: 2},
		{name: "total length", off: 6, wantOK: false},
		{name: "past end", off: 100, wantOK: false},
		{name: "negative", off: -1, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, pos, ok := r.Find(tt.off)
			if ok != tt.wantOK {
				t.Fatalf("Find(%d) ok = %v, want %v", tt.off, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if string(got.Data) != tt.wantData || pos.Offset != tt.wantOffset {
				t.Errorf("Find(%d) = (%q, %d), want (%q, %d)", tt.off, got.Data, pos.Offset, tt.wantData, tt.wantOffset)
			}
		})
	}
}

func TestRing_FindEmpty(t *testing.T) {
	r := mustNew(t, 4)
	if _, _, ok := r.Find(0); ok {
		t.Error("Find(0) on empty ring should not match")
	}
}

func TestRing_FullRingWalk(t *testing.T) {
	const capacity = 6
	r := mustNew(t, capacity)
	for i := 0; i < capacity; i++ {
		r.Add(rec(uint64(i+1), fmt.Sprintf("%d\n", i)))
	}

	if !r.Full() {
		t.Fatal("ring should be full after exactly capacity appends")
	}
	if r.in != r.out {
		t.Fatalf("in = %d, out = %d; a full ring has equal cursors", r.in, r.out)
	}

	seen := make(map[int]bool)
	for off := int64(0); off < r.Size(); off++ {
		_, pos, ok := r.Find(off)
		if !ok {
			t.Fatalf("Find(%d) not found on a full ring", off)
		}
		seen[pos.Index] = true
	}
	if len(seen) != capacity {
		t.Errorf("visited %d records, want %d", len(seen), capacity)
	}
	if _, _, ok := r.Find(r.Size() - 1); !ok {
		t.Error("last byte of a full ring should resolve")
	}
}

func TestRing_EvictionOwnership(t *testing.T) {
	r := mustNew(t, 3)
	for i := 1; i <= 3; i++ {
		r.Add(rec(uint64(i), fmt.Sprintf("r%d\n", i)))
	}

	oldest, _ := r.At(0)
	ev, ok := r.Add(rec(4, "r4\n"))
	if !ok {
		t.Fatal("Add on a full ring should evict")
	}
	if ev.Seq != oldest.Seq || !bytes.Equal(ev.Data, oldest.Data) {
		t.Errorf("evicted Seq %d, want oldest Seq %d", ev.Seq, oldest.Seq)
	}

	r.Each(func(_ int, got record.Record) bool {
		if got.Seq == ev.Seq {
			t.Errorf("evicted record Seq %d still present", ev.Seq)
		}
		return true
	})
	if bytes.Contains(contents(r), []byte("r1\n")) {
		t.Error("evicted bytes reappear in the log")
	}
}

func TestRing_Seek(t *testing.T) {
	r := mustNew(t, 4)
	for i, l := range []string{"aa\n", "bb\n", "cc\n", "dd\n", "ee\n"} {
		r.Add(rec(uint64(i+1), l))
	}

	tests := []struct {
		name    string
		index   int
		offset  int
		want    int64
		wantErr bool
	}{
		{name: "first record", index: 0, offset: 0, want: 0},
		{name: "inside second", index: 1, offset: 1, want: 4},
		{name: "last byte", index: 3, offset: 2, want: 11},
		{name: "offset at record length", index: 0, offset: 3, wantErr: true},
		{name: "negative offset", index: 0, offset: -1, wantErr: true},
		{name: "index out of range", index: 4, offset: 0, wantErr: true},
		{name: "negative index", index: -1, offset: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Seek(tt.index, tt.offset)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Seek() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !stderrors.Is(err, errors.ErrOutOfRange) {
					t.Errorf("Seek() error = %v, want ErrOutOfRange", err)
				}
				var seekErr *errors.SeekError
				if !stderrors.As(err, &seekErr) || seekErr.Index != tt.index || seekErr.Offset != tt.offset {
					t.Errorf("Seek() error = %#v, want SeekError{%d,%d}", err, tt.index, tt.offset)
				}
				return
			}
			if got != tt.want {
				t.Errorf("Seek(%d,%d) = %d, want %d", tt.index, tt.offset, got, tt.want)
			}
		})
	}
}

func TestRing_SeekRoundTrip(t *testing.T) {
	r := mustNew(t, 5)
	for i, l := range []string{"one\n", "\n", "three three\n", "4\n", "five\n", "six six six\n", "7\n"} {
		r.Add(rec(uint64(i+1), l))
	}

	r.Each(func(i int, got record.Record) bool {
		for o := 0; o < got.Len(); o++ {
			off, err := r.Seek(i, o)
			if err != nil {
				t.Fatalf("Seek(%d,%d) error = %v", i, o, err)
			}
			pos, err := r.Locate(off)
			if err != nil {
				t.Fatalf("Locate(%d) error = %v", off, err)
			}
			if pos != (record.Position{Index: i, Offset: o}) {
				t.Errorf("Locate(Seek(%d,%d)) = %v", i, o, pos)
			}
		}
		return true
	})
}

func TestRing_StartOffset(t *testing.T) {
	r := mustNew(t, 3)
	r.Add(rec(1, "a\n"))
	r.Add(rec(2, "bbb\n"))
	r.Add(rec(3, "cc\n"))

	want := []int64{0, 2, 6}
	for i, w := range want {
		got, err := r.StartOffset(i)
		if err != nil {
			t.Fatalf("StartOffset(%d) error = %v", i, err)
		}
		if got != w {
			t.Errorf("StartOffset(%d) = %d, want %d", i, got, w)
		}
	}
	if _, err := r.StartOffset(3); !stderrors.Is(err, errors.ErrOutOfRange) {
		t.Errorf("StartOffset(3) error = %v, want ErrOutOfRange", err)
	}
}

func TestRing_DrainAndReset(t *testing.T) {
	r := mustNew(t, 3)
	for i := 1; i <= 5; i++ {
		r.Add(rec(uint64(i), fmt.Sprintf("%d\n", i)))
	}

	drained := r.Drain()
	if len(drained) != 3 {
		t.Fatalf("Drain() returned %d records, want 3", len(drained))
	}
	for i, d := range drained {
		if d.Seq != uint64(i+3) {
			t.Errorf("drained[%d].Seq = %d, want %d", i, d.Seq, i+3)
		}
	}
	if !r.Empty() || r.Size() != 0 {
		t.Errorf("ring not empty after Drain: len=%d size=%d", r.Len(), r.Size())
	}
	if again := r.Drain(); again != nil {
		t.Errorf("second Drain() = %v, want nil", again)
	}

	r.Add(rec(9, "z\n"))
	r.Reset()
	if !r.Empty() || r.Len() != 0 {
		t.Error("ring not empty after Reset")
	}
	if _, ok := r.Add(rec(10, "y\n")); ok {
		t.Error("Add after Reset should not evict")
	}
}

func TestRing_SingleSlot(t *testing.T) {
	r := mustNew(t, 1)

	if _, ok := r.Add(rec(1, "a\n")); ok {
		t.Fatal("first Add should not evict")
	}
	if !r.Full() {
		t.Fatal("single-slot ring should be full after one Add")
	}
	ev, ok := r.Add(rec(2, "bb\n"))
	if !ok || ev.Seq != 1 {
		t.Fatalf("Add() evicted = (%v, %v), want Seq 1", ev.Seq, ok)
	}
	if r.Size() != 3 {
		t.Errorf("Size() = %d, want 3", r.Size())
	}
	got, pos, ok := r.Find(2)
	if !ok || got.Seq != 2 || pos.Offset != 2 {
		t.Errorf("Find(2) = (%d, %v, %v), want (2, 0,2, true)", got.Seq, pos, ok)
	}
}

func TestRing_EachStopsEarly(t *testing.T) {
	r := mustNew(t, 4)
	for i := 1; i <= 4; i++ {
		r.Add(rec(uint64(i), "x\n"))
	}

	calls := 0
	r.Each(func(i int, _ record.Record) bool {
		calls++
		return i < 1
	})
	if calls != 2 {
		t.Errorf("Each called fn %d times, want 2", calls)
	}
}
