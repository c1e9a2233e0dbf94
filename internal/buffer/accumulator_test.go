package buffer

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/jittakal/ringlog/internal/errors"
)

func TestLog_Write(t *testing.T) {
	tests := []struct {
		name        string
		writes      []string
		wantContent string
		wantPending int
		wantRecords int
	}{
		{
			name:        "single record",
			writes:      []string{"hello\n"},
			wantContent: "hello\n",
			wantRecords: 1,
		},
		{
			name:        "record split across writes",
			writes:      []string{"hel", "lo ", "world\n"},
			wantContent: "hello world\n",
			wantRecords: 1,
		},
		{
			name:        "several records in one write",
			writes:      []string{"a\nbb\nccc\n"},
			wantContent: "a\nbb\nccc\n",
			wantRecords: 3,
		},
		{
			name:        "trailing partial stays pending",
			writes:      []string{"one\ntw"},
			wantContent: "one\n",
			wantPending: 2,
			wantRecords: 1,
		},
		{
			name:        "partial completed later",
			writes:      []string{"one\ntw", "o\nthr", "ee\n"},
			wantContent: "one\ntwo\nthree\n",
			wantRecords: 3,
		},
		{
			name:        "bare newline is a record",
			writes:      []string{"\n"},
			wantContent: "\n",
			wantRecords: 1,
		},
		{
			name:        "empty write",
			writes:      []string{""},
			wantContent: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newTestLog(t, Config{Capacity: 10})
			ctx := context.Background()

			for _, w := range tt.writes {
				n, err := l.Write(ctx, []byte(w))
				if err != nil {
					t.Fatalf("Write(%q) error = %v", w, err)
				}
				if n != len(w) {
					t.Errorf("Write(%q) n = %d, want %d", w, n, len(w))
				}
			}

			if got := readAll(t, l, 0); got != tt.wantContent {
				t.Errorf("content = %q, want %q", got, tt.wantContent)
			}
			stats, _ := l.Stats(ctx)
			if stats.PendingBytes != tt.wantPending {
				t.Errorf("PendingBytes = %d, want %d", stats.PendingBytes, tt.wantPending)
			}
			if stats.Records != tt.wantRecords {
				t.Errorf("Records = %d, want %d", stats.Records, tt.wantRecords)
			}
		})
	}
}

func TestLog_WriteEvicts(t *testing.T) {
	rec := &evictionRecorder{}
	l := newTestLog(t, Config{Capacity: 2, OnEvict: rec.record})

	if _, err := l.Write(context.Background(), []byte("a\nb\nc\nd\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got := rec.data()
	if len(got) != 2 || got[0] != "a\n" || got[1] != "b\n" {
		t.Errorf("evictions = %q, want [a\\n b\\n]", got)
	}
	if content := readAll(t, l, 0); content != "c\nd\n" {
		t.Errorf("content = %q, want c\\nd\\n", content)
	}
}

func TestLog_WriteAllocationFailure(t *testing.T) {
	l := newTestLog(t, Config{Capacity: 4, MaxRecordBytes: 6})
	ctx := context.Background()

	if _, err := l.Write(ctx, []byte("abc")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	n, err := l.Write(ctx, []byte("defg\n"))
	if !stderrors.Is(err, errors.ErrAllocation) {
		t.Fatalf("Write() error = %v, want ErrAllocation", err)
	}
	if n != 0 {
		t.Errorf("Write() n = %d, want 0", n)
	}

	stats, _ := l.Stats(ctx)
	if stats.PendingBytes != 3 {
		t.Errorf("PendingBytes = %d, want 3 (unchanged)", stats.PendingBytes)
	}
	if stats.Records != 0 {
		t.Errorf("Records = %d, want 0", stats.Records)
	}

	// The pending prefix is still usable.
	if _, err := l.Write(ctx, []byte("de\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := readAll(t, l, 0); got != "abcde\n" {
		t.Errorf("content = %q, want abcde\\n", got)
	}
}

func TestLog_WriteAllocationFailureMidBuffer(t *testing.T) {
	l := newTestLog(t, Config{Capacity: 4, MaxRecordBytes: 4})
	ctx := context.Background()

	p := []byte("ok\ntoo long\nnext\n")
	n, err := l.Write(ctx, p)
	if !stderrors.Is(err, errors.ErrAllocation) {
		t.Fatalf("Write() error = %v, want ErrAllocation", err)
	}
	if n != len("ok\n") {
		t.Errorf("Write() n = %d, want %d", n, len("ok\n"))
	}
	if got := readAll(t, l, 0); got != "ok\n" {
		t.Errorf("content = %q, want ok\\n", got)
	}
}

func TestLog_WriteInterruptedRetainsRecord(t *testing.T) {
	l := newTestLog(t, Config{Capacity: 4})
	bg := context.Background()

	release, err := l.ringLock.acquire(bg)
	if err != nil {
		t.Fatalf("acquire() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(bg, 20*time.Millisecond)
	defer cancel()

	n, err := l.Write(ctx, []byte("first\nsecond\n"))
	release()

	if !stderrors.Is(err, errors.ErrInterrupted) {
		t.Fatalf("Write() error = %v, want ErrInterrupted", err)
	}
	if n != len("first\n") {
		t.Errorf("Write() n = %d, want %d", n, len("first\n"))
	}

	stats, _ := l.Stats(bg)
	if stats.Records != 0 || stats.PendingBytes != len("first\n") {
		t.Errorf("after interrupt: %+v, want 0 records and the first line pending", stats)
	}

	// The next Write commits the retained record before its own bytes.
	if _, err := l.Write(bg, []byte("second\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := readAll(t, l, 0); got != "first\nsecond\n" {
		t.Errorf("content = %q, want first\\nsecond\\n", got)
	}
}

func TestLog_DiscardPending(t *testing.T) {
	l := newTestLog(t, Config{Capacity: 4, MaxRecordBytes: 8})
	ctx := context.Background()

	if _, err := l.Write(ctx, []byte("abcdef")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := l.Write(ctx, []byte("ghij\n")); !stderrors.Is(err, errors.ErrAllocation) {
		t.Fatalf("Write() error = %v, want ErrAllocation", err)
	}

	n, err := l.DiscardPending(ctx)
	if err != nil {
		t.Fatalf("DiscardPending() error = %v", err)
	}
	if n != len("abcdef") {
		t.Errorf("DiscardPending() = %d, want %d", n, len("abcdef"))
	}

	if _, err := l.Write(ctx, []byte("ok\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if got := readAll(t, l, 0); got != "ok\n" {
		t.Errorf("content = %q, want ok\\n", got)
	}
	stats, _ := l.Stats(ctx)
	if stats.PendingBytes != 0 {
		t.Errorf("PendingBytes = %d, want 0", stats.PendingBytes)
	}

	if _, err := l.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := l.DiscardPending(ctx); !stderrors.Is(err, errors.ErrLogClosed) {
		t.Errorf("DiscardPending() after Close error = %v, want ErrLogClosed", err)
	}
}
