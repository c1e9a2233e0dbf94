package ring_test

import (
	"fmt"

	"github.com/jittakal/ringlog/internal/ring"
	"github.com/jittakal/ringlog/pkg/record"
)

func Example() {
	r, _ := ring.New(4)

	for i, line := range []string{"aa\n", "bb\n", "cc\n", "dd\n", "ee\n"} {
		if evicted, ok := r.Add(record.Record{Seq: uint64(i + 1), Data: []byte(line)}); ok {
			fmt.Printf("evicted %q\n", evicted.Data)
		}
	}
	fmt.Printf("records: %d, size: %d\n", r.Len(), r.Size())

	rec, pos, _ := r.Find(11)
	fmt.Printf("offset 11: %q at %s\n", rec.Data, pos)

	off, _ := r.Seek(2, 1)
	fmt.Printf("seek 2,1: %d\n", off)

	// Output:
	// evicted "aa\n"
	// records: 4, size: 12
	// offset 11: "ee\n" at 3,2
	// seek 2,1: 7
}
