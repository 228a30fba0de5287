package parallel

import (
	"fmt"
	"runtime"
)

// MaxWorkers bounds the size of a worker set.
const MaxWorkers = 4096

// Work is called once per index. It must not retain the index range after
// the dispatch returns.
type Work func(i int)

// Span is a half-open index range [Begin, End) assigned to one worker.
type Span struct {
	Begin int `json:"begin"`
	End   int `json:"end"`
}

func (s Span) Len() int { return s.End - s.Begin }

// DefaultWorkers is the parallelism hint used when a worker count of 0 is given.
func DefaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// Partition splits [begin, end) into exactly n contiguous spans, low to high.
// When the range does not divide evenly the first spans get one extra index,
// so span lengths differ by at most one. Spans are empty when end-begin < n.
func Partition(begin, end, n int) []Span {
	if n < 1 {
		n = 1
	}
	total := end - begin
	if total < 0 {
		total = 0
	}
	q, r := total/n, total%n
	out := make([]Span, n)
	s := begin
	for w := 0; w < n; w++ {
		size := q
		if w < r {
			size++
		}
		out[w] = Span{Begin: s, End: s + size}
		s += size
	}
	return out
}

func checkRange(begin, end int) error {
	if end < begin {
		return fmt.Errorf("%w: [%d, %d)", ErrRange, begin, end)
	}
	return nil
}

func resolveWorkers(n int) (int, error) {
	switch {
	case n == 0:
		return DefaultWorkers(), nil
	case n < 0 || n > MaxWorkers:
		return 0, fmt.Errorf("%w: workers=%d (max %d)", ErrResource, n, MaxWorkers)
	}
	return n, nil
}
