package parallel

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Range calls work for each i in [begin, end) using n short-lived goroutines
// (n <= 0 uses DefaultWorkers) and returns once every index has been visited.
func Range(begin, end, n int, work Work) error {
	if err := checkRange(begin, end); err != nil {
		return err
	}
	if begin == end {
		return nil
	}
	if n <= 0 {
		n = DefaultWorkers()
	}
	if n > end-begin {
		n = end - begin
	}
	spans := Partition(begin, end, n)
	if len(spans) == 1 {
		runSpan(spans[0], work)
		return nil
	}

	var wg sync.WaitGroup
	for _, sp := range spans[1:] {
		wg.Add(1)
		go func(sp Span) {
			defer wg.Done()
			runSpan(sp, work)
		}(sp)
	}
	// The caller's goroutine takes the first span.
	runSpan(spans[0], work)
	wg.Wait()
	return nil
}

// ForEach is the fallible form of Range. The first error cancels ctx for the
// remaining workers, which stop before their next index; that error is returned.
func ForEach(ctx context.Context, begin, end, n int, fn func(ctx context.Context, i int) error) error {
	if err := checkRange(begin, end); err != nil {
		return err
	}
	if begin == end {
		return nil
	}
	if n <= 0 {
		n = DefaultWorkers()
	}
	if n > end-begin {
		n = end - begin
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sp := range Partition(begin, end, n) {
		sp := sp
		g.Go(func() error {
			for i := sp.Begin; i < sp.End; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := fn(gctx, i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func runSpan(sp Span, work Work) {
	for i := sp.Begin; i < sp.End; i++ {
		work(i)
	}
}
