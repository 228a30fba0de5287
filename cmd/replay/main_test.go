package main

import (
	"testing"

	"voxelcore.ai/internal/parallel"
)

func TestVerifyRun(t *testing.T) {
	ok := parallel.RunInfo{Begin: 3, End: 17, Workers: 4, Spans: parallel.Partition(3, 17, 4)}
	if err := verifyRun(ok); err != nil {
		t.Fatalf("verifyRun(ok): %v", err)
	}

	shifted := ok
	shifted.Spans = append([]parallel.Span(nil), ok.Spans...)
	shifted.Spans[1].End++
	shifted.Spans[2].Begin++
	if err := verifyRun(shifted); err == nil {
		t.Fatalf("expected mismatch error")
	}

	short := ok
	short.Spans = ok.Spans[:3]
	if err := verifyRun(short); err == nil {
		t.Fatalf("expected span count error")
	}

	if err := verifyRun(parallel.RunInfo{Begin: 0, End: 4}); err == nil {
		t.Fatalf("expected bad header error")
	}
}
