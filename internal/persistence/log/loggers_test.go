package log

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"voxelcore.ai/internal/parallel"
)

func TestRunLogger_WriteAndRead(t *testing.T) {
	dir := t.TempDir()
	l := NewRunLogger(dir)

	pool, err := parallel.NewPool(3, parallel.WithObserver(l))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	for r := 0; r < 2; r++ {
		if err := pool.Run(func(int) {}, 0, 10); err != nil {
			t.Fatalf("Run: %v", err)
		}
	}
	pool.Kill()
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListRunFiles(dir)
	if err != nil {
		t.Fatalf("ListRunFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}

	var got []parallel.RunInfo
	if err := ReadRuns(files[0], func(ri parallel.RunInfo) error {
		got = append(got, ri)
		return nil
	}); err != nil {
		t.Fatalf("ReadRuns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("read %d runs want 2", len(got))
	}
	for _, ri := range got {
		if ri.Begin != 0 || ri.End != 10 || ri.Workers != 3 {
			t.Fatalf("run=%+v", ri)
		}
		if !reflect.DeepEqual(ri.Spans, parallel.Partition(0, 10, 3)) {
			t.Fatalf("spans=%v", ri.Spans)
		}
	}
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "runs")
	ts := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return ts }

	if err := w.Write(parallel.RunInfo{Begin: 1, End: 2}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	ts = ts.Add(2 * time.Minute)
	if err := w.Write(parallel.RunInfo{Begin: 3, End: 4}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := ListRunFiles(dir)
	if err != nil {
		t.Fatalf("ListRunFiles: %v", err)
	}
	want := []string{
		filepath.Join(dir, "runs-2026-03-01-10.jsonl.zst"),
		filepath.Join(dir, "runs-2026-03-01-11.jsonl.zst"),
	}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("files=%v want=%v", files, want)
	}
}

func TestJSONLZstdWriter_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		w := NewJSONLZstdWriter(dir, "runs")
		w.now = func() time.Time { return ts }
		if err := w.Write(parallel.RunInfo{Begin: i, End: i + 1}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	var begins []int
	err := ReadRuns(filepath.Join(dir, "runs-2026-03-01-10.jsonl.zst"), func(ri parallel.RunInfo) error {
		begins = append(begins, ri.Begin)
		return nil
	})
	if err != nil {
		t.Fatalf("ReadRuns: %v", err)
	}
	if !reflect.DeepEqual(begins, []int{0, 1}) {
		t.Fatalf("begins=%v", begins)
	}
}

func TestReadRuns_StopsOnCallbackError(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "runs")
	for i := 0; i < 3; i++ {
		_ = w.Write(parallel.RunInfo{Begin: i, End: i})
	}
	_ = w.Close()
	files, _ := ListRunFiles(dir)
	if len(files) != 1 {
		t.Fatalf("files=%v", files)
	}

	stop := errors.New("stop")
	n := 0
	err := ReadRuns(files[0], func(parallel.RunInfo) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}
