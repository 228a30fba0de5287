package main

import (
	"bytes"
	"io"
	"log"
	"path/filepath"
	"strings"
	"testing"

	"voxelcore.ai/internal/config"
	"voxelcore.ai/internal/parallel"
	persistlog "voxelcore.ai/internal/persistence/log"
)

func TestBench(t *testing.T) {
	var seen []parallel.RunInfo
	obs := fanOut([]parallel.Observer{
		parallel.ObserverFunc(func(ri parallel.RunInfo) { seen = append(seen, ri) }),
		parallel.ObserverFunc(func(ri parallel.RunInfo) { seen = append(seen, ri) }),
	})
	pool, err := parallel.NewPool(3, parallel.WithObserver(obs))
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Kill()

	logger := log.New(io.Discard, "", 0)
	if err := bench(pool, config.BenchConfig{Begin: -4, End: 50, Repeat: 3}, logger); err != nil {
		t.Fatalf("bench: %v", err)
	}
	if len(seen) != 6 {
		t.Fatalf("observed %d want 6", len(seen))
	}
	if st := pool.Stats(); st.Runs != 3 || st.Indices != 3*54 {
		t.Fatalf("stats=%+v", st)
	}
}

func TestFanOut_Empty(t *testing.T) {
	if fanOut(nil) != nil {
		t.Fatalf("expected nil observer")
	}
}

func TestBenchEntities(t *testing.T) {
	pool, err := parallel.NewPool(4)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	defer pool.Kill()

	logger := log.New(io.Discard, "", 0)
	bc := config.BenchConfig{Repeat: 40, Entities: 100}
	if err := benchEntities(pool, bc, logger); err != nil {
		t.Fatalf("benchEntities: %v", err)
	}
	if st := pool.Stats(); st.Runs != 40 || st.Indices != 40*100 {
		t.Fatalf("stats=%+v", st)
	}
}

func countRuns(t *testing.T, dir string) int {
	t.Helper()
	files, err := persistlog.ListRunFiles(dir)
	if err != nil {
		t.Fatalf("ListRunFiles: %v", err)
	}
	n := 0
	for _, f := range files {
		if err := persistlog.ReadRuns(f, func(parallel.RunInfo) error {
			n++
			return nil
		}); err != nil {
			t.Fatalf("ReadRuns %s: %v", f, err)
		}
	}
	return n
}

func TestRun_FlushesRunLogOnError(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Workers = 2
	cfg.RunLog = config.RunLogConfig{Enabled: true, Dir: filepath.Join(dir, "runs")}
	cfg.Bench = config.BenchConfig{Begin: 0, End: 32, Repeat: 3}
	cfg.Assets = config.AssetsConfig{Pack: filepath.Join(dir, "missing.vxpk"), Preload: true}

	var out bytes.Buffer
	err := run(cfg, log.New(io.Discard, "", 0), &out)
	if err == nil || !strings.Contains(err.Error(), "preload") {
		t.Fatalf("err=%v, want preload error", err)
	}
	if got := countRuns(t, cfg.RunLog.Dir); got != 3 {
		t.Fatalf("logged runs=%d want=3", got)
	}
}

func TestRun_WithIndexAndEntities(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Workers = 3
	cfg.RunLog = config.RunLogConfig{Enabled: true, Dir: filepath.Join(dir, "runs")}
	cfg.Index = config.IndexConfig{Enabled: true, Path: filepath.Join(dir, "index.db")}
	cfg.Bench = config.BenchConfig{Begin: 5, End: 105, Repeat: 2, Entities: 10}

	var out bytes.Buffer
	if err := run(cfg, log.New(io.Discard, "", 0), &out); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := countRuns(t, cfg.RunLog.Dir); got != 4 {
		t.Fatalf("logged runs=%d want=4", got)
	}
	if !strings.Contains(out.String(), "runs=4 indices=220 workers=3") {
		t.Fatalf("output=%q", out.String())
	}
	if !strings.Contains(out.String(), "index written=4 dropped=0") {
		t.Fatalf("output=%q", out.String())
	}
}
