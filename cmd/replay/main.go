package main

import (
	"flag"
	"fmt"
	"os"

	"voxelcore.ai/internal/parallel"
	persistlog "voxelcore.ai/internal/persistence/log"
)

func main() {
	var (
		runsDir = flag.String("runs", "./data/runs", "dir containing runs-*.jsonl.zst")
		file    = flag.String("file", "", "single run log file (overrides -runs)")
	)
	flag.Parse()

	files := []string{*file}
	if *file == "" {
		var err error
		files, err = persistlog.ListRunFiles(*runsDir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "list runs:", err)
			os.Exit(1)
		}
		if len(files) == 0 {
			fmt.Fprintln(os.Stderr, "no run files found in", *runsDir)
			os.Exit(1)
		}
	}

	var checked uint64
	for _, path := range files {
		if err := persistlog.ReadRuns(path, func(ri parallel.RunInfo) error {
			checked++
			if err := verifyRun(ri); err != nil {
				return fmt.Errorf("%s run #%d: %w", path, checked, err)
			}
			return nil
		}); err != nil {
			fmt.Fprintln(os.Stderr, "replay:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("replay ok: checked=%d runs in %d files\n", checked, len(files))
}

// verifyRun re-derives the partition for a recorded run and compares it with
// the spans the pool actually used.
func verifyRun(ri parallel.RunInfo) error {
	if ri.Workers < 1 || ri.End < ri.Begin {
		return fmt.Errorf("bad run header: begin=%d end=%d workers=%d", ri.Begin, ri.End, ri.Workers)
	}
	want := parallel.Partition(ri.Begin, ri.End, ri.Workers)
	if len(ri.Spans) != len(want) {
		return fmt.Errorf("spans=%d want=%d", len(ri.Spans), len(want))
	}
	for i := range want {
		if ri.Spans[i] != want[i] {
			return fmt.Errorf("span %d = %+v, want %+v", i, ri.Spans[i], want[i])
		}
	}
	return nil
}
