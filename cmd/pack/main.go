package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"voxelcore.ai/internal/assets"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  pack build [-zstd=true] <dir> <out.vxpk>")
	fmt.Fprintln(os.Stderr, "  pack ls <pack.vxpk>")
	fmt.Fprintln(os.Stderr, "  pack verify [-workers=0] <pack.vxpk>")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "build":
		flags := flag.NewFlagSet("build", flag.ExitOnError)
		compress := flags.Bool("zstd", true, "compress entries with zstd")
		_ = flags.Parse(os.Args[2:])
		if flags.NArg() != 2 {
			usage()
		}
		err = build(flags.Arg(0), flags.Arg(1), *compress)
	case "ls":
		if len(os.Args) != 3 {
			usage()
		}
		err = list(os.Args[2])
	case "verify":
		flags := flag.NewFlagSet("verify", flag.ExitOnError)
		workers := flags.Int("workers", 0, "decode goroutines (0: GOMAXPROCS)")
		_ = flags.Parse(os.Args[2:])
		if flags.NArg() != 1 {
			usage()
		}
		err = verify(context.Background(), flags.Arg(0), *workers)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "pack:", err)
		os.Exit(1)
	}
}

func collect(dir string) ([]assets.PackEntry, error) {
	var entries []assets.PackEntry
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, assets.PackEntry{Name: filepath.ToSlash(rel), Data: b})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func build(dir, out string, compress bool) error {
	entries, err := collect(dir)
	if err != nil {
		return err
	}
	tmp := out + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := assets.WritePack(f, entries, compress); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		return err
	}
	fmt.Printf("wrote %s entries=%d zstd=%v\n", out, len(entries), compress)
	return nil
}

func list(path string) error {
	pk, err := assets.OpenPack(path)
	if err != nil {
		return err
	}
	defer pk.Close()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	for _, name := range pk.Names() {
		b, err := pk.Entry(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%10d  %s\n", len(b), name)
	}
	return nil
}

func verify(ctx context.Context, path string, workers int) error {
	pk, err := assets.OpenPack(path)
	if err != nil {
		return err
	}
	defer pk.Close()

	if err := pk.Verify(ctx, workers); err != nil {
		return err
	}
	fmt.Printf("ok %s entries=%d\n", path, len(pk.Names()))
	return nil
}
