package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 0 || !cfg.RunLog.Enabled || cfg.Bench.Repeat != 3 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_OverridesAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "voxelcore.yaml", `
workers: 6
assets:
  pack: assets/world.vxpk
  preload: true
run_log:
  enabled: true
  dir: runs
index:
  enabled: true
  path: /var/lib/voxelcore/index.db
bench:
  begin: 10
  end: 20
  entities: 500
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Workers != 6 {
		t.Fatalf("workers=%d want=6", cfg.Workers)
	}
	if cfg.Assets.Pack != filepath.Join(dir, "assets", "world.vxpk") {
		t.Fatalf("pack=%q", cfg.Assets.Pack)
	}
	if cfg.RunLog.Dir != filepath.Join(dir, "runs") {
		t.Fatalf("run_log.dir=%q", cfg.RunLog.Dir)
	}
	if cfg.Index.Path != "/var/lib/voxelcore/index.db" {
		t.Fatalf("index.path=%q", cfg.Index.Path)
	}
	if cfg.Bench.Begin != 10 || cfg.Bench.End != 20 || cfg.Bench.Repeat != 3 || cfg.Bench.Entities != 500 {
		t.Fatalf("bench=%+v", cfg.Bench)
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	p := writeFile(t, t.TempDir(), "empty.yaml", "")
	if _, err := Load(p); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestLoad_SchemaRejects(t *testing.T) {
	cases := map[string]string{
		"unknown key":    "threads: 4\n",
		"negative":       "workers: -1\n",
		"too many":       "workers: 100000\n",
		"wrong type":     "workers: many\n",
		"bad repeat":     "bench:\n  repeat: 0\n",
		"bad entities":   "bench:\n  entities: -3\n",
		"nested unknown": "assets:\n  path: x\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		p := writeFile(t, dir, "c.yaml", body)
		_, err := Load(p)
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !strings.Contains(err.Error(), "schema") {
			t.Fatalf("%s: err=%v, want schema error", name, err)
		}
	}
}

func TestLoad_ValidateRejects(t *testing.T) {
	cases := map[string]string{
		"inverted bench":  "bench:\n  begin: 5\n  end: 1\n",
		"preload no pack": "assets:\n  preload: true\n",
		"index no path":   "index:\n  enabled: true\n  path: \"\"\n",
	}
	dir := t.TempDir()
	for name, body := range cases {
		p := writeFile(t, dir, "c.yaml", body)
		if _, err := Load(p); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Fatalf("err=%v want not-exist", err)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "voxelcore.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RunLog.Dir != filepath.Join("..", "..", "data", "runs") {
		t.Fatalf("run_log.dir=%q", cfg.RunLog.Dir)
	}
}
