package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"voxelcore.ai/internal/parallel"
)

//go:embed config.schema.json
var schemaJSON string

type Config struct {
	Workers int          `yaml:"workers" json:"workers"`
	Assets  AssetsConfig `yaml:"assets" json:"assets"`
	RunLog  RunLogConfig `yaml:"run_log" json:"run_log"`
	Index   IndexConfig  `yaml:"index" json:"index"`
	Bench   BenchConfig  `yaml:"bench" json:"bench"`
}

type AssetsConfig struct {
	Pack    string `yaml:"pack" json:"pack"`
	Preload bool   `yaml:"preload" json:"preload"`
}

type RunLogConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
}

type IndexConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type BenchConfig struct {
	Begin  int `yaml:"begin" json:"begin"`
	End    int `yaml:"end" json:"end"`
	Repeat int `yaml:"repeat" json:"repeat"`
	// Entities, when > 0, also integrates that many entities for Repeat steps.
	Entities int `yaml:"entities" json:"entities"`
}

func Defaults() Config {
	return Config{
		Workers: 0,
		RunLog:  RunLogConfig{Enabled: true, Dir: "./data/runs"},
		Index:   IndexConfig{Enabled: false, Path: "./data/index.db"},
		Bench:   BenchConfig{Begin: 0, End: 1 << 20, Repeat: 3},
	}
}

// Load reads a YAML config on top of Defaults. An empty path returns the
// defaults. The raw document is checked against the embedded JSON schema
// before it is decoded.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize("")
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := validateSchema(b); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	cfg.Normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// Normalize trims paths and resolves relative ones against baseDir.
func (c *Config) Normalize(baseDir string) {
	c.Assets.Pack = resolve(baseDir, c.Assets.Pack)
	c.RunLog.Dir = resolve(baseDir, c.RunLog.Dir)
	c.Index.Path = resolve(baseDir, c.Index.Path)
	if c.Bench.Repeat <= 0 {
		c.Bench.Repeat = 1
	}
}

func (c Config) Validate() error {
	if c.Workers < 0 || c.Workers > parallel.MaxWorkers {
		return fmt.Errorf("workers must be in [0, %d], got %d", parallel.MaxWorkers, c.Workers)
	}
	if c.Bench.End < c.Bench.Begin {
		return fmt.Errorf("bench: end (%d) < begin (%d)", c.Bench.End, c.Bench.Begin)
	}
	if c.Bench.Entities < 0 {
		return fmt.Errorf("bench: entities must be >= 0, got %d", c.Bench.Entities)
	}
	if c.RunLog.Enabled && c.RunLog.Dir == "" {
		return fmt.Errorf("run_log: enabled without dir")
	}
	if c.Index.Enabled && c.Index.Path == "" {
		return fmt.Errorf("index: enabled without path")
	}
	if c.Assets.Preload && c.Assets.Pack == "" {
		return fmt.Errorf("assets: preload without pack")
	}
	return nil
}

func resolve(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" || filepath.IsAbs(p) || baseDir == "" {
		return p
	}
	return filepath.Join(baseDir, p)
}

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round-trip through encoding/json so the validator sees JSON value types.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}
