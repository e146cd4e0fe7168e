// Package config — csvtrans.yaml configuration file support.
//
// When a csvtrans.yaml exists in the working directory it overrides the
// built-in defaults. Everything has a sensible default; the file is
// optional and most runs never need one.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the optional configuration file name.
const FileName = "csvtrans.yaml"

// Defaults matching the original tool layout.
const (
	DefaultInputDir   = "input"
	DefaultOutputDir  = "output"
	DefaultSourceLang = "en"
	DefaultTargetLang = "id"
)

// Config holds the runtime settings for a csvtrans invocation.
type Config struct {
	// InputDir holds the CSV files and column_data.json.
	InputDir string `yaml:"input_dir,omitempty"`
	// OutputDir is the root of the per-language output areas.
	OutputDir string `yaml:"output_dir,omitempty"`
	// SourceLang and TargetLang are the default language pair.
	SourceLang string `yaml:"source_lang,omitempty"`
	TargetLang string `yaml:"target_lang,omitempty"`
	// Workers is the translation pool size (0 = min(NumCPU, 8)).
	Workers int `yaml:"workers,omitempty"`
	// BatchRows bounds rows per batch (0 = adaptive).
	BatchRows int `yaml:"batch_rows,omitempty"`
	// BatchBytes bounds estimated batch payload (0 = 64 KiB).
	BatchBytes int `yaml:"batch_bytes,omitempty"`
	// EngineCommand is the translation engine binary.
	EngineCommand string `yaml:"engine_command,omitempty"`
	// NoCache disables the translation result cache.
	NoCache bool `yaml:"no_cache,omitempty"`
}

// Load reads csvtrans.yaml from root, falling back to defaults when the
// file does not exist.
func Load(root string) (*Config, error) {
	cfg := &Config{}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults(root)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.applyDefaults(root)
	return cfg, nil
}

// applyDefaults fills unset fields. Relative directories are anchored at
// the given root.
func (c *Config) applyDefaults(root string) {
	if c.InputDir == "" {
		c.InputDir = DefaultInputDir
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.SourceLang == "" {
		c.SourceLang = DefaultSourceLang
	}
	if c.TargetLang == "" {
		c.TargetLang = DefaultTargetLang
	}
	if !filepath.IsAbs(c.InputDir) {
		c.InputDir = filepath.Join(root, c.InputDir)
	}
	if !filepath.IsAbs(c.OutputDir) {
		c.OutputDir = filepath.Join(root, c.OutputDir)
	}
}

// ColumnConfigPath returns the routing configuration location.
func (c *Config) ColumnConfigPath() string {
	return filepath.Join(c.InputDir, "column_data.json")
}
