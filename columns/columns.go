// Package columns implements per-file column routing: which CSV fields are
// translated and which are passed through unchanged.
//
// The routing configuration lives in column_data.json next to the input
// files and is keyed by CSV filename:
//
//	{
//	    "games.csv": {
//	        "translate": ["game_name", "description"],
//	        "skip": ["game_id", "release_date"]
//	    }
//	}
//
// A field listed in neither set is passed through. A file with no entry at
// all gets an empty translate set — operators opt files into translation
// explicitly.
package columns

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// ConfigFileName is the default routing configuration file name.
const ConfigFileName = "column_data.json"

// Spec holds the resolved column routing for a single file.
type Spec struct {
	// File is the CSV filename this spec applies to.
	File string
	// Translate contains the fields routed through the translation engine.
	Translate map[string]bool
	// Skip contains the fields explicitly declared passthrough.
	Skip map[string]bool
}

// ShouldTranslate reports whether the given field is routed to the engine.
// Fields absent from both sets are passthrough.
func (s *Spec) ShouldTranslate(field string) bool {
	return s.Translate[field]
}

// TranslateFields returns the translate set as a sorted slice, for logging.
func (s *Spec) TranslateFields() []string {
	fields := make([]string, 0, len(s.Translate))
	for f := range s.Translate {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// ConfigError reports a malformed routing entry. It aborts the affected
// file only, never the whole job.
type ConfigError struct {
	File  string
	Field string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("column config for %s: field %q listed in both translate and skip", e.File, e.Field)
}

// rawSpec mirrors one entry of column_data.json.
type rawSpec struct {
	Translate []string `json:"translate"`
	Skip      []string `json:"skip"`
}

// Config is the parsed routing configuration for all files.
type Config struct {
	entries map[string]rawSpec
}

// Load reads and parses a routing configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses routing configuration JSON.
func Parse(data []byte) (*Config, error) {
	var entries map[string]rawSpec
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing column config: %w", err)
	}
	return &Config{entries: entries}, nil
}

// Files returns the sorted list of configured CSV filenames.
func (c *Config) Files() []string {
	files := make([]string, 0, len(c.entries))
	for f := range c.entries {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Has reports whether the given file has a routing entry.
func (c *Config) Has(fileID string) bool {
	_, ok := c.entries[fileID]
	return ok
}

// Resolve returns the column spec for a file. Files without an entry get an
// empty translate set (everything passthrough). A field appearing in both
// translate and skip is a *ConfigError.
func (c *Config) Resolve(fileID string) (*Spec, error) {
	spec := &Spec{
		File:      fileID,
		Translate: make(map[string]bool),
		Skip:      make(map[string]bool),
	}

	raw, ok := c.entries[fileID]
	if !ok {
		return spec, nil
	}

	for _, f := range raw.Translate {
		spec.Translate[f] = true
	}
	for _, f := range raw.Skip {
		if spec.Translate[f] {
			return nil, &ConfigError{File: fileID, Field: f}
		}
		spec.Skip[f] = true
	}

	return spec, nil
}
