// Package config loads the svpickle manifest: which sources to parse under
// which include/define configuration, which tops to keep, and how to rename.
// The manifest is validated against an embedded CUE schema before use, so a
// typo fails loudly instead of silently configuring nothing.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SourceGroup is one set of files parsed under shared include directories
// and preprocessor defines.
type SourceGroup struct {
	Files       []string `yaml:"files" json:"files"`
	Exclude     []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
	IncludeDirs []string `yaml:"include_dirs,omitempty" json:"include_dirs,omitempty"`
	Defines     []string `yaml:"defines,omitempty" json:"defines,omitempty"`
}

// Manifest is the top-level svpickle.yml configuration.
type Manifest struct {
	Prefix         string        `yaml:"prefix,omitempty" json:"prefix,omitempty"`
	Suffix         string        `yaml:"suffix,omitempty" json:"suffix,omitempty"`
	Tops           []string      `yaml:"tops,omitempty" json:"tops,omitempty"`
	ExcludeRename  []string      `yaml:"exclude_rename,omitempty" json:"exclude_rename,omitempty"`
	Sources        []SourceGroup `yaml:"sources,omitempty" json:"sources,omitempty"`
	Output         string        `yaml:"output,omitempty" json:"output,omitempty"`
	StripComments  bool          `yaml:"strip_comments,omitempty" json:"strip_comments,omitempty"`
	SquashNewlines bool          `yaml:"squash_newlines,omitempty" json:"squash_newlines,omitempty"`
	ExpandMacros   bool          `yaml:"expand_macros,omitempty" json:"expand_macros,omitempty"`

	// Dir is the manifest's directory; relative source patterns resolve
	// against it. Not part of the file format.
	Dir string `yaml:"-" json:"-"`
}

// Load reads, schema-validates, and decodes a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	// Decode generically first so schema validation sees the raw shape,
	// unknown fields included.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if err := validateManifest(raw); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	// The raw value passed validation; decode it into the typed manifest
	// through its JSON form.
	jsonBytes, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(jsonBytes, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m.Dir = filepath.Dir(abs)
	return &m, nil
}
