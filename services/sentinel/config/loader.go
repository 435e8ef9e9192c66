// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// validate is the shared validator instance with domain rules
// registered in init.
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Load reads, parses, and validates the config file at path. A missing
// file is created with defaults first (first-run behavior).
//
// # Description
//
// Parsing starts from DefaultConfig so partial files inherit defaults
// for everything they omit. Validation covers both the struct tags and
// the domain invariant that category weights sum to 1.0±0.001; an
// invalid file is rejected outright, never repaired.
//
// # Inputs
//
//   - path: config file location; parent directories are created on
//     first run
//
// # Outputs
//
//   - *Config: the validated configuration
//   - error: non-nil on unreadable file, parse failure, or validation
//     failure (weight-sum violations surface as *model.ValidationError)
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path); err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct tags and domain invariants.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := model.ValidateWeights(c.Weights); err != nil {
		return err
	}
	for cat := range c.Weights {
		if !cat.Valid() {
			return &model.ValidationError{
				Field:  "weights",
				Reason: fmt.Sprintf("unknown category %q", cat),
			}
		}
	}
	// The engine demands an exact analyses-to-weights correspondence, so
	// a subset map that only fails at run time must be rejected here.
	for _, cat := range model.AllCategories() {
		if _, ok := c.Weights[cat]; !ok {
			return &model.ValidationError{
				Field:  "weights",
				Reason: fmt.Sprintf("missing weight for category %q; overrides must cover every category", cat),
			}
		}
	}
	if c.AI.ChunkOverlap >= c.AI.ChunkSize {
		return &model.ValidationError{
			Field:  "ai.chunk_overlap",
			Reason: "overlap must be smaller than chunk size",
		}
	}
	return nil
}

// writeDefault materializes DefaultConfig at path.
func writeDefault(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	defaultCfg := DefaultConfig()
	data, err := yaml.Marshal(defaultCfg)
	if err != nil {
		return fmt.Errorf("failed to encode default config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath returns the conventional config location,
// ~/.sentinel/sentinel.yaml, honoring SENTINEL_CONFIG when set.
func DefaultPath() (string, error) {
	if p := os.Getenv("SENTINEL_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not resolve home directory: %w", err)
	}
	return filepath.Join(home, ".sentinel", "sentinel.yaml"), nil
}
