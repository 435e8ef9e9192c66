// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads, validates, and hot-reloads the Sentinel
// configuration from YAML. Duration knobs use explicit-unit integer
// fields (…_seconds, …_minutes) so files stay unit-unambiguous; typed
// accessors convert to time.Duration.
package config

import (
	"time"

	"github.com/AleutianAI/AleutianSentinel/services/sentinel/model"
)

// Config is the root configuration consumed by the assessment core and
// its service surfaces.
type Config struct {
	// Weights maps each risk category to its contribution to the
	// overall score. Must sum to 1.0 within ±0.001; a failing map is
	// rejected at load, never renormalized.
	Weights map[model.RiskCategory]float64 `yaml:"weights" validate:"required"`

	Collection CollectionConfig        `yaml:"collection"`
	Sources    map[string]SourceConfig `yaml:"sources"`
	Analysis   AnalysisConfig          `yaml:"analysis"`
	Engine     EngineConfig            `yaml:"engine"`
	AI         AIConfig                `yaml:"ai"`
	Storage    StorageConfig           `yaml:"storage"`
	History    HistoryConfig           `yaml:"history"`
	Archive    ArchiveConfig           `yaml:"archive"`
	Server     ServerConfig            `yaml:"server"`
}

// CollectionConfig bounds the collection phase.
type CollectionConfig struct {
	// MaxParallelCollectors sizes the admission gate. Collectors beyond
	// the bound queue until a slot frees.
	MaxParallelCollectors int `yaml:"max_parallel_collectors" validate:"gte=1,lte=128"`

	// TimeoutSeconds is the global deadline for the whole collection
	// phase. Collectors still in flight at the deadline are cancelled
	// and recorded as failed sources.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"gte=1"`

	// CallTimeoutSeconds is the default per-collector call timeout,
	// overridable per source.
	CallTimeoutSeconds int `yaml:"call_timeout_seconds" validate:"gte=1"`

	// Quorum is the minimum number of successful sources required to
	// proceed past collection.
	Quorum int `yaml:"quorum" validate:"gte=1"`

	// SimilarityThreshold is the content-similarity score at or above
	// which two data points are considered duplicates.
	SimilarityThreshold float64 `yaml:"similarity_threshold" validate:"gte=0,lte=1"`

	// MinReliabilityScore drops data points whose quality score falls
	// below it.
	MinReliabilityScore float64 `yaml:"min_reliability_score" validate:"gte=0,lte=1"`

	// RetryMaxAttempts, RetryBaseDelaySeconds, RetryMultiplier define
	// the bounded retry policy applied to transient collector failures.
	RetryMaxAttempts      int     `yaml:"retry_max_attempts" validate:"gte=1,lte=10"`
	RetryBaseDelaySeconds int     `yaml:"retry_base_delay_seconds" validate:"gte=1"`
	RetryMultiplier       float64 `yaml:"retry_multiplier" validate:"gte=1"`

	// CacheMaxEntries bounds the shared snapshot cache.
	CacheMaxEntries int `yaml:"cache_max_entries" validate:"gte=1"`
}

// Timeout returns the global collection deadline.
func (c CollectionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// CallTimeout returns the default per-collector timeout.
func (c CollectionConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff delay.
func (c CollectionConfig) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySeconds) * time.Second
}

// SourceConfig tunes one named collector.
type SourceConfig struct {
	Enabled         bool    `yaml:"enabled"`
	Reliability     float64 `yaml:"reliability" validate:"gte=0,lte=1"`
	RequestsPerHour int     `yaml:"requests_per_hour" validate:"gte=0"`
	CacheTTLMinutes int     `yaml:"cache_ttl_minutes" validate:"gte=0"`
	TimeoutSeconds  int     `yaml:"timeout_seconds" validate:"gte=0"`

	// APIKeyEnv names the environment variable carrying the source's
	// API key. Keys never appear in the config file itself.
	APIKeyEnv string   `yaml:"api_key_env"`
	Endpoint  string   `yaml:"endpoint"`
	Feeds     []string `yaml:"feeds"`
}

// CacheTTL returns the per-source snapshot cache lifetime.
func (s SourceConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLMinutes) * time.Minute
}

// Timeout returns the per-source call timeout, zero when unset.
func (s SourceConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// AnalysisConfig tunes the per-category analyzers.
type AnalysisConfig struct {
	// MinDataPoints is the volume floor below which a category's
	// confidence is capped at the Low ceiling regardless of score.
	MinDataPoints int `yaml:"min_data_points" validate:"gte=1"`

	// MaxParallel bounds concurrent category analyses.
	MaxParallel int `yaml:"max_parallel" validate:"gte=1"`
}

// EngineConfig tunes the risk calculation engine.
type EngineConfig struct {
	MonteCarloIterations int `yaml:"monte_carlo_iterations" validate:"gte=100"`

	// ConfidenceInterval selects the reported interval: 80, 90, 95, 99.
	ConfidenceInterval int `yaml:"confidence_interval" validate:"oneof=80 90 95 99"`

	// PriorWeight blends historical priors into category scores:
	// posterior = prior_weight*prior + (1-prior_weight)*score.
	PriorWeight float64 `yaml:"prior_weight" validate:"gte=0,lte=1"`

	// Seed makes simulation reproducible when non-zero; zero draws a
	// fresh seed per run.
	Seed int64 `yaml:"seed"`

	// TrendDeadbandSeconds is the |delta| below which the trend is
	// Stable.
	TrendDeadbandSeconds int `yaml:"trend_deadband_seconds" validate:"gte=0"`

	// TrendVolatilitySeconds is the look-back window standard deviation
	// above which the trend is Uncertain even when directional.
	TrendVolatilitySeconds float64 `yaml:"trend_volatility_seconds" validate:"gte=0"`

	// TrendWindowDays bounds the look-back window; TrendMinPoints is
	// the minimum history size for a directional call.
	TrendWindowDays int `yaml:"trend_window_days" validate:"gte=1"`
	TrendMinPoints  int `yaml:"trend_min_points" validate:"gte=1"`
}

// TrendWindow returns the look-back duration.
func (e EngineConfig) TrendWindow() time.Duration {
	return time.Duration(e.TrendWindowDays) * 24 * time.Hour
}

// AIConfig configures the external AI analysis collaborator.
type AIConfig struct {
	Enabled bool `yaml:"enabled"`

	// Model and optional ensemble peers. With more than one model the
	// analyzer merges indicators by cross-model consensus.
	Model          string   `yaml:"model"`
	EnsembleModels []string `yaml:"ensemble_models"`

	// BaseURL targets any OpenAI-compatible endpoint; empty means the
	// provider default.
	BaseURL string `yaml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`

	TimeoutSeconds int     `yaml:"timeout_seconds" validate:"gte=1"`
	Temperature    float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int     `yaml:"max_tokens" validate:"gte=1"`

	// ChunkSize/ChunkOverlap control content splitting before prompts.
	ChunkSize    int `yaml:"chunk_size" validate:"gte=100"`
	ChunkOverlap int `yaml:"chunk_overlap" validate:"gte=0"`
}

// Timeout returns the per-request collaborator timeout.
func (a AIConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// StorageConfig locates the badger stores.
type StorageConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
}

// HistoryConfig configures the optional InfluxDB score recorder.
type HistoryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Org      string `yaml:"org"`
	Bucket   string `yaml:"bucket"`
	TokenEnv string `yaml:"token_env"`
}

// ArchiveConfig configures the optional GCS assessment archive.
type ArchiveConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// ServerConfig configures the HTTP service surface.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

// DefaultConfig returns the shipped defaults: the canonical category
// weights and the documented collection/engine constants.
func DefaultConfig() Config {
	return Config{
		Weights: model.DefaultWeights(),
		Collection: CollectionConfig{
			MaxParallelCollectors: 10,
			TimeoutSeconds:        30,
			CallTimeoutSeconds:    10,
			Quorum:                1,
			SimilarityThreshold:   0.85,
			MinReliabilityScore:   0.3,
			RetryMaxAttempts:      3,
			RetryBaseDelaySeconds: 2,
			RetryMultiplier:       2.0,
			CacheMaxEntries:       256,
		},
		Sources: map[string]SourceConfig{
			"newsapi": {
				Enabled:         true,
				Reliability:     0.80,
				RequestsPerHour: 100,
				CacheTTLMinutes: 60,
				APIKeyEnv:       "SENTINEL_NEWSAPI_KEY",
			},
			"gdelt": {
				Enabled:         true,
				Reliability:     0.75,
				RequestsPerHour: 120,
				CacheTTLMinutes: 60,
			},
			"rss": {
				Enabled:         true,
				Reliability:     0.85,
				RequestsPerHour: 60,
				CacheTTLMinutes: 60,
			},
		},
		Analysis: AnalysisConfig{
			MinDataPoints: 3,
			MaxParallel:   4,
		},
		Engine: EngineConfig{
			MonteCarloIterations:   10000,
			ConfidenceInterval:     95,
			PriorWeight:            0.3,
			TrendDeadbandSeconds:   5,
			TrendVolatilitySeconds: 60,
			TrendWindowDays:        14,
			TrendMinPoints:         3,
		},
		AI: AIConfig{
			Enabled:        true,
			Model:          "gpt-4o",
			APIKeyEnv:      "SENTINEL_AI_API_KEY",
			TimeoutSeconds: 120,
			Temperature:    0.2,
			MaxTokens:      2048,
			ChunkSize:      2000,
			ChunkOverlap:   200,
		},
		Storage: StorageConfig{
			Dir: "data/sentinel",
		},
		History: HistoryConfig{
			Enabled:  false,
			URL:      "http://localhost:8086",
			Org:      "sentinel",
			Bucket:   "risk_history",
			TokenEnv: "SENTINEL_INFLUX_TOKEN",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Prefix:  "assessments",
		},
		Server: ServerConfig{
			Port: 12400,
		},
	}
}
