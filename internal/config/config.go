// Package config provides configuration management for the events importer.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Configuration validation errors.
var (
	ErrMissingBaseURL       = errors.New("fetch.base_url is required")
	ErrInvalidDays          = errors.New("fetch.days must be at least 1")
	ErrInvalidPerPage       = errors.New("fetch.per_page must be between 1 and 1000")
	ErrInvalidMaxPages      = errors.New("fetch.max_pages must be at least 1")
	ErrInvalidLimit         = errors.New("fetch.limit must be at least 1")
	ErrNoEventTypes         = errors.New("fetch.event_types must name at least one category")
	ErrInvalidMaxAttempts   = errors.New("retry.max_attempts must be at least 1")
	ErrInvalidMaxDelay      = errors.New("retry.max_delay_sec must be non-negative")
	ErrInvalidTimeout       = errors.New("retry.timeout_sec must be at least 1")
	ErrInvalidEnrichMax     = errors.New("enrichment.max_calls must be non-negative")
	ErrInvalidEnrichMinLen  = errors.New("enrichment.min_description_len must be non-negative")
	ErrInvalidEnrichTimeout = errors.New("enrichment.timeout_sec must be at least 1")
	ErrMissingOutputPath    = errors.New("output.path is required")
	ErrNoOutputFields       = errors.New("output.fields must name at least one column")
	ErrNoBannedTerms        = errors.New("safety.banned_terms must name at least one term")
	ErrMissingTable         = errors.New("upsert.table is required when upsert is enabled")
	ErrMissingOnConflict    = errors.New("upsert.on_conflict is required when upsert is enabled")
	ErrInvalidBatchSize     = errors.New("upsert.batch_size must be at least 1")
	ErrInvalidLogLevel      = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config represents the complete importer configuration.
type Config struct {
	Fetch      FetchConfig      `yaml:"fetch"`
	Enrichment EnrichmentConfig `yaml:"enrichment"`
	Safety     SafetyConfig     `yaml:"safety"`
	Output     OutputConfig     `yaml:"output"`
	Upsert     UpsertConfig     `yaml:"upsert"`
	Retry      RetryPolicy      `yaml:"retry"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// FetchConfig controls the upstream events API window and pagination.
type FetchConfig struct {
	BaseURL        string   `yaml:"base_url"`
	Days           int      `yaml:"days"`
	PerPage        int      `yaml:"per_page"`
	MaxPages       int      `yaml:"max_pages"`
	Limit          int      `yaml:"limit"`
	IncludeVirtual bool     `yaml:"include_virtual"`
	EventTypes     []string `yaml:"event_types"`
}

// EnrichmentConfig bounds the best-effort source-page enrichment pass.
type EnrichmentConfig struct {
	Enabled           bool `yaml:"enabled"`
	MaxCalls          int  `yaml:"max_calls"`
	MinDescriptionLen int  `yaml:"min_description_len"`
	DelayMs           int  `yaml:"delay_ms"`
	TimeoutSec        int  `yaml:"timeout_sec"`
}

// GetDelay returns the courtesy delay between enrichment calls.
func (e *EnrichmentConfig) GetDelay() time.Duration {
	return time.Duration(e.DelayMs) * time.Millisecond
}

// GetTimeout returns the per-page fetch timeout for enrichment requests.
func (e *EnrichmentConfig) GetTimeout() time.Duration {
	return time.Duration(e.TimeoutSec) * time.Second
}

// SafetyConfig carries the content denylist.
type SafetyConfig struct {
	BannedTerms []string `yaml:"banned_terms"`
}

// OutputConfig defines the CSV destination and the column allowlist shared
// by the CSV and the upsert payload.
type OutputConfig struct {
	Path   string   `yaml:"path"`
	Fields []string `yaml:"fields"`
}

// UpsertConfig defines the storage upsert target.
type UpsertConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Table      string `yaml:"table"`
	OnConflict string `yaml:"on_conflict"`
	BatchSize  int    `yaml:"batch_size"`
}

// RetryPolicy defines retry behavior for upstream API requests.
type RetryPolicy struct {
	MaxAttempts int `yaml:"max_attempts"`
	MaxDelaySec int `yaml:"max_delay_sec"`
	TimeoutSec  int `yaml:"timeout_sec"`
}

// GetRetryDelay calculates the exponential backoff delay before retrying
// attempt+1: 2^attempt seconds, capped at MaxDelaySec.
func (rp *RetryPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}

	sec := 1 << attempt
	if rp.MaxDelaySec > 0 && sec > rp.MaxDelaySec {
		sec = rp.MaxDelaySec
	}

	return time.Duration(sec) * time.Second
}

// GetTimeout returns the per-request timeout.
func (rp *RetryPolicy) GetTimeout() time.Duration {
	return time.Duration(rp.TimeoutSec) * time.Second
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DefaultEventTypes returns the category filters applied when none are
// configured.
func DefaultEventTypes() []string {
	return []string{
		"RALLY",
		"TOWN_HALL",
		"MEETING",
		"COMMUNITY",
		"WORKSHOP",
		"VISIBILITY_EVENT",
		"SOLIDARITY_EVENT",
		"OTHER",
	}
}

// DefaultBannedTerms returns the content denylist applied when none is
// configured. Matching is case-insensitive substring containment.
func DefaultBannedTerms() []string {
	return []string{
		"riot", "rioting", "loot", "looting", "armed", "weapon", "weapons", "guns",
		"molotov", "kill", "assassinate", "attack", "violent", "violence",
	}
}

// DefaultFields returns the exact column set written to the CSV and sent to
// storage. Every name must exist in the target table.
func DefaultFields() []string {
	return []string{
		"title",
		"description",
		"city",
		"state",
		"event_time",
		"image_path",
		"status",
		"event_types",
		"is_accessible",
		"accessibility_features",
		"source_type",
		"source_name",
		"source_url",
		"source_key",
		"external_id",
		"last_seen_at",
	}
}

// Default returns the configuration used when no YAML file is supplied.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			BaseURL:    "https://api.mobilize.us",
			Days:       28,
			PerPage:    100,
			MaxPages:   50,
			Limit:      200,
			EventTypes: DefaultEventTypes(),
		},
		Enrichment: EnrichmentConfig{
			MaxCalls:          200,
			MinDescriptionLen: 180,
			DelayMs:           150,
			TimeoutSec:        30,
		},
		Safety: SafetyConfig{
			BannedTerms: DefaultBannedTerms(),
		},
		Output: OutputConfig{
			Path:   "events_import.csv",
			Fields: DefaultFields(),
		},
		Upsert: UpsertConfig{
			Table:      "protests",
			OnConflict: "source_key,external_id",
			BatchSize:  500,
		},
		Retry: RetryPolicy{
			MaxAttempts: 5,
			MaxDelaySec: 60,
			TimeoutSec:  45,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads YAML configuration over the defaults and validates the result.
func Load(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Fetch.BaseURL) == "" {
		return ErrMissingBaseURL
	}

	if c.Fetch.Days < 1 {
		return ErrInvalidDays
	}

	if c.Fetch.PerPage < 1 || c.Fetch.PerPage > 1000 {
		return ErrInvalidPerPage
	}

	if c.Fetch.MaxPages < 1 {
		return ErrInvalidMaxPages
	}

	if c.Fetch.Limit < 1 {
		return ErrInvalidLimit
	}

	if len(c.Fetch.EventTypes) == 0 {
		return ErrNoEventTypes
	}

	if c.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}

	if c.Retry.MaxDelaySec < 0 {
		return ErrInvalidMaxDelay
	}

	if c.Retry.TimeoutSec < 1 {
		return ErrInvalidTimeout
	}

	if c.Enrichment.MaxCalls < 0 {
		return ErrInvalidEnrichMax
	}

	if c.Enrichment.MinDescriptionLen < 0 {
		return ErrInvalidEnrichMinLen
	}

	if c.Enrichment.TimeoutSec < 1 {
		return ErrInvalidEnrichTimeout
	}

	if strings.TrimSpace(c.Output.Path) == "" {
		return ErrMissingOutputPath
	}

	if len(c.Output.Fields) == 0 {
		return ErrNoOutputFields
	}

	if len(c.Safety.BannedTerms) == 0 {
		return ErrNoBannedTerms
	}

	if c.Upsert.Enabled {
		if strings.TrimSpace(c.Upsert.Table) == "" {
			return ErrMissingTable
		}

		if strings.TrimSpace(c.Upsert.OnConflict) == "" {
			return ErrMissingOnConflict
		}
	}

	if c.Upsert.BatchSize < 1 {
		return ErrInvalidBatchSize
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}

// ParseFields splits a comma-separated column list, trimming blanks.
func ParseFields(s string) []string {
	var out []string

	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}

	return out
}

// String returns a string representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Days: %d, PerPage: %d, Limit: %d, EventTypes: %d, Enrich: %t}",
		c.Fetch.Days,
		c.Fetch.PerPage,
		c.Fetch.Limit,
		len(c.Fetch.EventTypes),
		c.Enrichment.Enabled,
	)
}
