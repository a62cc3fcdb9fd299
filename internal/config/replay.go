package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical replay defaults file.
const DefaultConfigPath = "config/replay.defaults.json"

// ReplayConfig holds the tuning parameters for the chunked replay pipeline.
// The schema is documented by config/replay.defaults.json. Fields are
// pointers so a partial config file only overrides what it names.
type ReplayConfig struct {
	// Windowing params
	ChunkSize         *int `json:"chunk_size,omitempty"`
	MaxWindow         *int `json:"max_window,omitempty"`
	PrefetchThreshold *int `json:"prefetch_threshold,omitempty"`

	// Clock params
	BaseFramesPerSecond *float64 `json:"base_frames_per_second,omitempty"`
	TickInterval        *string  `json:"tick_interval,omitempty"` // duration string like "33ms"

	// Import params
	MaxImportBytes *int64 `json:"max_import_bytes,omitempty"`
}

// EmptyReplayConfig returns a ReplayConfig with all fields unset. The Get*
// accessors supply defaults for unset fields.
func EmptyReplayConfig() *ReplayConfig {
	return &ReplayConfig{}
}

// LoadReplayConfig loads a ReplayConfig from a JSON file. The file must have
// a .json extension and stay under the max file size. Fields omitted from
// the file retain their defaults, so partial configs are safe.
func LoadReplayConfig(path string) (*ReplayConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyReplayConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *ReplayConfig) Validate() error {
	if c.ChunkSize != nil && *c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", *c.ChunkSize)
	}
	if c.MaxWindow != nil && *c.MaxWindow < 1 {
		return fmt.Errorf("max_window must be positive, got %d", *c.MaxWindow)
	}
	if c.PrefetchThreshold != nil && *c.PrefetchThreshold < 1 {
		return fmt.Errorf("prefetch_threshold must be positive, got %d", *c.PrefetchThreshold)
	}
	if c.ChunkSize != nil && c.MaxWindow != nil && *c.ChunkSize > *c.MaxWindow {
		return fmt.Errorf("chunk_size (%d) must not exceed max_window (%d)", *c.ChunkSize, *c.MaxWindow)
	}
	if c.BaseFramesPerSecond != nil && *c.BaseFramesPerSecond <= 0 {
		return fmt.Errorf("base_frames_per_second must be positive, got %f", *c.BaseFramesPerSecond)
	}
	if c.TickInterval != nil && *c.TickInterval != "" {
		if _, err := time.ParseDuration(*c.TickInterval); err != nil {
			return fmt.Errorf("invalid tick_interval '%s': %w", *c.TickInterval, err)
		}
	}
	if c.MaxImportBytes != nil && *c.MaxImportBytes < 1 {
		return fmt.Errorf("max_import_bytes must be positive, got %d", *c.MaxImportBytes)
	}
	return nil
}

// GetChunkSize returns the chunk_size value or the default.
func (c *ReplayConfig) GetChunkSize() int {
	if c.ChunkSize == nil {
		return 500 // default
	}
	return *c.ChunkSize
}

// GetMaxWindow returns the max_window value or the default.
func (c *ReplayConfig) GetMaxWindow() int {
	if c.MaxWindow == nil {
		return 2000 // default
	}
	return *c.MaxWindow
}

// GetPrefetchThreshold returns the prefetch_threshold value or the default.
func (c *ReplayConfig) GetPrefetchThreshold() int {
	if c.PrefetchThreshold == nil {
		return 100 // default
	}
	return *c.PrefetchThreshold
}

// GetBaseFramesPerSecond returns the base_frames_per_second value or the default.
func (c *ReplayConfig) GetBaseFramesPerSecond() float64 {
	if c.BaseFramesPerSecond == nil {
		return 10.0 // default
	}
	return *c.BaseFramesPerSecond
}

// GetTickInterval parses and returns the TickInterval as a time.Duration.
func (c *ReplayConfig) GetTickInterval() time.Duration {
	if c.TickInterval == nil || *c.TickInterval == "" {
		return 33 * time.Millisecond // default, ~30 ticks/s
	}
	d, err := time.ParseDuration(*c.TickInterval)
	if err != nil {
		return 33 * time.Millisecond // default on parse error
	}
	return d
}

// GetMaxImportBytes returns the max_import_bytes value or the default.
func (c *ReplayConfig) GetMaxImportBytes() int64 {
	if c.MaxImportBytes == nil {
		return 50 * 1024 * 1024 // default: 50MB
	}
	return *c.MaxImportBytes
}
