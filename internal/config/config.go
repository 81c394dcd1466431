// Package config holds runtime configuration of the editor host.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration. Fields may be loaded from a YAML file
// and overridden by command-line flags or the environment.
type Config struct {
	// RootDir is the directory media sources are resolved against.
	RootDir string `yaml:"root_dir"`
	// StorageDir is the private area edited bitmaps are persisted to.
	StorageDir string `yaml:"storage_dir"`
	// OutputDir receives full resolution results of preprocessing.
	OutputDir string `yaml:"output_dir"`

	Workers    int   `yaml:"workers"`
	CacheBytes int64 `yaml:"cache_bytes"`

	ThumbnailOffset time.Duration `yaml:"thumbnail_offset"`
	FFmpeg          string        `yaml:"ffmpeg"`

	Listen string `yaml:"listen"`
}

const (
	defaultWorkers         = 4
	defaultThumbnailOffset = time.Microsecond
	defaultFFmpeg          = "ffmpeg"
	defaultListen          = "localhost:0"
)

// Default returns a Config populated with standard defaults.
func Default() *Config {
	return &Config{
		Workers:         defaultWorkers,
		CacheBytes:      0,
		ThumbnailOffset: defaultThumbnailOffset,
		FFmpeg:          defaultFFmpeg,
		Listen:          defaultListen,
	}
}

// Validate clamps values to safe ranges and derives unset directories from
// RootDir.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.CacheBytes < 0 {
		c.CacheBytes = 0
	}
	if c.ThumbnailOffset <= 0 {
		c.ThumbnailOffset = defaultThumbnailOffset
	}
	if c.FFmpeg == "" {
		c.FFmpeg = defaultFFmpeg
	}
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.RootDir == "" {
		return errors.New("root directory is required")
	}
	if c.StorageDir == "" {
		c.StorageDir = filepath.Join(c.RootDir, ".pickcrop")
	}
	if c.OutputDir == "" {
		c.OutputDir = filepath.Join(c.RootDir, "output")
	}
	return nil
}

// Load reads configuration from the YAML file at path on top of the defaults.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to open config %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Write encodes the configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
