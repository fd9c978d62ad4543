package silver

import (
	"fmt"
	"os"
	"strconv"

	"github.com/JaimeStill/salesflow/pkg/formatting"
	"github.com/JaimeStill/salesflow/pkg/table"
)

// Config controls raw input decoding and day-level parallelism.
type Config struct {
	Encoding    string `toml:"encoding"`
	Workers     int    `toml:"workers"`
	MaxFileSize string `toml:"max_file_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Encoding    string
	Workers     string
	MaxFileSize string
}

// MaxFileSizeBytes returns MaxFileSize as a byte count.
func (c *Config) MaxFileSizeBytes() int64 {
	n, _ := formatting.ParseBytes(c.MaxFileSize)
	return n
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Encoding != "" {
		c.Encoding = overlay.Encoding
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.MaxFileSize != "" {
		c.MaxFileSize = overlay.MaxFileSize
	}
}

func (c *Config) loadDefaults() {
	if c.Encoding == "" {
		c.Encoding = "utf-8"
	}
	if c.Workers == 0 {
		c.Workers = 1
	}
	if c.MaxFileSize == "" {
		c.MaxFileSize = "256MB"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Encoding != "" {
		if v := os.Getenv(env.Encoding); v != "" {
			c.Encoding = v
		}
	}
	if env.Workers != "" {
		if v := os.Getenv(env.Workers); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Workers = n
			}
		}
	}
	if env.MaxFileSize != "" {
		if v := os.Getenv(env.MaxFileSize); v != "" {
			c.MaxFileSize = v
		}
	}
}

func (c *Config) validate() error {
	if !table.ValidEncoding(c.Encoding) {
		return fmt.Errorf("%w: %q", table.ErrUnknownEncoding, c.Encoding)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive")
	}
	if _, err := formatting.ParseBytes(c.MaxFileSize); err != nil {
		return fmt.Errorf("invalid max_file_size: %w", err)
	}
	return nil
}
