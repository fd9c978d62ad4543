package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Supported storage providers.
const (
	ProviderLocal = "local"
	ProviderAzure = "azure"
)

// Config selects and parameterizes the artifact storage provider.
type Config struct {
	Enabled          bool   `toml:"enabled"`
	Provider         string `toml:"provider"`
	LocalDir         string `toml:"local_dir"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	ServiceURL       string `toml:"service_url"`
	Prefix           string `toml:"prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Enabled          string
	Provider         string
	LocalDir         string
	ContainerName    string
	ConnectionString string
	ServiceURL       string
	Prefix           string
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
	if overlay.Enabled {
		c.Enabled = true
	}
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.LocalDir != "" {
		c.LocalDir = overlay.LocalDir
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.ServiceURL != "" {
		c.ServiceURL = overlay.ServiceURL
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if c.LocalDir == "" {
		c.LocalDir = "artifacts"
	}
	if c.ContainerName == "" {
		c.ContainerName = "salesflow"
	}
	if c.Prefix == "" {
		c.Prefix = "runs"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Enabled != "" {
		if v := os.Getenv(env.Enabled); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.Enabled = b
			}
		}
	}
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.LocalDir != "" {
		if v := os.Getenv(env.LocalDir); v != "" {
			c.LocalDir = v
		}
	}
	if env.ContainerName != "" {
		if v := os.Getenv(env.ContainerName); v != "" {
			c.ContainerName = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
	if env.ServiceURL != "" {
		if v := os.Getenv(env.ServiceURL); v != "" {
			c.ServiceURL = v
		}
	}
	if env.Prefix != "" {
		if v := os.Getenv(env.Prefix); v != "" {
			c.Prefix = v
		}
	}
}

func (c *Config) validate() error {
	c.Prefix = strings.Trim(c.Prefix, "/")

	switch c.Provider {
	case ProviderLocal:
		if c.LocalDir == "" {
			return fmt.Errorf("local_dir required")
		}
	case ProviderAzure:
		if c.ContainerName == "" {
			return fmt.Errorf("container_name required")
		}
		if c.Enabled && c.ConnectionString == "" && c.ServiceURL == "" {
			return fmt.Errorf("connection_string or service_url required")
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, c.Provider)
	}
	if strings.Contains(c.Prefix, "..") {
		return fmt.Errorf("prefix: %w", ErrInvalidKey)
	}
	return nil
}
