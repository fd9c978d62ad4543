package metrics

import (
	"fmt"
	"net/url"
	"os"
)

// Config selects the export sinks. Both are optional; with neither set
// metrics are collected but not exported.
type Config struct {
	Textfile       string `toml:"textfile"`
	PushgatewayURL string `toml:"pushgateway_url"`
	Job            string `toml:"job"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Textfile       string
	PushgatewayURL string
	Job            string
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
	if overlay.Textfile != "" {
		c.Textfile = overlay.Textfile
	}
	if overlay.PushgatewayURL != "" {
		c.PushgatewayURL = overlay.PushgatewayURL
	}
	if overlay.Job != "" {
		c.Job = overlay.Job
	}
}

func (c *Config) loadDefaults() {
	if c.Job == "" {
		c.Job = "salesflow"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Textfile != "" {
		if v := os.Getenv(env.Textfile); v != "" {
			c.Textfile = v
		}
	}
	if env.PushgatewayURL != "" {
		if v := os.Getenv(env.PushgatewayURL); v != "" {
			c.PushgatewayURL = v
		}
	}
	if env.Job != "" {
		if v := os.Getenv(env.Job); v != "" {
			c.Job = v
		}
	}
}

func (c *Config) validate() error {
	if c.PushgatewayURL != "" {
		if _, err := url.ParseRequestURI(c.PushgatewayURL); err != nil {
			return fmt.Errorf("invalid pushgateway_url: %w", err)
		}
	}
	return nil
}
