package gold

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const dimLayout = "2006-01-02"

// Config controls natural key selection and the date dimension range.
//
// NaturalKey names the key columns explicitly and defaults to order_id.
// AutoKey switches to candidate detection against the merged columns.
type Config struct {
	NaturalKey []string `toml:"natural_key"`
	AutoKey    bool     `toml:"auto_key"`
	DimStart   string   `toml:"dim_start"`
	DimEnd     string   `toml:"dim_end"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	NaturalKey string
	AutoKey    string
	DimStart   string
	DimEnd     string
}

// DimRange returns the parsed date dimension bounds.
func (c *Config) DimRange() (time.Time, time.Time) {
	start, _ := time.Parse(dimLayout, c.DimStart)
	end, _ := time.Parse(dimLayout, c.DimEnd)
	return start, end
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}
	c.loadDefaults()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. An overlay that picks one
// key mode replaces the other; setting both is left for validation.
func (c *Config) Merge(overlay *Config) {
	if len(overlay.NaturalKey) > 0 {
		c.NaturalKey = overlay.NaturalKey
		c.AutoKey = overlay.AutoKey
	}
	if overlay.AutoKey {
		c.AutoKey = true
		if len(overlay.NaturalKey) == 0 {
			c.NaturalKey = nil
		}
	}
	if overlay.DimStart != "" {
		c.DimStart = overlay.DimStart
	}
	if overlay.DimEnd != "" {
		c.DimEnd = overlay.DimEnd
	}
}

func (c *Config) loadDefaults() {
	if len(c.NaturalKey) == 0 && !c.AutoKey {
		c.NaturalKey = []string{"order_id"}
	}
	if c.DimStart == "" {
		c.DimStart = "2024-01-01"
	}
	if c.DimEnd == "" {
		c.DimEnd = "2030-12-31"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.AutoKey != "" {
		if v := os.Getenv(env.AutoKey); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				c.AutoKey = b
				if b {
					c.NaturalKey = nil
				}
			}
		}
	}
	if env.NaturalKey != "" {
		if v := os.Getenv(env.NaturalKey); v != "" {
			c.NaturalKey = splitList(v)
		}
	}
	if env.DimStart != "" {
		if v := os.Getenv(env.DimStart); v != "" {
			c.DimStart = v
		}
	}
	if env.DimEnd != "" {
		if v := os.Getenv(env.DimEnd); v != "" {
			c.DimEnd = v
		}
	}
}

func (c *Config) validate() error {
	if c.AutoKey && len(c.NaturalKey) > 0 {
		return fmt.Errorf("natural_key and auto_key are mutually exclusive")
	}
	start, err := time.Parse(dimLayout, c.DimStart)
	if err != nil {
		return fmt.Errorf("invalid dim_start: %w", err)
	}
	end, err := time.Parse(dimLayout, c.DimEnd)
	if err != nil {
		return fmt.Errorf("invalid dim_end: %w", err)
	}
	if end.Before(start) {
		return fmt.Errorf("dim_end %s before dim_start %s", c.DimEnd, c.DimStart)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
