package audit

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"
)

// Config holds the thresholds of the gold checks.
type Config struct {
	MaxUnitPrice     float64 `toml:"max_unit_price"`
	LookbackDays     int     `toml:"lookback_days"`
	WindowDays       int     `toml:"window_days"`
	MinHistoryDays   int     `toml:"min_history_days"`
	VolumeThreshold  float64 `toml:"volume_threshold"`
	SpikeRatio       float64 `toml:"spike_ratio"`
	RevenueTolerance float64 `toml:"revenue_tolerance"`
	Timezone         string  `toml:"timezone"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxUnitPrice     string
	LookbackDays     string
	WindowDays       string
	MinHistoryDays   string
	VolumeThreshold  string
	SpikeRatio       string
	RevenueTolerance string
	Timezone         string
}

// Location returns the time zone calendar days are evaluated in.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
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
	if overlay.MaxUnitPrice != 0 {
		c.MaxUnitPrice = overlay.MaxUnitPrice
	}
	if overlay.LookbackDays != 0 {
		c.LookbackDays = overlay.LookbackDays
	}
	if overlay.WindowDays != 0 {
		c.WindowDays = overlay.WindowDays
	}
	if overlay.MinHistoryDays != 0 {
		c.MinHistoryDays = overlay.MinHistoryDays
	}
	if overlay.VolumeThreshold != 0 {
		c.VolumeThreshold = overlay.VolumeThreshold
	}
	if overlay.SpikeRatio != 0 {
		c.SpikeRatio = overlay.SpikeRatio
	}
	if overlay.RevenueTolerance != 0 {
		c.RevenueTolerance = overlay.RevenueTolerance
	}
	if overlay.Timezone != "" {
		c.Timezone = overlay.Timezone
	}
}

func (c *Config) loadDefaults() {
	if c.MaxUnitPrice == 0 {
		c.MaxUnitPrice = 100000
	}
	if c.LookbackDays == 0 {
		c.LookbackDays = 730
	}
	if c.WindowDays == 0 {
		c.WindowDays = 7
	}
	if c.MinHistoryDays == 0 {
		c.MinHistoryDays = 3
	}
	if c.VolumeThreshold == 0 {
		c.VolumeThreshold = 0.60
	}
	if c.SpikeRatio == 0 {
		c.SpikeRatio = 2.5
	}
	if c.RevenueTolerance == 0 {
		c.RevenueTolerance = 0.01
	}
	if c.Timezone == "" {
		c.Timezone = "Asia/Tokyo"
	}
}

func (c *Config) loadEnv(env *Env) {
	floats := []struct {
		name string
		dst  *float64
	}{
		{env.MaxUnitPrice, &c.MaxUnitPrice},
		{env.VolumeThreshold, &c.VolumeThreshold},
		{env.SpikeRatio, &c.SpikeRatio},
		{env.RevenueTolerance, &c.RevenueTolerance},
	}
	for _, f := range floats {
		if f.name == "" {
			continue
		}
		if v := os.Getenv(f.name); v != "" {
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				*f.dst = n
			}
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{env.LookbackDays, &c.LookbackDays},
		{env.WindowDays, &c.WindowDays},
		{env.MinHistoryDays, &c.MinHistoryDays},
	}
	for _, i := range ints {
		if i.name == "" {
			continue
		}
		if v := os.Getenv(i.name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*i.dst = n
			}
		}
	}

	if env.Timezone != "" {
		if v := os.Getenv(env.Timezone); v != "" {
			c.Timezone = v
		}
	}
}

func (c *Config) validate() error {
	if c.MaxUnitPrice <= 0 {
		return fmt.Errorf("max_unit_price must be positive")
	}
	if c.LookbackDays < 1 || c.WindowDays < 1 || c.MinHistoryDays < 1 {
		return fmt.Errorf("lookback_days, window_days and min_history_days must be positive")
	}
	if c.VolumeThreshold <= 0 || c.SpikeRatio <= 0 || c.RevenueTolerance < 0 {
		return fmt.Errorf("volume_threshold and spike_ratio must be positive, revenue_tolerance non-negative")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}
