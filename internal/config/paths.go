package config

import (
	"os"
	"path/filepath"
)

const (
	EnvPathsRaw          = "SALESFLOW_PATHS_RAW"
	EnvPathsSilver       = "SALESFLOW_PATHS_SILVER"
	EnvPathsQuarantine   = "SALESFLOW_PATHS_QUARANTINE"
	EnvPathsGold         = "SALESFLOW_PATHS_GOLD"
	EnvPathsReports      = "SALESFLOW_PATHS_REPORTS"
	EnvPathsSilverSchema = "SALESFLOW_PATHS_SILVER_SCHEMA"
	EnvPathsGoldSchema   = "SALESFLOW_PATHS_GOLD_SCHEMA"
)

// PathsConfig locates every stage's input and output on disk.
type PathsConfig struct {
	Raw          string `toml:"raw"`
	Silver       string `toml:"silver"`
	Quarantine   string `toml:"quarantine"`
	Gold         string `toml:"gold"`
	Reports      string `toml:"reports"`
	SilverSchema string `toml:"silver_schema"`
	GoldSchema   string `toml:"gold_schema"`
}

// QualityReport is the audit report location.
func (c *PathsConfig) QualityReport() string {
	return filepath.Join(c.Reports, "quality_report.md")
}

// DQReport is the schema validation summary location.
func (c *PathsConfig) DQReport() string {
	return filepath.Join(c.Reports, "dq_report.md")
}

// Trends is the quarantine trend history location.
func (c *PathsConfig) Trends() string {
	return filepath.Join(c.Reports, "quarantine_trends.csv")
}

// Finalize applies environment variable overrides, then defaults, so the
// quarantine directory follows an overridden silver directory.
func (c *PathsConfig) Finalize() error {
	c.loadEnv()
	c.loadDefaults()
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *PathsConfig) Merge(overlay *PathsConfig) {
	merge := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	merge(&c.Raw, overlay.Raw)
	merge(&c.Silver, overlay.Silver)
	merge(&c.Quarantine, overlay.Quarantine)
	merge(&c.Gold, overlay.Gold)
	merge(&c.Reports, overlay.Reports)
	merge(&c.SilverSchema, overlay.SilverSchema)
	merge(&c.GoldSchema, overlay.GoldSchema)
}

func (c *PathsConfig) loadDefaults() {
	if c.Raw == "" {
		c.Raw = filepath.Join("data", "raw")
	}
	if c.Silver == "" {
		c.Silver = filepath.Join("data", "silver")
	}
	if c.Quarantine == "" {
		c.Quarantine = filepath.Join(c.Silver, "quarantine")
	}
	if c.Gold == "" {
		c.Gold = filepath.Join("data", "gold")
	}
	if c.Reports == "" {
		c.Reports = "reports"
	}
	if c.SilverSchema == "" {
		c.SilverSchema = filepath.Join("schemas", "sales_silver.schema.json")
	}
	if c.GoldSchema == "" {
		c.GoldSchema = filepath.Join("schemas", "fact_sales_gold.schema.json")
	}
}

func (c *PathsConfig) loadEnv() {
	for env, dst := range map[string]*string{
		EnvPathsRaw:          &c.Raw,
		EnvPathsSilver:       &c.Silver,
		EnvPathsQuarantine:   &c.Quarantine,
		EnvPathsGold:         &c.Gold,
		EnvPathsReports:      &c.Reports,
		EnvPathsSilverSchema: &c.SilverSchema,
		EnvPathsGoldSchema:   &c.GoldSchema,
	} {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
}
