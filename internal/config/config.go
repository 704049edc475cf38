package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/gyeh/pregclass/internal/classify"
	"github.com/gyeh/pregclass/internal/table"

	"gopkg.in/yaml.v3"
)

// Config holds all runtime configuration for a pregclass run.
type Config struct {
	DSN          string
	InputPath    string
	OutputPath   string
	InputFormat  string // "csv" or "parquet"; inferred from the extension when empty
	OutputFormat string
	LogFormat    string // "text" or "json"
	LogLevel     string
	Product      string
	Scheme       string // comorbidity scheme: bateman or leonard
	Expanded     bool   // outcome: include EXPANDED rules
	Indicators   bool   // smm and comorbidity: emit per-indicator columns
	Workers      int
	Store        bool // persist the result to Postgres
	Force        bool // replace a stored run of the same input and variant
	DryRun       bool
	Columns      table.Columns
}

// yamlConfig is the on-disk YAML structure.
type yamlConfig struct {
	Columns *table.Columns `yaml:"columns"`
	Format  string         `yaml:"format"`
	Schema  string         `yaml:"schema"`
	Scheme  string         `yaml:"scheme"`
	Workers int            `yaml:"workers"`
}

// LoadFromFile reads a YAML config file and merges its values into Config.
// Values already set from flags win over the file.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if yc.Columns != nil {
		c.Columns = *yc.Columns
	}
	if c.OutputFormat == "" {
		c.OutputFormat = yc.Format
	}
	if c.Scheme == "" {
		c.Scheme = yc.Scheme
	}
	if c.Workers == 0 {
		c.Workers = yc.Workers
	}
	switch strings.ToLower(yc.Schema) {
	case "", "baseline":
	case "expanded":
		c.Expanded = true
	default:
		return fmt.Errorf("unknown outcome schema %q in config", yc.Schema)
	}
	return c.Columns.Validate()
}

// ScopeColumns drops mapped columns the selected product never reads, so
// their absence from the input is not an error. Only comorbidity reads age.
func (c *Config) ScopeColumns() {
	if c.Product != classify.ProductComorbidity {
		c.Columns.Age = ""
	}
}

// Validate checks required fields and returns an error if the config is invalid.
func (c *Config) Validate() error {
	if c.InputPath == "" {
		return fmt.Errorf("--in is required")
	}
	if _, err := os.Stat(c.InputPath); err != nil {
		return fmt.Errorf("file not accessible: %w", err)
	}
	if err := c.Columns.Validate(); err != nil {
		return fmt.Errorf("column mapping: %w", err)
	}
	if !validFormat(c.InputFormat) {
		return fmt.Errorf("unknown input format %q", c.InputFormat)
	}
	if !validFormat(c.OutputFormat) {
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("--workers must not be negative")
	}

	switch c.Product {
	case classify.ProductOutcome, classify.ProductSMM, classify.ProductAPO:
	case classify.ProductComorbidity:
		s := strings.ToLower(c.Scheme)
		if s != classify.SchemeBateman && s != classify.SchemeLeonard {
			return fmt.Errorf("--scheme must be %s or %s, got %q", classify.SchemeBateman, classify.SchemeLeonard, c.Scheme)
		}
	default:
		return fmt.Errorf("unknown product %q", c.Product)
	}

	if c.OutputPath == "" && !c.DryRun {
		return fmt.Errorf("--out is required")
	}
	if c.OutputPath != "" && c.OutputFormat == "" {
		if _, err := table.FormatOf(c.OutputPath); err != nil {
			return err
		}
	}
	return nil
}

// ValidateWithDSN checks both file and DSN fields.
func (c *Config) ValidateWithDSN() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DSN == "" {
		return fmt.Errorf("--dsn or PREGCLASS_DSN is required")
	}
	return nil
}

func validFormat(f string) bool {
	return f == "" || f == table.FormatCSV || f == table.FormatParquet
}
