/*
Package config provides JSON to Go configuration conversion.

PURPOSE:
  Converts a JSON runtime configuration into the concrete pieces the
  engine needs: the holiday calendar, the store binding and the server
  address. This keeps the calendar out of code - the payroll operator
  maintains the holiday list, not a developer.

JSON SCHEMA:
  {
    "store": {
      "kind": "workbook",
      "path": "./miluim.xlsx"
    },
    "listen": ":8080",
    "output_dir": "./reports",
    "holidays": [
      "23/04/2025",
      "01/05/2025"
    ]
  }

KEY FEATURES:
  - Validates dates in the holiday list (DD/MM/YYYY, dots accepted)
  - Sets sensible defaults (workbook store, ./reports)
  - Builds a recon.HolidayCalendar ready for the engine

USAGE:
  cfg, err := config.Load("config.json")
  if err != nil { ... }
  cal := cfg.Calendar()
  st, err := cfg.OpenStore()

SEE ALSO:
  - recon/calendar.go: FixedCalendar consumed by day classification
  - store/workbook, store/sqlite: the two store kinds
*/
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/yelush19/Litay-Panda-miluim/recon"
	"github.com/yelush19/Litay-Panda-miluim/store/sqlite"
	"github.com/yelush19/Litay-Panda-miluim/store/workbook"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// Store kinds accepted in the "store.kind" field.
const (
	StoreWorkbook = "workbook"
	StoreSQLite   = "sqlite"
)

// Config is the JSON runtime configuration.
type Config struct {
	Store     StoreConfig `json:"store"`
	Listen    string      `json:"listen,omitempty"`
	OutputDir string      `json:"output_dir,omitempty"`
	Holidays  []string    `json:"holidays,omitempty"`
}

// StoreConfig binds the run to a system-of-record file.
type StoreConfig struct {
	Kind string `json:"kind"`
	Path string `json:"path"`
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads and validates a JSON configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse parses and validates a JSON configuration.
func Parse(raw []byte) (*Config, error) {
	cfg := &Config{}
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Kind == "" {
		c.Store.Kind = StoreWorkbook
	}
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.OutputDir == "" {
		c.OutputDir = "./reports"
	}
}

func (c *Config) validate() error {
	switch c.Store.Kind {
	case StoreWorkbook, StoreSQLite:
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path is required")
	}
	for _, h := range c.Holidays {
		if _, ok := recon.ParseDate(recon.NormalizeDate(h)); !ok {
			return fmt.Errorf("holiday %q: %w", h, recon.ErrMalformedDate)
		}
	}
	return nil
}

// =============================================================================
// MATERIALIZATION
// =============================================================================

// Calendar builds the holiday calendar from the configured date list.
func (c *Config) Calendar() recon.HolidayCalendar {
	if len(c.Holidays) == 0 {
		return recon.EmptyCalendar{}
	}
	dates := make([]time.Time, 0, len(c.Holidays))
	for _, h := range c.Holidays {
		if d, ok := recon.ParseDate(recon.NormalizeDate(h)); ok {
			dates = append(dates, d)
		}
	}
	return recon.NewFixedCalendar(dates...)
}

// OpenStore opens the configured system of record. A workbook path that
// does not exist yet yields an empty store bound to it.
func (c *Config) OpenStore() (recon.Store, error) {
	switch c.Store.Kind {
	case StoreSQLite:
		return sqlite.New(c.Store.Path)
	default:
		if _, err := os.Stat(c.Store.Path); os.IsNotExist(err) {
			return workbook.Create(c.Store.Path), nil
		}
		return workbook.Open(c.Store.Path)
	}
}
