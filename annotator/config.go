package annotator

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/mhl/layout"
	"github.com/hazyhaar/mhl/layout/rodlayout"
)

// Layout engines.
const (
	LayoutFlow = "flow"
	LayoutRod  = "rod"
)

// Config holds all annotator configuration.
type Config struct {
	DBPath   string        `yaml:"db_path"`
	Addr     string        `yaml:"addr"`
	Debounce time.Duration `yaml:"debounce"`

	// Layout selects the geometry engine: "flow" (default) or "rod".
	Layout  string            `yaml:"layout"`
	Flow    layout.FlowConfig `yaml:"flow"`
	Browser rodlayout.Config  `yaml:"browser"`

	// MaxBody caps HTTP request bodies in bytes.
	MaxBody int64 `yaml:"max_body"`

	// EventRetentionDays bounds the business event log. Zero keeps all.
	EventRetentionDays int `yaml:"event_retention_days"`

	Sync SyncConfig `yaml:"sync"`
}

// SyncConfig controls polling the database for writes made by other
// processes sharing it.
type SyncConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"` // default 1s
	Debounce time.Duration `yaml:"debounce"` // default 100ms
}

func (c *Config) defaults() {
	if c.DBPath == "" {
		c.DBPath = "mhl.db"
	}
	if c.Addr == "" {
		c.Addr = ":8420"
	}
	if c.Debounce <= 0 {
		c.Debounce = 10 * time.Millisecond
	}
	if c.Layout == "" {
		c.Layout = LayoutFlow
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 4 << 20
	}
	if c.Sync.Interval <= 0 {
		c.Sync.Interval = time.Second
	}
	if c.Sync.Debounce <= 0 {
		c.Sync.Debounce = 100 * time.Millisecond
	}
}

func (c *Config) validate() error {
	switch c.Layout {
	case LayoutFlow, LayoutRod:
		return nil
	}
	return fmt.Errorf("annotator: config: unknown layout %q", c.Layout)
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("annotator: read config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("annotator: parse config: %w", err)
	}
	return cfg, nil
}
