// Package config handles mixptrack configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Page modes.
const (
	ModeStatic  = "static"  // fetched once over HTTP, parsed in memory
	ModeBrowser = "browser" // live Chrome tab
	ModeAuto    = "auto"    // static when the fetched HTML is self-sufficient
)

// Config is the top-level mixptrack configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Scan    ScanConfig    `yaml:"scan"`
	Payload PayloadConfig `yaml:"payload"`
	Pages   []PageConfig  `yaml:"pages"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	Stealth          bool          `yaml:"stealth"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
}

// ScanConfig controls the rescan loop.
type ScanConfig struct {
	Interval time.Duration `yaml:"interval"`
	Settle   time.Duration `yaml:"settle"`
}

// PayloadConfig controls payload construction.
type PayloadConfig struct {
	Sanitize bool `yaml:"sanitize"`
	Referrer bool `yaml:"referrer"`
}

// PageConfig defines a page to bind.
type PageConfig struct {
	ID       string `yaml:"id"`
	URL      string `yaml:"url"`
	Mode     string `yaml:"mode"` // static | browser | auto
	Referrer string `yaml:"referrer"`
}

// SinkConfig defines an analytics backend.
type SinkConfig struct {
	Type  string `yaml:"type"`  // stdout | webhook | mixpanel | journal | page
	URL   string `yaml:"url"`   // webhook target, mixpanel endpoint override
	Token string `yaml:"token"` // mixpanel project token
	Path  string `yaml:"path"`  // journal database
}

// HTTPConfig controls the admin API.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
	// AllowPrivate lets POST /pages attach loopback and private-network
	// URLs.
	AllowPrivate bool `yaml:"allow_private"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero values.
func (c *Config) ApplyDefaults() {
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 4 * time.Hour
	}
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 30 * time.Second
	}
	if c.Scan.Interval <= 0 {
		c.Scan.Interval = 2 * time.Second
	}
	for i := range c.Pages {
		if c.Pages[i].Mode == "" {
			c.Pages[i].Mode = ModeAuto
		}
		if c.Pages[i].ID == "" {
			c.Pages[i].ID = fmt.Sprintf("page-%d", i+1)
		}
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Pages))
	for _, p := range c.Pages {
		if p.URL == "" {
			return fmt.Errorf("config: page %q: url is required", p.ID)
		}
		if p.Mode != ModeStatic && p.Mode != ModeBrowser && p.Mode != ModeAuto {
			return fmt.Errorf("config: page %q: unknown mode %q", p.ID, p.Mode)
		}
		if seen[p.ID] {
			return fmt.Errorf("config: duplicate page id %q", p.ID)
		}
		seen[p.ID] = true
	}
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout", "page":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: webhook sink: url is required")
			}
		case "mixpanel":
			if s.Token == "" {
				return fmt.Errorf("config: mixpanel sink: token is required")
			}
		case "journal":
			if s.Path == "" {
				return fmt.Errorf("config: journal sink: path is required")
			}
		default:
			return fmt.Errorf("config: unknown sink type %q", s.Type)
		}
	}
	return nil
}

// NeedsBrowser reports whether any page may be observed in a live tab.
func (c *Config) NeedsBrowser() bool {
	for _, p := range c.Pages {
		if p.Mode != ModeStatic {
			return true
		}
	}
	return false
}
