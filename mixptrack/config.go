package mixptrack

import (
	"github.com/hazyhaar/mixptrack/mixptrack/internal/config"
	"github.com/hazyhaar/mixptrack/mixptrack/internal/dom"
)

// Config is the top-level mixptrack configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// ScanConfig controls the rescan loop.
type ScanConfig = config.ScanConfig

// PayloadConfig controls payload construction.
type PayloadConfig = config.PayloadConfig

// PageConfig defines a page to bind.
type PageConfig = config.PageConfig

// SinkConfig defines an analytics backend.
type SinkConfig = config.SinkConfig

// Page modes.
const (
	ModeStatic  = config.ModeStatic
	ModeBrowser = config.ModeBrowser
	ModeAuto    = config.ModeAuto
)

// Document is the DOM capability a page session scans.
type Document = dom.Document

// Element is one element of a Document.
type Element = dom.Element

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with defaults applied and no pages.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
