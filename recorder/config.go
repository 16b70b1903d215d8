package recorder

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level recorder configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Capture CaptureConfig `yaml:"capture"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	Store   StoreConfig   `yaml:"store"`
	Listen  string        `yaml:"listen"`
	Auth    AuthConfig    `yaml:"auth"`
}

// BrowserConfig controls Chrome attachment.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty = launch
	// a local one.
	Remote string `yaml:"remote"`
	// Headless hides the browser window. Off by default: a human
	// produces the interactions being recorded.
	Headless bool `yaml:"headless"`
	// Stealth hides automation markers from the page.
	Stealth bool `yaml:"stealth"`
}

// CaptureConfig tunes the coalescing engine.
type CaptureConfig struct {
	// AttrDebounce is the quiet window closing an attribute batch.
	AttrDebounce time.Duration `yaml:"attr_debounce"`
	// AttrCap flushes an attribute batch immediately at this size.
	AttrCap int `yaml:"attr_cap"`
	// HoverDelay is how long the pointer must rest for a hover record.
	HoverDelay time.Duration `yaml:"hover_delay"`
	// TypingCap flushes a typing run at this many sub-events.
	TypingCap int `yaml:"typing_cap"`
	// StatePoll is how often the recording state store is polled.
	StatePoll time.Duration `yaml:"state_poll"`
}

// SinkConfig defines an additional output backend beside the store.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// StoreConfig locates the session database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig secures the control API.
type AuthConfig struct {
	// TokenHash is the bcrypt hash of the control token.
	TokenHash string `yaml:"token_hash"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recorder: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("recorder: parse config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with production values.
func (c *Config) ApplyDefaults() {
	if c.Capture.AttrDebounce <= 0 {
		c.Capture.AttrDebounce = 200 * time.Millisecond
	}
	if c.Capture.AttrCap <= 0 {
		c.Capture.AttrCap = 50
	}
	if c.Capture.HoverDelay <= 0 {
		c.Capture.HoverDelay = 500 * time.Millisecond
	}
	if c.Capture.TypingCap <= 0 {
		c.Capture.TypingCap = 200
	}
	if c.Capture.StatePoll <= 0 {
		c.Capture.StatePoll = 250 * time.Millisecond
	}
	if c.Store.Path == "" {
		c.Store.Path = "recordsteps.db"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8273"
	}
}
