package recorder

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recordsteps.yaml")
	data := `
browser:
  headless: true
  stealth: true
capture:
  attr_debounce: 100ms
  attr_cap: 25
store:
  path: /tmp/test-recordsteps.db
listen: 127.0.0.1:9999
sinks:
  - type: webhook
    url: https://hooks.example.com/steps
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Browser.Headless || !cfg.Browser.Stealth {
		t.Fatalf("browser config: %+v", cfg.Browser)
	}
	if cfg.Capture.AttrDebounce != 100*time.Millisecond {
		t.Fatalf("attr_debounce: got %v", cfg.Capture.AttrDebounce)
	}
	if cfg.Capture.AttrCap != 25 {
		t.Fatalf("attr_cap: got %d", cfg.Capture.AttrCap)
	}
	if cfg.Listen != "127.0.0.1:9999" {
		t.Fatalf("listen: got %q", cfg.Listen)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].Type != "webhook" {
		t.Fatalf("sinks: %+v", cfg.Sinks)
	}

	// Unset fields pick up defaults.
	if cfg.Capture.HoverDelay != 500*time.Millisecond {
		t.Fatalf("hover_delay default: got %v", cfg.Capture.HoverDelay)
	}
	if cfg.Capture.TypingCap != 200 {
		t.Fatalf("typing_cap default: got %d", cfg.Capture.TypingCap)
	}
}

func TestApplyDefaultsOnEmptyConfig(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()
	if cfg.Capture.AttrDebounce != 200*time.Millisecond || cfg.Capture.AttrCap != 50 {
		t.Fatalf("attribute defaults: %+v", cfg.Capture)
	}
	if cfg.Store.Path == "" || cfg.Listen == "" {
		t.Fatalf("path defaults: %+v", cfg)
	}
	if cfg.Browser.Headless {
		t.Fatal("recording defaults to a visible browser")
	}
}
