package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Defaults.Provider != "gemini" {
		t.Errorf("default provider = %q", cfg.Defaults.Provider)
	}
	p, ok := cfg.GetProvider("gemini")
	if !ok || p.APIKey != "${GEMINI_API_KEY}" {
		t.Errorf("gemini provider = %+v", p)
	}
	if cfg.Extraction.EmptyCellThreshold != 0.4 {
		t.Errorf("threshold = %v", cfg.Extraction.EmptyCellThreshold)
	}
	if len(cfg.Departments) == 0 {
		t.Error("expected seed departments")
	}
}

func TestEnabledProviders(t *testing.T) {
	cfg := DefaultConfig()
	enabled := cfg.EnabledProviders()
	if _, ok := enabled["gemini"]; !ok {
		t.Error("gemini should be enabled by default")
	}
	if _, ok := enabled["openai"]; ok {
		t.Error("openai should be disabled by default")
	}
}

func TestToRegistryConfig(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderCfg{
			"primary": {Type: "gemini", APIKey: "${K}", TimeoutSeconds: 30, MaxRetries: 2, Enabled: true},
			"off":     {Type: "openai", Enabled: false},
		},
		Defaults: DefaultsCfg{Provider: "primary"},
	}
	rc := cfg.ToRegistryConfig()
	if rc.Default != "primary" {
		t.Errorf("default = %q", rc.Default)
	}
	if len(rc.Providers) != 1 {
		t.Fatalf("providers = %v, disabled entries must be excluded", rc.Providers)
	}
	bc := rc.Providers["primary"]
	if bc.Timeout != 30*time.Second || bc.MaxRetries != 2 {
		t.Errorf("backend config = %+v", bc)
	}
	if bc.APIKey != "${K}" {
		t.Errorf("api key = %q, env expansion belongs to the registry", bc.APIKey)
	}
}

func TestManager_LoadsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9000
defaults:
  provider: testing
providers:
  testing:
    type: mock
    enabled: true
extraction:
  empty_cell_threshold: 0.55
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	cfg := cm.Get()
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Defaults.Provider != "testing" {
		t.Errorf("provider = %q", cfg.Defaults.Provider)
	}
	if cfg.Extraction.EmptyCellThreshold != 0.55 {
		t.Errorf("threshold = %v", cfg.Extraction.EmptyCellThreshold)
	}
	// Unset keys fall back to defaults.
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("host = %q", cfg.Server.Host)
	}
}

func TestManager_MissingFileUsesDefaults(t *testing.T) {
	cm, err := NewManager(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	if cm.Get().Server.Port != 8370 {
		t.Errorf("port = %d, want default", cm.Get().Server.Port)
	}
}

func TestManager_IndependentInstances(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.yaml")
	b := filepath.Join(dir, "b.yaml")
	os.WriteFile(a, []byte("server:\n  port: 1111\n"), 0o644)
	os.WriteFile(b, []byte("server:\n  port: 2222\n"), 0o644)

	ma, err := NewManager(a)
	if err != nil {
		t.Fatal(err)
	}
	mb, err := NewManager(b)
	if err != nil {
		t.Fatal(err)
	}
	if ma.Get().Server.Port != 1111 || mb.Get().Server.Port != 2222 {
		t.Errorf("managers share state: %d / %d", ma.Get().Server.Port, mb.Get().Server.Port)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}
	cm, err := NewManager(path)
	if err != nil {
		t.Fatalf("written default does not load: %v", err)
	}
	if cm.Get().Defaults.Provider != "gemini" {
		t.Errorf("provider = %q", cm.Get().Defaults.Provider)
	}
}
