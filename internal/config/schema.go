package config

import (
	"time"

	"github.com/carefile/carefile/internal/providers"
)

// Config is the application configuration.
// Stored at: ~/.carefile/config.yaml
type Config struct {
	Server      ServerCfg              `mapstructure:"server" yaml:"server"`
	Providers   map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Defaults    DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
	Extraction  ExtractionCfg          `mapstructure:"extraction" yaml:"extraction"`
	Uploads     UploadsCfg             `mapstructure:"uploads" yaml:"uploads"`
	Departments []string               `mapstructure:"departments" yaml:"departments"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// ProviderCfg configures one extraction backend.
type ProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`       // "gemini", "openai", "mock"
	Model          string `mapstructure:"model" yaml:"model"`     // Model name (empty uses the backend default)
	APIKey         string `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries"`
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg selects the default provider.
type DefaultsCfg struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
}

// ExtractionCfg tunes the parsing pipeline.
type ExtractionCfg struct {
	// EmptyCellThreshold is the empty-cell ratio above which a table is
	// re-extracted. Zero uses the built-in default.
	EmptyCellThreshold float64 `mapstructure:"empty_cell_threshold" yaml:"empty_cell_threshold"`
	MaxOutputTokens    int     `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	Temperature        float64 `mapstructure:"temperature" yaml:"temperature"`
}

// UploadsCfg bounds what documents are accepted.
type UploadsCfg struct {
	MaxSizeMB   int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxPDFPages int `mapstructure:"max_pdf_pages" yaml:"max_pdf_pages"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8370,
		},
		Providers: map[string]ProviderCfg{
			"gemini": {
				Type:           "gemini",
				APIKey:         "${GEMINI_API_KEY}",
				TimeoutSeconds: 120,
				MaxRetries:     3,
				Enabled:        true,
			},
			"openai": {
				Type:           "openai",
				APIKey:         "${OPENAI_API_KEY}",
				TimeoutSeconds: 120,
				MaxRetries:     3,
				Enabled:        false,
			},
		},
		Defaults: DefaultsCfg{
			Provider: "gemini",
		},
		Extraction: ExtractionCfg{
			EmptyCellThreshold: 0.4,
			MaxOutputTokens:    8192,
			Temperature:        0.1,
		},
		Uploads: UploadsCfg{
			MaxSizeMB:   25,
			MaxPDFPages: 20,
		},
		Departments: []string{
			"Casualty",
			"ICU",
			"Laboratory",
			"Pharmacy",
			"Radiology",
			"General Ward",
			"Operation Theatre",
			"Blood Bank",
		},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// ToRegistryConfig converts the enabled providers into the registry's
// format. API keys stay unexpanded; the registry resolves ${ENV_VAR}
// references when it builds the backend.
func (c *Config) ToRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		Providers: make(map[string]providers.BackendConfig),
		Default:   c.Defaults.Provider,
	}
	for name, p := range c.EnabledProviders() {
		cfg.Providers[name] = providers.BackendConfig{
			Type:       p.Type,
			APIKey:     p.APIKey,
			Model:      p.Model,
			BaseURL:    p.BaseURL,
			Timeout:    time.Duration(p.TimeoutSeconds) * time.Second,
			MaxRetries: p.MaxRetries,
		}
	}
	return cfg
}
