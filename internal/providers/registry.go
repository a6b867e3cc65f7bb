package providers

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"
)

// Registry holds the configured providers. It supports config-driven
// instantiation, hot reload, and thread-safe access.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Provider
	def      string
	logger   *slog.Logger
}

// RegistryConfig is the provider section of the application config, keyed by
// provider name.
type RegistryConfig struct {
	Providers map[string]BackendConfig
	Default   string
}

// BackendConfig configures one backend instance.
type BackendConfig struct {
	Type       string // "gemini" or "openai"
	APIKey     string // supports ${ENV_VAR} syntax
	Model      string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]Provider),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds or replaces a provider by name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = p
	if r.logger != nil {
		r.logger.Info("registered provider", "name", name, "type", p.Name())
	}
}

// SetDefault marks a registered provider as the default.
func (r *Registry) SetDefault(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.def = name
}

// Get returns a provider by name; the empty string returns the default.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name == "" {
		name = r.def
	}
	p, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("provider not found: %q", name)
	}
	return p, nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	return names
}

// Reload replaces the registry contents from config. Called at startup and
// on config-file change.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.backends = make(map[string]Provider, len(cfg.Providers))
	for name, bc := range cfg.Providers {
		p, err := buildBackend(bc)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("skipping provider", "name", name, "error", err)
			}
			continue
		}
		r.backends[name] = p
		if r.logger != nil {
			r.logger.Info("registered provider", "name", name, "type", bc.Type)
		}
	}
	r.def = cfg.Default
}

func buildBackend(bc BackendConfig) (Provider, error) {
	apiKey := ExpandEnvVars(bc.APIKey)
	switch bc.Type {
	case "gemini":
		return NewGeminiClient(GeminiConfig{
			APIKey:     apiKey,
			Model:      bc.Model,
			BaseURL:    bc.BaseURL,
			Timeout:    bc.Timeout,
			MaxRetries: bc.MaxRetries,
		}), nil
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:     apiKey,
			Model:      bc.Model,
			BaseURL:    bc.BaseURL,
			Timeout:    bc.Timeout,
			MaxRetries: bc.MaxRetries,
		}), nil
	case "mock":
		return NewMockProvider(""), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q", bc.Type)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

// ExpandEnvVars replaces ${ENV_VAR} references in config values with the
// environment's value.
func ExpandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
