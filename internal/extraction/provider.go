// Package extraction turns photographs of recipe pages into structured
// data using vision-capable LLM providers. Providers share a prompt and
// output schema; results are validated locally before they reach the
// scan workflow.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/galleykit/galley/internal/types"
)

// Provider extracts a single recipe page from an image.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai", "gemini").
	Name() string

	// Extract parses the photographed page into structured recipe data.
	Extract(ctx context.Context, image []byte, mimeType string) (types.ExtractedPage, error)
}

// ProviderConfig configures one extraction provider instance.
type ProviderConfig struct {
	Type    string // "openai", "gemini"
	Model   string // Model name (provider default if empty)
	APIKey  string // Resolved API key
	Enabled bool
}

// Registry holds extraction providers and tracks which one is the
// default. It supports config-driven instantiation and hot-reload, and
// provides thread-safe access. The registry itself satisfies the scan
// workflow's extractor contract by delegating to the default provider.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
	logger      *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds a provider by name. The first registered provider
// becomes the default.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
	if r.defaultName == "" {
		r.defaultName = name
	}
	if r.logger != nil {
		r.logger.Info("registered extraction provider", "name", name)
	}
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("extraction provider not found: %s", name)
	}
	return p, nil
}

// Default returns the current default provider.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultName == "" {
		return nil, fmt.Errorf("no extraction provider configured")
	}
	p, ok := r.providers[r.defaultName]
	if !ok {
		return nil, fmt.Errorf("default extraction provider not found: %s", r.defaultName)
	}
	return p, nil
}

// SetDefault changes which provider handles extraction.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("extraction provider not found: %s", name)
	}
	r.defaultName = name
	return nil
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// Extract delegates to the default provider, so the registry can be
// handed directly to the scan workflow.
func (r *Registry) Extract(ctx context.Context, image []byte, mimeType string) (types.ExtractedPage, error) {
	p, err := r.Default()
	if err != nil {
		return types.ExtractedPage{}, err
	}
	return p.Extract(ctx, image, mimeType)
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	// Default names the provider used for extraction. Falls back to the
	// first enabled provider when empty.
	Default string

	// Providers maps provider names to their config.
	Providers map[string]ProviderConfig
}

// NewRegistryFromConfig creates a registry with providers based on
// configuration. Only enabled providers with API keys are registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration. Providers no
// longer configured are unregistered; providers with changed settings
// are re-created.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.Providers {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		want[name] = true

		existing, hasExisting := r.providers[name]
		if hasExisting && !needsUpdate(existing, provCfg) {
			continue
		}
		p, err := createProvider(provCfg)
		if err != nil {
			if r.logger != nil {
				r.logger.Warn("failed to create extraction provider", "name", name, "type", provCfg.Type, "error", err)
			}
			continue
		}
		r.providers[name] = p
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated extraction provider", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered extraction provider", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name := range r.providers {
		if !want[name] {
			delete(r.providers, name)
			if r.logger != nil {
				r.logger.Info("unregistered extraction provider", "name", name)
			}
		}
	}

	switch {
	case cfg.Default != "" && want[cfg.Default]:
		r.defaultName = cfg.Default
	case r.defaultName == "" || !want[r.defaultName]:
		r.defaultName = ""
		for name := range r.providers {
			if r.defaultName == "" || name < r.defaultName {
				r.defaultName = name
			}
		}
	}
}

// createProvider creates a provider based on its configured type.
func createProvider(cfg ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "openai":
		return NewOpenAIExtractor(OpenAIConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		}), nil
	case "gemini":
		return NewGeminiExtractor(GeminiConfig{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
		})
	default:
		return nil, fmt.Errorf("unknown extraction provider type: %s", cfg.Type)
	}
}

// needsUpdate checks if a provider must be re-created for new config.
func needsUpdate(p Provider, cfg ProviderConfig) bool {
	switch c := p.(type) {
	case *OpenAIExtractor:
		return c.apiKey != cfg.APIKey || c.model != cfg.Model
	case *GeminiExtractor:
		return c.apiKey != cfg.APIKey || c.modelName != cfg.Model
	default:
		return true
	}
}
