package config

// Config holds galley configuration.
// Stored at: {storage_root}/config.yaml
type Config struct {
	Extraction map[string]ExtractionProviderCfg `mapstructure:"extraction_providers" yaml:"extraction_providers"`
	Defaults   DefaultsCfg                      `mapstructure:"defaults" yaml:"defaults"`
	Defra      DefraConfig                      `mapstructure:"defra" yaml:"defra"`
	Server     ServerConfig                     `mapstructure:"server" yaml:"server"`
}

// ExtractionProviderCfg configures a page-extraction provider.
type ExtractionProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`       // "openai", "gemini"
	Model   string `mapstructure:"model" yaml:"model"`     // Model name
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default selections and workflow tuning.
type DefaultsCfg struct {
	// ExtractionProvider is the provider handling page extraction.
	ExtractionProvider string `mapstructure:"extraction_provider" yaml:"extraction_provider"`
	// ExtractTimeoutSeconds bounds a single extraction call.
	ExtractTimeoutSeconds int `mapstructure:"extract_timeout_seconds" yaml:"extract_timeout_seconds"`
}

// DefraConfig holds DefraDB container configuration.
type DefraConfig struct {
	// ContainerName is the Docker container name (default: galley-defra)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
}

// ServerConfig holds the HTTP API configuration.
type ServerConfig struct {
	// Port is the listen port (default: 8090)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Extraction: map[string]ExtractionProviderCfg{
			"openai": {
				Type:    "openai",
				Model:   "gpt-4o",
				APIKey:  "${OPENAI_API_KEY}",
				Enabled: true,
			},
			"gemini": {
				Type:    "gemini",
				Model:   "gemini-2.5-pro",
				APIKey:  "${GEMINI_API_KEY}",
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			ExtractionProvider:    "openai",
			ExtractTimeoutSeconds: 120,
		},
		Defra: DefraConfig{
			ContainerName: "galley-defra",
			Image:         "sourcenetwork/defradb:latest",
			Port:          "9181",
		},
		Server: ServerConfig{
			Port: "8090",
		},
	}
}

// GetExtractionProvider returns a provider config by name.
func (c *Config) GetExtractionProvider(name string) (ExtractionProviderCfg, bool) {
	cfg, ok := c.Extraction[name]
	return cfg, ok
}

// EnabledExtractionProviders returns all enabled extraction providers.
func (c *Config) EnabledExtractionProviders() map[string]ExtractionProviderCfg {
	result := make(map[string]ExtractionProviderCfg)
	for name, cfg := range c.Extraction {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
