package config

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Extraction) == 0 {
		t.Error("expected default extraction providers")
	}
	openai, ok := cfg.GetExtractionProvider("openai")
	if !ok {
		t.Fatal("expected openai provider in defaults")
	}
	if openai.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected openai API key placeholder")
	}
	if cfg.Defaults.ExtractionProvider != "openai" {
		t.Errorf("default provider = %s", cfg.Defaults.ExtractionProvider)
	}
	if cfg.Defaults.ExtractTimeoutSeconds <= 0 {
		t.Error("expected positive extract timeout")
	}
}

func TestEnabledExtractionProviders(t *testing.T) {
	cfg := &Config{
		Extraction: map[string]ExtractionProviderCfg{
			"openai": {Type: "openai", Enabled: true},
			"gemini": {Type: "gemini", Enabled: false},
		},
	}

	enabled := cfg.EnabledExtractionProviders()
	if len(enabled) != 1 {
		t.Fatalf("enabled = %v", enabled)
	}
	if _, ok := enabled["openai"]; !ok {
		t.Error("expected openai enabled")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestToExtractionRegistryConfig(t *testing.T) {
	os.Setenv("TEST_OPENAI_KEY", "sk-resolved")
	defer os.Unsetenv("TEST_OPENAI_KEY")

	cfg := &Config{
		Extraction: map[string]ExtractionProviderCfg{
			"openai": {Type: "openai", Model: "gpt-4o", APIKey: "${TEST_OPENAI_KEY}", Enabled: true},
		},
		Defaults: DefaultsCfg{ExtractionProvider: "openai"},
	}

	reg := cfg.ToExtractionRegistryConfig()
	if reg.Default != "openai" {
		t.Errorf("default = %s", reg.Default)
	}
	if reg.Providers["openai"].APIKey != "sk-resolved" {
		t.Errorf("api key not resolved: %q", reg.Providers["openai"].APIKey)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
defaults:
  extraction_provider: "gemini"
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Defaults.ExtractionProvider != "gemini" {
			t.Errorf("expected gemini, got %s", cfg.Defaults.ExtractionProvider)
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("defaults:\n  extract_timeout_seconds: 60\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("defaults:\n  extraction_provider: openai\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Defaults.ExtractionProvider
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("defaults:\n  extraction_provider: openai\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Defaults.ExtractionProvider != "openai" {
		t.Errorf("initial value mismatch: %s", cfg.Defaults.ExtractionProvider)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Defaults.ExtractionProvider)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("defaults:\n  extraction_provider: gemini\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}

	newCfg := mgr.Get()
	if newCfg.Defaults.ExtractionProvider != "gemini" {
		t.Errorf("config not updated: got %s", newCfg.Defaults.ExtractionProvider)
	}

	if v := lastValue.Load(); v != "gemini" {
		t.Errorf("callback received wrong value: %v", v)
	}
}

func TestWriteDefault(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("write default: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	content := string(data)
	for _, want := range []string{"extraction_providers", "${OPENAI_API_KEY}", "galley-defra"} {
		if !strings.Contains(content, want) {
			t.Errorf("default config missing %q:\n%s", want, content)
		}
	}
}
