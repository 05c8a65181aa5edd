package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"loadctl/internal/config"
)

func TestLoadDefaultConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv(config.EnvBaseURL, "")
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if want := filepath.Join(tempHome, ".config", "loadctl", "config.toml"); resolved != want {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, want)
	}
	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected base url: %q", cfg.API.BaseURL)
	}
	if cfg.API.UIFallbackURL != "http://localhost:8089" {
		t.Fatalf("unexpected ui fallback: %q", cfg.API.UIFallbackURL)
	}
	if cfg.MaxUploadBytes() != 50*1024*1024 {
		t.Fatalf("unexpected max upload bytes: %d", cfg.MaxUploadBytes())
	}
	if cfg.StatusPollInterval() != 2*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.StatusPollInterval())
	}
	if cfg.HealthCheckInterval() != 30*time.Second {
		t.Fatalf("unexpected health interval: %s", cfg.HealthCheckInterval())
	}
	if !cfg.Session.OpenBrowser {
		t.Fatal("expected browser launching enabled by default")
	}
}

func TestLoadCustomPath(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "loadctl.toml")

	type payload struct {
		API struct {
			BaseURL       string `toml:"base_url"`
			UIFallbackURL string `toml:"ui_fallback_url"`
		} `toml:"api"`
		Monitor struct {
			StatusPollInterval int `toml:"status_poll_interval"`
		} `toml:"monitor"`
		Logging struct {
			Format string `toml:"format"`
			Dir    string `toml:"dir"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.API.BaseURL = "https://loadtest.example.com/"
	custom.API.UIFallbackURL = ""
	custom.Monitor.StatusPollInterval = 5
	custom.Logging.Format = "JSON"
	custom.Logging.Dir = filepath.Join(tempDir, "logs")

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.API.BaseURL != "https://loadtest.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.API.BaseURL)
	}
	if cfg.API.UIFallbackURL != "" {
		t.Fatalf("expected empty ui fallback to stay empty, got %q", cfg.API.UIFallbackURL)
	}
	if cfg.StatusPollInterval() != 5*time.Second {
		t.Fatalf("unexpected poll interval: %s", cfg.StatusPollInterval())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected normalized json format, got %q", cfg.Logging.Format)
	}
}

func TestEnvOverridesBaseURL(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "http://10.0.0.5:9000/")
	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.API.BaseURL != "http://10.0.0.5:9000" {
		t.Fatalf("expected env base url, got %q", cfg.API.BaseURL)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	cases := map[string]string{
		"scheme":   "[api]\nbase_url = \"ftp://example.com\"\n",
		"host":     "[api]\nbase_url = \"http://\"\n",
		"level":    "[logging]\nlevel = \"verbose\"\n",
		"interval": "[monitor]\nstatus_poll_interval = 60\nhealth_check_interval = 30\n",
		"unknown":  "[api]\nbogus = 1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv(config.EnvBaseURL, "")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.API.BaseURL != config.Default().API.BaseURL {
		t.Fatalf("unexpected sample base url: %q", cfg.API.BaseURL)
	}

	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(encoded), "base_url") {
		t.Fatalf("expected encoded config to contain base_url, got %s", encoded)
	}
}
