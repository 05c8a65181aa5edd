package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// API contains the remote control API connection settings.
type API struct {
	BaseURL        string `toml:"base_url" json:"base_url" yaml:"base_url"`
	UIFallbackURL  string `toml:"ui_fallback_url" json:"ui_fallback_url" yaml:"ui_fallback_url"`
	RequestTimeout int    `toml:"request_timeout" json:"request_timeout" yaml:"request_timeout"`
	UploadTimeout  int    `toml:"upload_timeout" json:"upload_timeout" yaml:"upload_timeout"`
}

// Session contains settings for one upload/convert/generate/run cycle.
type Session struct {
	MaxUploadMiB int  `toml:"max_upload_mib" json:"max_upload_mib" yaml:"max_upload_mib"`
	OpenBrowser  bool `toml:"open_browser" json:"open_browser" yaml:"open_browser"`
}

// Monitor contains the periodic task intervals, in seconds.
type Monitor struct {
	StatusPollInterval  int `toml:"status_poll_interval" json:"status_poll_interval" yaml:"status_poll_interval"`
	HealthCheckInterval int `toml:"health_check_interval" json:"health_check_interval" yaml:"health_check_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" json:"format" yaml:"format"`
	Level  string `toml:"level" json:"level" yaml:"level"`
	Dir    string `toml:"dir" json:"dir" yaml:"dir"`
}

// Config encapsulates all configuration values for loadctl.
//
// Configuration sections by subsystem:
//   - API: backend base URL, Locust UI fallback and request timeouts
//   - Session: upload limits and browser launching
//   - Monitor: status polling and health check intervals
//   - Logging: log format, level, and optional file directory
type Config struct {
	API     API     `toml:"api" json:"api" yaml:"api"`
	Session Session `toml:"session" json:"session" yaml:"session"`
	Monitor Monitor `toml:"monitor" json:"monitor" yaml:"monitor"`
	Logging Logging `toml:"logging" json:"logging" yaml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loadctl.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// RequestTimeout returns the per-request timeout for JSON calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.API.RequestTimeout) * time.Second
}

// UploadTimeout returns the timeout for multipart uploads.
func (c *Config) UploadTimeout() time.Duration {
	return time.Duration(c.API.UploadTimeout) * time.Second
}

// MaxUploadBytes returns the upload size ceiling in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Session.MaxUploadMiB) * 1024 * 1024
}

// StatusPollInterval returns the run status polling period.
func (c *Config) StatusPollInterval() time.Duration {
	return time.Duration(c.Monitor.StatusPollInterval) * time.Second
}

// HealthCheckInterval returns the backend health probing period.
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.Monitor.HealthCheckInterval) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return data, nil
}
