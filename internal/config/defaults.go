package config

const (
	defaultConfigPath          = "~/.config/loadctl/config.toml"
	defaultBaseURL             = "http://localhost:8000"
	defaultUIFallbackURL       = "http://localhost:8089"
	defaultRequestTimeout      = 30
	defaultUploadTimeout       = 300
	defaultMaxUploadMiB        = 50
	defaultStatusPollInterval  = 2
	defaultHealthCheckInterval = 30
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"

	// EnvBaseURL overrides api.base_url when the config leaves it empty.
	EnvBaseURL = "LOADCTL_API_URL"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:        defaultBaseURL,
			UIFallbackURL:  defaultUIFallbackURL,
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
		},
		Session: Session{
			MaxUploadMiB: defaultMaxUploadMiB,
			OpenBrowser:  true,
		},
		Monitor: Monitor{
			StatusPollInterval:  defaultStatusPollInterval,
			HealthCheckInterval: defaultHealthCheckInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
