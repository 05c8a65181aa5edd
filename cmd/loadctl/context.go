package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"loadctl/internal/api"
	"loadctl/internal/browser"
	"loadctl/internal/config"
	"loadctl/internal/logging"
	"loadctl/internal/monitor"
	"loadctl/internal/session"
)

type commandContext struct {
	configFlag *string
	apiURLFlag *string
	outputFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, apiURLFlag, outputFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiURLFlag: apiURLFlag,
		outputFlag: outputFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.apiURLFlag != nil {
			if override := strings.TrimRight(strings.TrimSpace(*c.apiURLFlag), "/"); override != "" {
				cfg.API.BaseURL = override
				if err := cfg.Validate(); err != nil {
					c.configErr = fmt.Errorf("--api-url: %w", err)
					return
				}
			}
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.logger = logging.NewNop()
			return
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) outputFormat() (outputFormat, error) {
	if c.outputFlag == nil {
		return outputTable, nil
	}
	return parseOutputFormat(*c.outputFlag)
}

func (c *commandContext) newClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.New(api.Options{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.RequestTimeout(),
		UploadTimeout: cfg.UploadTimeout(),
		Logger:        c.loggerValue(),
	})
}

// newSession builds a session around client, creating one when nil. A nil
// poller lets the session build its own.
func (c *commandContext) newSession(client *api.Client, poller session.RunPoller) (*session.Session, *api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		if client, err = c.newClient(); err != nil {
			return nil, nil, err
		}
	}
	opts := session.Options{
		UIFallbackURL:  cfg.API.UIFallbackURL,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		PollInterval:   cfg.StatusPollInterval(),
		Poller:         poller,
		Logger:         c.loggerValue(),
	}
	if cfg.Session.OpenBrowser {
		opts.Opener = browser.New()
	}
	return session.New(client, opts), client, nil
}

func (c *commandContext) newPoller(client *api.Client, onEvent func(monitor.PollerEvent)) *monitor.StatusPoller {
	cfg, _ := c.ensureConfig()
	interval := monitor.DefaultPollInterval
	if cfg != nil {
		interval = cfg.StatusPollInterval()
	}
	return monitor.NewStatusPoller(client, monitor.PollerOptions{
		Interval: interval,
		Logger:   c.loggerValue(),
		OnEvent:  onEvent,
	})
}

func (c *commandContext) newHealthMonitor(client *api.Client, onChange func(monitor.HealthReport)) *monitor.HealthMonitor {
	cfg, _ := c.ensureConfig()
	interval := monitor.DefaultHealthInterval
	if cfg != nil {
		interval = cfg.HealthCheckInterval()
	}
	return monitor.NewHealthMonitor(client, monitor.HealthOptions{
		Interval: interval,
		Logger:   c.loggerValue(),
		OnChange: onChange,
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
