package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"loadctl/internal/api"
	"loadctl/internal/logging"
)

// DefaultHealthInterval is the cadence of backend liveness probes.
const DefaultHealthInterval = 30 * time.Second

// HealthSource is the pair of endpoints probed on every check.
type HealthSource interface {
	Health(ctx context.Context) (api.HealthResult, error)
	Info(ctx context.Context) (api.ServerInfo, error)
}

// HealthState is the three-state probe result.
type HealthState string

const (
	HealthChecking  HealthState = "checking"
	HealthHealthy   HealthState = "healthy"
	HealthUnhealthy HealthState = "unhealthy"
)

// Label renders the state the way the status bar shows it.
func (s HealthState) Label() string {
	switch s {
	case HealthHealthy:
		return "Connected"
	case HealthUnhealthy:
		return "Disconnected"
	default:
		return "Checking..."
	}
}

// HealthReport is the outcome of the latest probe.
type HealthReport struct {
	State     HealthState `json:"state" yaml:"state"`
	Version   string      `json:"version,omitempty" yaml:"version,omitempty"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
	CheckedAt time.Time   `json:"checked_at,omitzero" yaml:"checked_at,omitempty"`
}

// HealthOptions configures a HealthMonitor.
type HealthOptions struct {
	Interval time.Duration
	Logger   *slog.Logger
	OnChange func(HealthReport)
}

// HealthMonitor periodically probes backend liveness.
type HealthMonitor struct {
	source   HealthSource
	interval time.Duration
	logger   *slog.Logger
	onChange func(HealthReport)

	mu      sync.Mutex
	report  HealthReport
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewHealthMonitor returns a monitor in the checking state.
func NewHealthMonitor(source HealthSource, opts HealthOptions) *HealthMonitor {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	return &HealthMonitor{
		source:   source,
		interval: interval,
		logger:   logging.NewComponentLogger(opts.Logger, "health-monitor"),
		onChange: opts.OnChange,
		report:   HealthReport{State: HealthChecking},
	}
}

// Start probes immediately and then every interval until Close or ctx ends.
func (m *HealthMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(1)
	m.mu.Unlock()

	go m.run(runCtx)
}

// Close stops the timer and waits for an in-flight probe to finish.
func (m *HealthMonitor) Close() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.running = false
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

// Check runs one probe synchronously and records its result.
func (m *HealthMonitor) Check(ctx context.Context) HealthReport {
	var info api.ServerInfo
	g, probeCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := m.source.Health(probeCtx)
		return err
	})
	g.Go(func() error {
		var err error
		info, err = m.source.Info(probeCtx)
		return err
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return m.Report()
	}

	m.mu.Lock()
	previous := m.report.State
	next := HealthReport{CheckedAt: time.Now(), Version: m.report.Version}
	if err != nil {
		next.State = HealthUnhealthy
		next.Error = err.Error()
	} else {
		next.State = HealthHealthy
		next.Version = info.Version
	}
	m.report = next
	m.mu.Unlock()

	if previous != next.State {
		if next.State == HealthHealthy {
			m.logger.Info("backend connected", logging.String("version", next.Version))
		} else {
			m.logger.Warn("backend unreachable", logging.String("error", next.Error))
		}
	}
	if m.onChange != nil {
		m.onChange(next)
	}
	return next
}

// Report returns the latest probe outcome.
func (m *HealthMonitor) Report() HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.report
}

// State returns the current health state.
func (m *HealthMonitor) State() HealthState {
	return m.Report().State
}

// Info returns the backend version from the last healthy probe.
func (m *HealthMonitor) Info() string {
	return m.Report().Version
}

func (m *HealthMonitor) run(ctx context.Context) {
	defer m.wg.Done()
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
