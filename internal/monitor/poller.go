package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"loadctl/internal/api"
	"loadctl/internal/logging"
	"loadctl/internal/services"
)

// DefaultPollInterval is the status refresh cadence while a run is active.
const DefaultPollInterval = 2 * time.Second

// StatusSource fetches the current run status.
type StatusSource interface {
	Status(ctx context.Context) (api.RunStatus, error)
}

// PollerState is Idle or Polling.
type PollerState string

const (
	PollerIdle    PollerState = "idle"
	PollerPolling PollerState = "polling"
)

// EventKind classifies poller notifications.
type EventKind string

const (
	EventStarted EventKind = "started"
	EventStatus  EventKind = "status"
	EventCleared EventKind = "cleared"
	EventError   EventKind = "error"
	EventStopped EventKind = "stopped"
)

// PollerEvent is delivered to the OnEvent callback after state changes.
type PollerEvent struct {
	Kind   EventKind
	State  PollerState
	Status *api.RunStatus
	Err    error
	At     time.Time
}

// PollerOptions configures a StatusPoller.
type PollerOptions struct {
	Interval time.Duration
	Logger   *slog.Logger
	// OnEvent runs on the polling goroutine or the caller of Start/Stop. It
	// must not call Stop or Close.
	OnEvent func(PollerEvent)
}

// StatusPoller refreshes run status while a run is active.
type StatusPoller struct {
	source   StatusSource
	interval time.Duration
	logger   *slog.Logger
	onEvent  func(PollerEvent)

	mu      sync.Mutex
	state   PollerState
	latest  *api.RunStatus
	lastErr error
	cancel  context.CancelFunc
	epoch   uint64
	closed  bool
	wg      sync.WaitGroup
}

// NewStatusPoller returns an idle poller.
func NewStatusPoller(source StatusSource, opts PollerOptions) *StatusPoller {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &StatusPoller{
		source:   source,
		interval: interval,
		logger:   logging.NewComponentLogger(opts.Logger, "status-poller"),
		onEvent:  opts.OnEvent,
		state:    PollerIdle,
	}
}

// Start moves Idle to Polling, seeding the cache with the run response when
// provided. Starting an already polling poller only replaces the seed.
func (p *StatusPoller) Start(seed *api.RunStatus) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if seed != nil {
		copied := *seed
		p.latest = &copied
	}
	if p.state == PollerPolling {
		p.mu.Unlock()
		return
	}
	p.epoch++
	epoch := p.epoch
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.state = PollerPolling
	p.lastErr = nil
	p.wg.Add(1)
	event := p.eventLocked(EventStarted, nil)
	p.mu.Unlock()

	p.logger.Debug("status polling started", logging.Duration("interval", p.interval))
	p.emit(event)
	go p.run(ctx, epoch)
}

// Stop moves Polling to Idle and waits for the timer goroutine to exit. The
// cached status is cleared.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	wasPolling := p.state == PollerPolling
	p.haltLocked()
	p.latest = nil
	event := p.eventLocked(EventStopped, nil)
	p.mu.Unlock()

	p.wg.Wait()
	if wasPolling {
		p.logger.Debug("status polling stopped")
		p.emit(event)
	}
}

// Close stops polling permanently. Start becomes a no-op afterwards.
func (p *StatusPoller) Close() {
	p.mu.Lock()
	p.closed = true
	p.haltLocked()
	p.mu.Unlock()
	p.wg.Wait()
}

// Refresh fetches status once, outside the timer, and applies the result the
// same way a tick does.
func (p *StatusPoller) Refresh(ctx context.Context) (api.RunStatus, error) {
	p.mu.Lock()
	epoch := p.epoch
	p.mu.Unlock()

	status, err := p.source.Status(ctx)
	p.apply(epoch, status, err)
	return status, err
}

// State reports Idle or Polling.
func (p *StatusPoller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Latest returns a copy of the cached status.
func (p *StatusPoller) Latest() (api.RunStatus, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return api.RunStatus{}, false
	}
	return *p.latest, true
}

// LastError returns the most recent non-not-found polling failure, cleared by
// the next successful fetch.
func (p *StatusPoller) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

func (p *StatusPoller) run(ctx context.Context, epoch uint64) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := p.source.Status(ctx)
			if ctx.Err() != nil {
				return
			}
			p.apply(epoch, status, err)
		}
	}
}

// apply records a fetch result unless a Start or Stop happened since epoch
// was read.
func (p *StatusPoller) apply(epoch uint64, status api.RunStatus, err error) {
	p.mu.Lock()
	if p.epoch != epoch || p.closed {
		p.mu.Unlock()
		return
	}

	var event PollerEvent
	switch {
	case err == nil:
		p.latest = &status
		p.lastErr = nil
		event = p.eventLocked(EventStatus, nil)
	case errors.Is(err, services.ErrNotFound):
		p.latest = nil
		p.lastErr = nil
		p.haltLocked()
		event = p.eventLocked(EventCleared, nil)
	default:
		p.lastErr = err
		event = p.eventLocked(EventError, err)
	}
	p.mu.Unlock()

	switch event.Kind {
	case EventCleared:
		p.logger.Info("no active run reported; polling stopped")
	case EventError:
		p.logger.Warn("status poll failed", logging.Error(err))
	}
	p.emit(event)
}

// haltLocked cancels the timer without waiting for it. Callers holding no
// lock wait on wg separately.
func (p *StatusPoller) haltLocked() {
	p.epoch++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.state = PollerIdle
}

func (p *StatusPoller) eventLocked(kind EventKind, err error) PollerEvent {
	event := PollerEvent{Kind: kind, State: p.state, Err: err, At: time.Now()}
	if p.latest != nil {
		copied := *p.latest
		event.Status = &copied
	}
	return event
}

func (p *StatusPoller) emit(event PollerEvent) {
	if p.onEvent != nil {
		p.onEvent(event)
	}
}
