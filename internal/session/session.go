package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"loadctl/internal/api"
	"loadctl/internal/logging"
	"loadctl/internal/monitor"
	"loadctl/internal/services"
	"loadctl/internal/validate"
)

const component = "session"

// DefaultMaxUploadBytes caps captures accepted by Upload.
const DefaultMaxUploadBytes int64 = 50 << 20

// Options configures a Session. Zero values select defaults; a nil Opener
// disables opening run dashboards.
type Options struct {
	UIFallbackURL  string
	MaxUploadBytes int64
	PollInterval   time.Duration
	Opener         URLOpener
	Poller         RunPoller
	Logger         *slog.Logger
	Now            func() time.Time
}

// Session holds the state of one upload/convert/generate/run cycle and
// sequences the remote operations against it. All methods are safe for
// concurrent use; network calls happen outside the state lock.
type Session struct {
	id          string
	backend     Backend
	poller      RunPoller
	opener      URLOpener
	fallbackURL string
	maxUpload   int64
	now         func() time.Time
	logger      *slog.Logger

	mu             sync.Mutex
	generation     uint64
	file           *SelectedFile
	uploadResponse json.RawMessage
	flowData       json.RawMessage
	generated      string
	uiURL          string
	catalog        []api.Script
	steps          map[Step]StepStatus
	busy           map[Step]bool
}

// New builds a Session around backend. When opts.Poller is nil a
// monitor.StatusPoller polling backend is created.
func New(backend Backend, opts Options) *Session {
	s := &Session{
		id:          uuid.NewString(),
		backend:     backend,
		poller:      opts.Poller,
		opener:      opts.Opener,
		fallbackURL: opts.UIFallbackURL,
		maxUpload:   opts.MaxUploadBytes,
		now:         opts.Now,
		steps:       make(map[Step]StepStatus),
		busy:        make(map[Step]bool),
	}
	s.logger = logging.NewComponentLogger(opts.Logger, component)
	if s.maxUpload <= 0 {
		s.maxUpload = DefaultMaxUploadBytes
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.poller == nil {
		s.poller = monitor.NewStatusPoller(backend, monitor.PollerOptions{Interval: opts.PollInterval, Logger: opts.Logger})
	}
	return s
}

// ID identifies the session in logs.
func (s *Session) ID() string {
	return s.id
}

// Poller exposes the run poller owned by the session.
func (s *Session) Poller() RunPoller {
	return s.poller
}

// Close stops run polling. The session must not be used afterwards.
func (s *Session) Close() {
	s.poller.Close()
}

// Select replaces the selected file, which restarts the cycle.
func (s *Session) Select(file SelectedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCycleLocked()
	copied := file
	s.file = &copied
	s.logger.Debug("file selected",
		logging.String(logging.FieldSessionID, s.id),
		logging.String("file", file.Name),
		logging.Int64("size", file.Size),
		logging.String("mime_type", file.MIMEType),
	)
}

// Clear discards the selected file and every value derived from it. Upload,
// convert and generate results still in flight are dropped when they
// complete. A run the backend already started is still tracked. Calling Clear
// repeatedly has the same effect as calling it once.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetCycleLocked()
}

func (s *Session) resetCycleLocked() {
	s.generation++
	s.file = nil
	s.uploadResponse = nil
	s.flowData = nil
	s.generated = ""
	s.uiURL = ""
	for _, step := range cycleSteps {
		delete(s.steps, step)
		delete(s.busy, step)
	}
}

// Upload sends the selected file to the backend.
func (s *Session) Upload(ctx context.Context) error {
	ctx, logger := s.operation(ctx, StepUpload)

	var file SelectedFile
	gen, err := s.begin(StepUpload, func() error {
		if s.file == nil {
			return s.precondition(StepUpload, "Please select a file first")
		}
		switch {
		case s.file.Size == 0:
			return s.invalid(StepUpload, "Selected file is empty")
		case s.file.Size > s.maxUpload:
			return s.invalid(StepUpload, fmt.Sprintf("File size too large (max %dMB)", s.maxUpload>>20))
		case s.file.Name == "" || s.file.Size < 0 || s.file.Open == nil:
			return s.invalid(StepUpload, corruptedFileMessage)
		}
		file = *s.file
		return nil
	})
	if err != nil {
		return err
	}

	content, err := file.Open()
	if err != nil {
		logger.Warn("open selected file failed", logging.Error(err))
		return s.complete(StepUpload, gen, s.invalid(StepUpload, corruptedFileMessage), nil)
	}
	defer content.Close()

	result, err := s.backend.Upload(ctx, file.Name, file.MIMEType, content)
	if err != nil {
		logger.Warn("upload failed", logging.Error(err))
		return s.complete(StepUpload, gen, s.remote(StepUpload, "Upload failed", err), nil)
	}
	logger.Info("upload succeeded", logging.String("file", file.Name), logging.Int64("size", file.Size))
	return s.complete(StepUpload, gen, nil, func() {
		s.uploadResponse = result.Raw
		s.steps[StepUpload] = success("Upload successful! Response: " + rawText(result.Raw))
	})
}

const corruptedFileMessage = "File appears to be corrupted, please select again"

// Convert asks the backend to convert the selected capture and stores the
// returned flow data.
func (s *Session) Convert(ctx context.Context) error {
	ctx, logger := s.operation(ctx, StepConvert)

	var filename string
	gen, err := s.begin(StepConvert, func() error {
		if s.file == nil {
			return s.precondition(StepConvert, "Please upload a file first")
		}
		filename = s.file.Name
		return nil
	})
	if err != nil {
		return err
	}

	result, err := s.backend.Convert(ctx, api.ConvertRequest{Filename: filename, Timestamp: s.now()})
	if err != nil {
		logger.Warn("convert failed", logging.Error(err))
		return s.complete(StepConvert, gen, s.remote(StepConvert, "Convert failed", err), nil)
	}
	logger.Info("convert succeeded", logging.Int("flow_bytes", len(result.FlowData)))
	return s.complete(StepConvert, gen, nil, func() {
		s.flowData = result.FlowData
		s.steps[StepConvert] = success("Convert successful! Flow data ready for generation")
	})
}

// Generate produces a script from the stored flow data. It never reaches the
// network without flow data or with an invalid descriptor. A failure keeps
// the flow data so the call can be retried.
func (s *Session) Generate(ctx context.Context, desc validate.ScriptDescriptor) error {
	ctx, logger := s.operation(ctx, StepGenerate)

	var flow json.RawMessage
	gen, err := s.begin(StepGenerate, func() error {
		if s.flowData == nil {
			return s.precondition(StepGenerate, "Please convert the file first to get flow data")
		}
		if err := validate.Check(desc); err != nil {
			return err
		}
		flow = s.flowData
		s.generated = ""
		return nil
	})
	if err != nil {
		return err
	}

	host := validate.NormalizeHost(desc.Host)
	result, err := s.backend.Generate(ctx, api.GenerateRequest{
		FlowData:        flow,
		Filename:        desc.Filename,
		Host:            host,
		ReplaceExisting: true,
		Timestamp:       s.now(),
	})
	if err != nil {
		logger.Warn("generate failed", logging.Error(err))
		return s.complete(StepGenerate, gen, s.remote(StepGenerate, "Generate failed", err), nil)
	}

	name := result.Filename
	if name == "" {
		name = desc.Filename
	}
	logger.Info("script generated", logging.String("script", name), logging.String("host", host))
	return s.complete(StepGenerate, gen, nil, func() {
		s.generated = name
		s.steps[StepGenerate] = success("Generate successful! Script created: " + name)
	})
}

// Run starts the generated script, opens its dashboard and begins polling.
func (s *Session) Run(ctx context.Context) error {
	ctx, logger := s.operation(ctx, StepRun)

	var script string
	gen, err := s.begin(StepRun, func() error {
		if s.generated == "" {
			return s.precondition(StepRun, "Please generate a script first")
		}
		script = s.generated
		return nil
	})
	if err != nil {
		return err
	}

	status, err := s.backend.RunByQuery(ctx, script)
	if err != nil {
		logger.Warn("run failed", logging.String("script", script), logging.Error(err))
		return s.complete(StepRun, gen, s.remote(StepRun, "Failed to run script", err), nil)
	}

	uiURL := status.UIURL
	if uiURL == "" {
		uiURL = s.fallbackURL
	}
	_ = s.complete(StepRun, gen, nil, func() {
		if gen == s.generation {
			s.uiURL = uiURL
		}
		s.steps[StepRun] = success(runMessage(script, uiURL))
	})

	logger.Info("script running", logging.String("script", script), logging.String("ui_url", uiURL), logging.String("process_id", status.ProcessID))
	s.startRun(logger, script, uiURL, status)
	return nil
}

// RunScript starts a script picked from the catalog. Unlike Run it only opens
// a dashboard the backend reported.
func (s *Session) RunScript(ctx context.Context, script string) error {
	ctx, logger := s.operation(ctx, StepRun)
	gen, err := s.begin(StepRun, func() error {
		if script == "" {
			return s.precondition(StepRun, "Please select a script to run")
		}
		return nil
	})
	if err != nil {
		return err
	}

	status, err := s.backend.RunByBody(ctx, script)
	if err != nil {
		logger.Warn("start test failed", logging.String("script", script), logging.Error(err))
		return s.complete(StepRun, gen, s.remote(StepRun, "Failed to start test", err), nil)
	}
	_ = s.complete(StepRun, gen, nil, func() {
		if gen == s.generation {
			s.uiURL = status.UIURL
		}
		s.steps[StepRun] = success(runMessage(script, status.UIURL))
	})

	logger.Info("test started", logging.String("script", script), logging.String("process_id", status.ProcessID))
	s.startRun(logger, script, status.UIURL, status)
	return nil
}

func runMessage(script, uiURL string) string {
	if uiURL == "" {
		return "Script running! " + script
	}
	return fmt.Sprintf("Script running! %s (UI: %s)", script, uiURL)
}

func (s *Session) startRun(logger *slog.Logger, script, uiURL string, status api.RunStatus) {
	if uiURL != "" && s.opener != nil {
		if err := s.opener.Open(uiURL); err != nil {
			logger.Warn("open dashboard failed", logging.String("ui_url", uiURL), logging.Error(err))
		}
	}
	seed := status
	seed.Running = true
	if seed.Script == "" {
		seed.Script = script
	}
	if seed.UIURL == "" {
		seed.UIURL = uiURL
	}
	s.poller.Start(&seed)
}

// Stop ends the active run and returns the poller to idle.
func (s *Session) Stop(ctx context.Context) error {
	ctx, logger := s.operation(ctx, StepStop)

	var processID string
	gen, err := s.begin(StepStop, func() error {
		if latest, ok := s.poller.Latest(); ok {
			processID = latest.ProcessID
		}
		if processID == "" {
			return s.precondition(StepStop, "No active test to stop")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.backend.Stop(ctx, processID); err != nil {
		logger.Warn("stop failed", logging.String("process_id", processID), logging.Error(err))
		return s.complete(StepStop, gen, s.remote(StepStop, "Failed to stop test", err), nil)
	}
	s.poller.Stop()
	logger.Info("test stopped", logging.String("process_id", processID))
	return s.complete(StepStop, gen, nil, func() {
		s.steps[StepStop] = success("Test stopped")
	})
}

// StopAll ends every run on the backend.
func (s *Session) StopAll(ctx context.Context) error {
	ctx, logger := s.operation(ctx, StepStopAll)
	gen, err := s.begin(StepStopAll, nil)
	if err != nil {
		return err
	}

	if err := s.backend.StopAll(ctx); err != nil {
		logger.Warn("stop all failed", logging.Error(err))
		return s.complete(StepStopAll, gen, s.remote(StepStopAll, "Failed to stop all tests", err), nil)
	}
	s.poller.Stop()
	logger.Info("all tests stopped")
	return s.complete(StepStopAll, gen, nil, func() {
		s.steps[StepStopAll] = success("All tests stopped")
	})
}

// Scripts refreshes the catalog of generated scripts.
func (s *Session) Scripts(ctx context.Context) ([]api.Script, error) {
	ctx, logger := s.operation(ctx, StepScripts)
	gen, err := s.begin(StepScripts, nil)
	if err != nil {
		return nil, err
	}

	scripts, err := s.backend.Scripts(ctx)
	if err != nil {
		logger.Warn("fetch scripts failed", logging.Error(err))
		return nil, s.complete(StepScripts, gen, s.remote(StepScripts, "Failed to fetch scripts", err), nil)
	}
	logger.Debug("scripts fetched", logging.Int("count", len(scripts)))
	err = s.complete(StepScripts, gen, nil, func() {
		s.catalog = slices.Clone(scripts)
		s.steps[StepScripts] = success(fmt.Sprintf("Loaded %d scripts", len(scripts)))
	})
	return scripts, err
}

// RefreshStatus fetches run status once. active is false when the backend
// reports no run.
func (s *Session) RefreshStatus(ctx context.Context) (status api.RunStatus, active bool, err error) {
	ctx, _ = s.operation(ctx, "status")
	status, err = s.poller.Refresh(ctx)
	if errors.Is(err, services.ErrNotFound) {
		return api.RunStatus{}, false, nil
	}
	if err != nil {
		return api.RunStatus{}, false, err
	}
	return status, true, nil
}

// Actions reports which operations are reachable given the descriptor the
// user is currently editing.
func (s *Session) Actions(draft validate.ScriptDescriptor) Actions {
	latest, hasRun := s.poller.Latest()

	s.mu.Lock()
	defer s.mu.Unlock()
	return Actions{
		Upload:   s.file != nil && !s.busy[StepUpload],
		Convert:  s.file != nil && !s.busy[StepConvert],
		Generate: s.flowData != nil && validate.Check(draft) == nil && !s.busy[StepGenerate],
		Run:      s.generated != "" && !s.busy[StepRun],
		Stop:     hasRun && latest.ProcessID != "" && !s.busy[StepStop],
		StopAll:  !s.busy[StepStopAll],
	}
}

// Snapshot copies the session state for rendering.
func (s *Session) Snapshot() Snapshot {
	latest, hasRun := s.poller.Latest()
	polling := s.poller.State() == monitor.PollerPolling
	pollErr := s.poller.LastError()

	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		ID:              s.id,
		UploadResponse:  s.uploadResponse,
		FlowData:        s.flowData,
		HasFlowData:     s.flowData != nil,
		GeneratedScript: s.generated,
		UIURL:           s.uiURL,
		Steps:           make(map[Step]StepStatus, len(cycleSteps)+3),
		Busy:            make(map[Step]bool),
		Polling:         polling,
		Catalog:         slices.Clone(s.catalog),
	}
	if s.file != nil {
		snap.File = &FileInfo{Name: s.file.Name, Size: s.file.Size, MIMEType: s.file.MIMEType}
	}
	for _, step := range []Step{StepUpload, StepConvert, StepGenerate, StepRun, StepStop, StepStopAll, StepScripts} {
		status, ok := s.steps[step]
		if !ok {
			status = StepStatus{State: StateIdle}
		}
		snap.Steps[step] = status
		if s.busy[step] {
			snap.Busy[step] = true
		}
	}
	if hasRun {
		snap.Run = &latest
	}
	if pollErr != nil {
		snap.PollError = "Failed to check test status: " + services.Message(pollErr)
	}
	return snap
}

// Status returns the displayed outcome of step.
func (s *Session) Status(step Step) StepStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status, ok := s.steps[step]; ok {
		return status
	}
	return StepStatus{State: StateIdle}
}

// FlowData returns the stored flow data, nil when Convert has not succeeded.
func (s *Session) FlowData() json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowData
}

// GeneratedScript returns the script produced by the last Generate.
func (s *Session) GeneratedScript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated
}

func (s *Session) operation(ctx context.Context, step Step) (context.Context, *slog.Logger) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = services.WithSessionID(ctx, s.id)
	ctx = services.WithOperation(ctx, string(step))
	return ctx, logging.WithContext(ctx, s.logger)
}

// begin claims the busy flag for step. check runs under the state lock and
// may capture inputs; a non-nil result aborts without touching the network.
func (s *Session) begin(step Step, check func() error) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy[step] {
		return 0, services.Wrap(services.ErrBusy, component, string(step), fmt.Sprintf("%s already in progress", step), nil)
	}
	if check != nil {
		if err := check(); err != nil {
			s.steps[step] = StepStatus{State: StateError, Message: services.Message(err)}
			return 0, err
		}
	}
	s.busy[step] = true
	s.steps[step] = StepStatus{State: StateIdle}
	return s.generation, nil
}

// complete releases step and records its outcome. Derived steps whose file
// was cleared or reselected after gen are dropped and report ErrSuperseded.
func (s *Session) complete(step Step, gen uint64, failure error, apply func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Contains(derivedSteps, step) && gen != s.generation {
		s.logger.Debug("dropping result of cleared session",
			logging.String(logging.FieldSessionID, s.id),
			logging.String(logging.FieldOperation, string(step)),
		)
		return services.Wrap(services.ErrSuperseded, component, string(step), "Session was cleared while the request was in flight", failure)
	}
	delete(s.busy, step)
	if failure != nil {
		s.steps[step] = StepStatus{State: StateError, Message: services.Message(failure)}
		return failure
	}
	if apply != nil {
		apply()
	}
	return nil
}

func (s *Session) precondition(step Step, message string) error {
	return services.Wrap(services.ErrPrecondition, component, string(step), message, nil)
}

func (s *Session) invalid(step Step, message string) error {
	return services.Wrap(services.ErrValidation, component, string(step), message, nil)
}

// remote prefixes the backend message and keeps the original classification.
func (s *Session) remote(step Step, prefix string, err error) error {
	return services.Wrap(services.Marker(err), component, string(step), prefix+": "+services.Message(err), err)
}

func success(message string) StepStatus {
	return StepStatus{State: StateSuccess, Message: message}
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
