package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"loadctl/internal/api"
	"loadctl/internal/monitor"
)

// Step names one orchestrator operation.
type Step string

const (
	StepUpload   Step = "upload"
	StepConvert  Step = "convert"
	StepGenerate Step = "generate"
	StepRun      Step = "run"
	StepStop     Step = "stop"
	StepStopAll  Step = "stop-all"
	StepScripts  Step = "scripts"
)

// cycleSteps are reset by Select and Clear.
var cycleSteps = []Step{StepUpload, StepConvert, StepGenerate, StepRun}

// derivedSteps produce values owned by the selected file. Their results are
// dropped once the file is cleared or replaced.
var derivedSteps = []Step{StepUpload, StepConvert, StepGenerate}

// State is the tri-state outcome of a step.
type State string

const (
	StateIdle    State = "idle"
	StateSuccess State = "success"
	StateError   State = "error"
)

// StepStatus is the displayed outcome of the last attempt of a step.
type StepStatus struct {
	State   State  `json:"state" yaml:"state"`
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// SelectedFile is the capture chosen for the current cycle.
type SelectedFile struct {
	Name     string
	Size     int64
	MIMEType string
	Open     func() (io.ReadCloser, error)
}

// FileFromPath describes a file on disk as a SelectedFile.
func FileFromPath(path string) (SelectedFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SelectedFile{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return SelectedFile{}, fmt.Errorf("%s is a directory", path)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return SelectedFile{
		Name:     filepath.Base(path),
		Size:     info.Size(),
		MIMEType: mimeType,
		Open:     func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FileInfo is the rendered view of the selected file.
type FileInfo struct {
	Name     string `json:"name" yaml:"name"`
	Size     int64  `json:"size" yaml:"size"`
	MIMEType string `json:"mime_type,omitempty" yaml:"mime_type,omitempty"`
}

// Backend is the remote control API the orchestrator drives.
type Backend interface {
	Upload(ctx context.Context, name, mimeType string, content io.Reader) (api.UploadResult, error)
	Convert(ctx context.Context, req api.ConvertRequest) (api.ConvertResult, error)
	Generate(ctx context.Context, req api.GenerateRequest) (api.GenerateResult, error)
	Scripts(ctx context.Context) ([]api.Script, error)
	RunByQuery(ctx context.Context, script string) (api.RunStatus, error)
	RunByBody(ctx context.Context, script string) (api.RunStatus, error)
	Stop(ctx context.Context, processID string) error
	StopAll(ctx context.Context) error
	Status(ctx context.Context) (api.RunStatus, error)
}

// RunPoller tracks the active run. *monitor.StatusPoller satisfies it.
type RunPoller interface {
	Start(seed *api.RunStatus)
	Stop()
	Close()
	Refresh(ctx context.Context) (api.RunStatus, error)
	Latest() (api.RunStatus, bool)
	State() monitor.PollerState
	LastError() error
}

// URLOpener opens a run dashboard.
type URLOpener interface {
	Open(url string) error
}

// Actions reports which operations are currently reachable.
type Actions struct {
	Upload   bool `json:"upload" yaml:"upload"`
	Convert  bool `json:"convert" yaml:"convert"`
	Generate bool `json:"generate" yaml:"generate"`
	Run      bool `json:"run" yaml:"run"`
	Stop     bool `json:"stop" yaml:"stop"`
	StopAll  bool `json:"stop_all" yaml:"stop_all"`
}

// Snapshot is a point-in-time copy of the session for rendering.
type Snapshot struct {
	ID              string              `json:"id" yaml:"id"`
	File            *FileInfo           `json:"file,omitempty" yaml:"file,omitempty"`
	UploadResponse  json.RawMessage     `json:"upload_response,omitempty" yaml:"-"`
	FlowData        json.RawMessage     `json:"flow_data,omitempty" yaml:"-"`
	HasFlowData     bool                `json:"has_flow_data" yaml:"has_flow_data"`
	GeneratedScript string              `json:"generated_script,omitempty" yaml:"generated_script,omitempty"`
	UIURL           string              `json:"ui_url,omitempty" yaml:"ui_url,omitempty"`
	Steps           map[Step]StepStatus `json:"steps" yaml:"steps"`
	Busy            map[Step]bool       `json:"busy,omitempty" yaml:"busy,omitempty"`
	Run             *api.RunStatus      `json:"run,omitempty" yaml:"run,omitempty"`
	Polling         bool                `json:"polling" yaml:"polling"`
	PollError       string              `json:"poll_error,omitempty" yaml:"poll_error,omitempty"`
	Catalog         []api.Script        `json:"catalog,omitempty" yaml:"catalog,omitempty"`
}
