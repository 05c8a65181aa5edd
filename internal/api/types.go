package api

import (
	"encoding/json"
	"time"
)

// timestampFormat matches the ISO-8601 millisecond timestamps the backend expects.
const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in the wire format used for convert and generate hints.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

// UploadResult echoes the backend's upload response.
type UploadResult struct {
	Raw json.RawMessage
}

// ConvertRequest carries the optional filename hint for POST /convert.
type ConvertRequest struct {
	Filename  string
	Timestamp time.Time
}

// ConvertResult holds the flow data extracted from a convert response.
type ConvertResult struct {
	FlowData json.RawMessage
	Raw      json.RawMessage
}

// GenerateRequest describes a POST /generate call. FlowData fields are spread
// into the body when it is a JSON object.
type GenerateRequest struct {
	FlowData        json.RawMessage
	Filename        string
	Host            string
	ReplaceExisting bool
	Timestamp       time.Time
}

// GenerateResult names the script the backend produced. Filename is empty
// when the backend omitted every known name field.
type GenerateResult struct {
	Filename string
	Raw      json.RawMessage
}

// Script is one entry of the scripts catalog.
type Script struct {
	Filename   string `json:"filename" yaml:"filename"`
	FilePath   string `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	FileSize   *int64 `json:"file_size,omitempty" yaml:"file_size,omitempty"`
	CreatedAt  string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
}

// RunStats are the live statistics reported for a run. Absent values stay nil.
type RunStats struct {
	CurrentRPS         *float64 `json:"current_rps,omitempty" yaml:"current_rps,omitempty"`
	TotalRequests      *float64 `json:"total_requests,omitempty" yaml:"total_requests,omitempty"`
	AvgResponseTime    *float64 `json:"avg_response_time,omitempty" yaml:"avg_response_time,omitempty"`
	Failures           *float64 `json:"failures,omitempty" yaml:"failures,omitempty"`
	MinResponseTime    *float64 `json:"min_response_time,omitempty" yaml:"min_response_time,omitempty"`
	MaxResponseTime    *float64 `json:"max_response_time,omitempty" yaml:"max_response_time,omitempty"`
	MedianResponseTime *float64 `json:"median_response_time,omitempty" yaml:"median_response_time,omitempty"`
	P95ResponseTime    *float64 `json:"p95_response_time,omitempty" yaml:"p95_response_time,omitempty"`
}

// RunStatus is the canonical view of a run, built from both /run and
// /status responses.
type RunStatus struct {
	Running   bool      `json:"running" yaml:"running"`
	ProcessID string    `json:"process_id,omitempty" yaml:"process_id,omitempty"`
	Script    string    `json:"script,omitempty" yaml:"script,omitempty"`
	UIURL     string    `json:"ui_url,omitempty" yaml:"ui_url,omitempty"`
	Duration  *float64  `json:"duration,omitempty" yaml:"duration,omitempty"`
	Users     *int64    `json:"users,omitempty" yaml:"users,omitempty"`
	Stats     *RunStats `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// HealthResult is the liveness probe response.
type HealthResult struct {
	Status string
	Raw    json.RawMessage
}

// ServerInfo is the response of GET /.
type ServerInfo struct {
	Version string
	Raw     json.RawMessage
}
