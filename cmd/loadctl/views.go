package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"loadctl/internal/api"
	"loadctl/internal/monitor"
	"loadctl/internal/session"
	"loadctl/internal/textutil"
)

func runStatusLines(status api.RunStatus, active bool, colorize bool) []string {
	if !active {
		return []string{renderStatusLine("Test", statusInfo, "No test running", colorize)}
	}
	lines := []string{renderStatusLine("Test", statusWarn, "Not running", colorize)}
	if status.Running {
		lines[0] = renderStatusLine("Test", statusOK, "Running", colorize)
	}
	if status.ProcessID != "" {
		lines = append(lines, renderStatusLine("Process", statusInfo, status.ProcessID, colorize))
	}
	if status.Script != "" {
		lines = append(lines, renderStatusLine("Script", statusInfo, status.Script, colorize))
	}
	if status.UIURL != "" {
		lines = append(lines, renderStatusLine("Dashboard", statusInfo, status.UIURL, colorize))
	}
	if status.Users != nil {
		lines = append(lines, renderStatusLine("Users", statusInfo, numberPrinter.Sprintf("%d", *status.Users), colorize))
	}
	if status.Duration != nil {
		lines = append(lines, renderStatusLine("Duration", statusInfo, formatSeconds(*status.Duration), colorize))
	}
	return lines
}

func formatSeconds(seconds float64) string {
	return (time.Duration(seconds * float64(time.Second))).Round(time.Second).String()
}

func statsTable(stats *api.RunStats) string {
	if stats == nil {
		return ""
	}
	rows := [][]string{
		{"Current RPS", formatRate(stats.CurrentRPS)},
		{"Total requests", formatCount(stats.TotalRequests)},
		{"Failures", formatCount(stats.Failures)},
		{"Avg response", formatMillis(stats.AvgResponseTime)},
		{"Median response", formatMillis(stats.MedianResponseTime)},
		{"95th percentile", formatMillis(stats.P95ResponseTime)},
		{"Min response", formatMillis(stats.MinResponseTime)},
		{"Max response", formatMillis(stats.MaxResponseTime)},
	}
	return renderTable(tableSpec{
		title:   "Live statistics",
		headers: []string{"Metric", "Value"},
		aligns:  []columnAlignment{alignLeft, alignRight},
	}, rows)
}

func renderRunStatus(status api.RunStatus, active bool, colorize bool) string {
	var b strings.Builder
	for _, line := range runStatusLines(status, active, colorize) {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if active {
		if table := statsTable(status.Stats); table != "" {
			b.WriteString(table)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// lastChanged prefers the modification time and falls back to creation.
func lastChanged(script api.Script) string {
	if script.ModifiedAt != "" {
		return script.ModifiedAt
	}
	return script.CreatedAt
}

func scriptsTable(scripts []api.Script) string {
	rows := make([][]string, 0, len(scripts))
	for i, script := range scripts {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			script.Filename,
			formatBytes(script.FileSize),
			lastChanged(script),
		})
	}
	return renderTable(tableSpec{
		title:   "Generated scripts",
		headers: []string{"#", "Script", "Size", "Modified"},
		aligns:  []columnAlignment{alignRight, alignLeft, alignRight, alignLeft},
		footer:  []string{"", numberPrinter.Sprintf("%d scripts", len(scripts))},
	}, rows)
}

func healthLine(report monitor.HealthReport, colorize bool) string {
	kind := statusInfo
	switch report.State {
	case monitor.HealthHealthy:
		kind = statusOK
	case monitor.HealthUnhealthy:
		kind = statusError
	}
	message := report.State.Label()
	if report.Version != "" {
		message = fmt.Sprintf("%s (v%s)", message, strings.TrimPrefix(report.Version, "v"))
	}
	if report.State == monitor.HealthUnhealthy && report.Error != "" {
		message = fmt.Sprintf("%s: %s", message, textutil.Truncate(report.Error, 80))
	}
	return renderStatusLine("Backend", kind, message, colorize)
}

func snapshotLines(snap session.Snapshot, colorize bool) []string {
	lines := renderSectionHeader("Session "+snap.ID[:min(8, len(snap.ID))], colorize)
	if snap.File != nil {
		file := fmt.Sprintf("%s (%s)", snap.File.Name, formatBytes(&snap.File.Size))
		lines = append(lines, renderStatusLine("File", statusInfo, file, colorize))
	} else {
		lines = append(lines, renderStatusLine("File", statusWarn, "No file selected", colorize))
	}
	lines = append(lines, renderStatusLine("Flow data", okOr(snap.HasFlowData, statusInfo), yesNo(snap.HasFlowData), colorize))
	if snap.GeneratedScript != "" {
		lines = append(lines, renderStatusLine("Script", statusOK, snap.GeneratedScript, colorize))
	}
	for _, step := range []session.Step{session.StepUpload, session.StepConvert, session.StepGenerate, session.StepRun, session.StepStop, session.StepStopAll} {
		status := snap.Steps[step]
		if snap.Busy[step] {
			lines = append(lines, renderStatusLine(stepLabel(step), statusInfo, "in progress", colorize))
			continue
		}
		lines = append(lines, renderStepLine(step, status, colorize))
	}
	lines = append(lines, renderStatusLine("Polling", statusInfo, yesNo(snap.Polling), colorize))
	if snap.PollError != "" {
		lines = append(lines, renderStatusLine("Poll error", statusWarn, snap.PollError, colorize))
	}
	return lines
}

type statusView struct {
	Active bool           `json:"active" yaml:"active"`
	Status *api.RunStatus `json:"status,omitempty" yaml:"status,omitempty"`
}
