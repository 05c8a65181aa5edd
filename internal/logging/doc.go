// Package logging assembles structured slog loggers used across loadctl.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so orchestrator code can tag log
// lines with session IDs, operation names, and request correlation IDs. A
// fan-out handler mirrors console output into a JSON file when a log
// directory is configured, and a no-op logger serves tests and wiring code
// that cannot fail.
package logging
