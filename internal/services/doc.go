// Package services defines shared utilities consumed by the session
// orchestrator, the remote API client and the monitors.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, operation names, and correlation
//     identifiers for logging and request tracing.
//   - Structured error markers plus the Wrap helper that separate local
//     validation failures, transport failures, contract violations and the
//     expected "no active run" absence.
//
// Use these helpers when wiring new operations so failure reporting stays
// uniform across the control panel.
package services
