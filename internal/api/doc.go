// Package api is the HTTP client for the load-testing control backend.
//
// Every endpoint the control panel drives lives here: upload, convert,
// generate, the scripts catalog, run, stop, stop-all, status, health and
// server info. Responses pass through one normalization boundary
// (normalize.go) that maps the alternate field names the backend has used
// over time into a single canonical type per concept. A payload whose overall
// shape is unrecognized is reported as a services.ErrContract failure instead
// of being defaulted.
//
// # Errors
//
// Non-2xx responses become *Error values. The user-facing message is taken
// from detail[0].msg, then a string detail, then message, and finally a
// generic "Request failed with status code N". Errors are wrapped with
// services markers: ErrNotFound for 404, ErrTransport for everything else
// including network failures.
//
// # Design Notes
//
// Request timeouts are applied through the context so any HTTPDoer works.
// Uploads stream the multipart body through a pipe and use the longer upload
// timeout. Each request carries an X-Request-ID, reusing the id stored on the
// context when present.
package api
