// Package validate holds the pure checks applied to a script descriptor
// before Generate may run, plus host normalization.
//
// Validators return an empty string for valid input and a human readable
// message otherwise, so callers can show the message next to the field
// without unwrapping an error. Check combines both into a
// services.ErrValidation error for the orchestrator.
//
// ValidateHost is a permissive heuristic, not a URI parser. It accepts, in
// order, dotted-quad IPv4 (optional port and path), http/https URLs, bare
// domains made of conservative labels, and localhost/127.0.0.1.
package validate
