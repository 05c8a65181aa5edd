// Package main hosts the loadctl CLI entrypoint and command graph.
//
// The Cobra-based command tree drives a remote load-testing control API:
// uploading captures, converting and generating scripts, starting and
// stopping runs, and watching status and backend health. One-shot commands
// build a session per invocation; the console command keeps a single session
// alive with the status poller and health monitor running underneath.
//
// Keep this package lean: behaviour lives in internal/session, internal/api
// and internal/monitor, and commands here only parse flags and render
// results as tables, JSON or YAML.
package main
