// Package logging assembles structured slog loggers and formatting helpers
// used across the review daemon and CLI.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so session code can
// automatically tag log lines with patient IDs, worklist positions, and
// correlation IDs. The package also provides a no-op logger for tests and
// wiring code that cannot fail, and a fixed-capacity ring handler that backs
// the daemon's log tail endpoint.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape and routing guarantees as the rest
// of the system.
package logging
