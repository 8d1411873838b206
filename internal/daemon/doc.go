// Package daemon coordinates the long-running segreviewd process.
//
// It wires configuration, the worklist store, the review session, and
// the control API server into a single lifecycle with flock-based
// locking to prevent multiple instances. The daemon exposes session
// operations to the HTTP layer, reports startup preflight results, and
// serves the in-memory log tail.
//
// Keep orchestration logic here: review semantics live in the review
// package while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
