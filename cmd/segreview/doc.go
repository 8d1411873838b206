// Package main hosts the segreview CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the segreviewd control API, review workflow operations,
// worklist inspection, log tailing, and configuration scaffolding. It
// centralizes configuration resolution and daemon discovery so subcommands
// can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
// That separation keeps the CLI declarative while the review semantics live
// in reusable components.
package main
