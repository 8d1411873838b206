// Package viewertest provides an in-memory viewer implementation for
// tests. The fake records every interaction, supports scripted
// failures, and writes real files on save so callers can assert on
// disk contents.
package viewertest
