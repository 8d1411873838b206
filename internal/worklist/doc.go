// Package worklist persists review-session bookkeeping in SQLite. The
// database is transient state for the running daemon: the annotation
// CSV stays the durable record, so a schema mismatch resets the
// database instead of migrating it.
package worklist
