// Package annotations manages the append-only review table stored at the
// root of a case directory tree.
//
// The table is the durable record of the review: one patientID,comment row
// per saved case. The header is written only when the file is created, rows
// are only ever appended, and an advisory flock guards against concurrent
// reviewer instances interleaving writes. Comments are normalized to Unicode
// NFC so the same text always produces the same bytes.
//
// A table that exists but cannot be parsed aborts discovery rather than
// silently re-queueing already-reviewed patients; callers branch on
// ErrMalformedTable.
package annotations
