// Package viewer defines the capability surface the review session
// requires from the attached image viewer. Implementations adapt a
// concrete viewer (or an in-memory fake) to these interfaces; callers
// hold node handles as opaque string IDs and never touch viewer
// internals directly.
package viewer
