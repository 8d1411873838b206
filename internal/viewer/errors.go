package viewer

import "errors"

// ErrNodeAbsent reports an operation on a node ID that no longer
// exists in the viewer scene.
var ErrNodeAbsent = errors.New("viewer node absent")

// ErrUnavailable reports that the viewer bridge cannot be reached.
// Callers treat it as a transport failure rather than a review error.
var ErrUnavailable = errors.New("viewer unavailable")
