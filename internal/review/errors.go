package review

import "errors"

// ErrNoSession reports an operation before any directory was selected.
var ErrNoSession = errors.New("no review session")

// ErrAllChecked reports a save or comment on the terminal state, after
// every case was reviewed.
var ErrAllChecked = errors.New("all files are checked")
