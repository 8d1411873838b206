// Package cases discovers reviewable patient folders under a case root.
//
// Each immediate subdirectory is one case named by its patient ID. Within a
// folder, the image file is the last entry (lexicographic order) whose name
// contains "image" (case-sensitive); the segmentation file is the last entry
// whose lowercased name contains "segmentation", where an image match always
// takes precedence. Folders without an image are skipped with a warning, and
// patients already recorded in the annotations table are excluded before the
// case list is built.
package cases
