// Package segmentation holds the region naming policy and display presets
// shared by the review session and the viewer bridge.
//
// The bootstrap rules operate on region names only: a name equal to
// "prostate" or "fascia" (case-insensitive) is recognized, everything else is
// hidden. Presets decorate region creation with display colors and never
// change which regions the bootstrap requires.
package segmentation
