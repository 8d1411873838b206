// Package preflight provides readiness checks for the filesystem paths
// and the viewer bridge the review daemon depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs failures.
//   - Save-and-next calls DiskSpace before writing a segmentation so a
//     full disk surfaces as an operator error instead of a torn write.
//
// The CLI "segreview status" command renders the same results.
package preflight
