// Package review drives the segmentation review workflow: directory
// selection, case navigation, segmentation bootstrap in the viewer,
// save-and-next persistence, and the terminal all-checked state.
//
// A Session serializes every operation behind one mutex; operations
// run to completion before the next is handled. The worklist database
// journals progress, the annotations CSV stays the durable record.
package review
