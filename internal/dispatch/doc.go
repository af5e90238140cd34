// Package dispatch routes decoded messages to the image assembler, the
// series tracker and the data log.
//
// Ownership boundary:
// - selection state (Unselected / Selected(id)) applied to assembler and tracker
// - discovery of camera and sensor identities, reported upward
// - conversion of per-message failures into reported diagnostics
//
// The active selections are supplied by the caller on every Dispatch; the
// dispatcher never owns them. The first identity of each kind observed while
// nothing is selected is auto-selected and reported as such.
package dispatch
