// Package zorder maintains widgets sorted by their z-index together with an
// id index, keeping every z unique.
//
// # Shift Cascade
//
// Placing a widget at a z that is already taken pushes the occupant to z+1.
// If that displaces another widget, the push continues through the whole
// contiguous run of occupied z values and stops at the first gap or at the
// end of the sequence:
//
//	before:  [1:A 2:B 3:C 7:D]   insert E at 2
//	after:   [1:A 2:E 3:B 4:C 7:D]
//
// The cascade touches only the run, so it is cheap when z values are sparse
// and linear in the store size when they are dense. It runs as a loop, not a
// recursion, so long runs do not grow the stack.
//
// # Concurrency
//
// Store is not safe for concurrent use. Callers serialize all access; see
// package repository for the locking discipline.
package zorder
