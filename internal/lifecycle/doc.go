// Package lifecycle holds the ordering and state-transition rules for tasks.
//
// Every function here is pure: it takes a snapshot and returns a new value,
// never mutating its input and never performing I/O.
package lifecycle
