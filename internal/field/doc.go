// Package field builds and queries the likelihood field: a per-cell grid of
// exact Euclidean distances to the nearest occupied map cell.
//
// Fields are immutable after Build. Replacing a field when a new map arrives
// is the caller's concern (internal/mcl swaps the active reference
// atomically); nothing in this package mutates a built field.
package field
