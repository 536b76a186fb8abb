// Package grid owns the occupancy-grid map model for the localization
// pipeline.
//
// Responsibilities: grid ingestion and classification, world<->grid
// coordinate transforms (including rotated origins), and the occupancy
// predicate consumed by the distance field.
//
// Dependency rule: grid depends on nothing above it; field and mcl may
// depend on grid, never the reverse.
package grid
