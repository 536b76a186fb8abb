// Package mcl implements the measurement-update half of a Monte Carlo
// localization filter: a particle set of pose hypotheses and the
// likelihood-field measurement model that reweights it against incoming
// range scans.
//
// Prediction (motion model) and resampling are deliberately outside this
// package; consumers read weight snapshots and own both.
package mcl
