// Package scan models planar range-finder scans as ordered beam sequences.
package scan

import (
	"math"
	"time"
)

// Beam is one range reading within a scan. Bearing is the angle of the beam
// relative to the carrier's heading, radians counterclockwise. Range is the
// measured distance in metres. Valid distinguishes genuine returns from
// no-return, max-range and malformed readings.
type Beam struct {
	Bearing float64
	Range   float64
	Valid   bool
}

// Scan is an ordered sequence of beams from one sensor sweep.
type Scan struct {
	Beams      []Beam
	ReceivedAt time.Time // ingest wall time, informational
}

// ValidCount returns the number of beams marked valid.
func (s Scan) ValidCount() int {
	n := 0
	for _, b := range s.Beams {
		if b.Valid {
			n++
		}
	}
	return n
}

// FromRanges adapts a planar laser range-finder payload into a Scan. Beam i
// gets bearing angleMin + i*angleIncrement. Readings that are non-finite or
// fall outside [rangeMin, rangeMax] are kept in order but marked invalid, so
// beam indices stay aligned with the sensor's sweep.
func FromRanges(angleMin, angleIncrement, rangeMin, rangeMax float64, ranges []float64) Scan {
	s := Scan{Beams: make([]Beam, len(ranges)), ReceivedAt: time.Now()}
	for i, r := range ranges {
		b := Beam{
			Bearing: angleMin + float64(i)*angleIncrement,
			Range:   r,
		}
		b.Valid = !math.IsNaN(r) && !math.IsInf(r, 0) && r >= rangeMin && r <= rangeMax
		s.Beams[i] = b
	}
	return s
}
