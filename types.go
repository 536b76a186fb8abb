package main

// JSON payload types for the HTTP ingestion surface.

// PosePayload is a planar pose in world coordinates.
type PosePayload struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// MapPayload is the body of POST /api/map: a full occupancy-grid snapshot.
// Cells follow the map-server convention: -1 unknown, 0..100 occupancy
// percentage, row-major.
type MapPayload struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Resolution float64     `json:"resolution"`
	Origin     PosePayload `json:"origin"`
	Cells      []int8      `json:"cells"`
}

// ScanPayload is the body of POST /api/scan: one planar range-finder sweep.
// Beam i has bearing angle_min + i*angle_increment relative to the carrier's
// heading.
type ScanPayload struct {
	AngleMin       float64   `json:"angle_min"`
	AngleIncrement float64   `json:"angle_increment"`
	RangeMin       float64   `json:"range_min"`
	RangeMax       float64   `json:"range_max"`
	Ranges         []float64 `json:"ranges"`
}
