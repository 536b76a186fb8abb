package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/position.report/internal/grid"
)

// ErrEmptyMap is returned by Build when the source grid contains no occupied
// cell and BuildOptions.AllowEmpty is false. A field over an obstacle-free
// map carries no information; callers that must keep running can opt into a
// degraded all-sentinel field instead.
var ErrEmptyMap = errors.New("field: map has no occupied cells")

// DefaultOutOfBoundsCapFactor scales the map diagonal to produce the sentinel
// distance returned for queries outside the map extents.
const DefaultOutOfBoundsCapFactor = 4.0

// BuildOptions configures distance field construction.
type BuildOptions struct {
	// AllowEmpty accepts a grid with no occupied cells and produces a field
	// whose every cell holds the out-of-bounds sentinel, instead of failing
	// with ErrEmptyMap.
	AllowEmpty bool
	// OutOfBoundsDistanceCap is the sentinel distance in metres returned for
	// world coordinates outside the map. Zero or negative selects
	// DefaultOutOfBoundsCapFactor times the map diagonal.
	OutOfBoundsDistanceCap float64
}

// DistanceField holds, for every cell of its source grid, the exact Euclidean
// distance in metres to the nearest occupied cell. It shares the source
// grid's geometry (dimensions, resolution, origin) and is immutable once
// built.
type DistanceField struct {
	Width      int
	Height     int
	Resolution float64
	Origin     grid.Pose2D
	Cells      []float64 // row-major, metres; exactly 0 at occupied cells

	geom   grid.OccupancyGrid // header-only copy used for coordinate transforms
	oobCap float64
}

// Build constructs a DistanceField from an occupancy grid using the two-pass
// exact Euclidean distance transform.
func Build(g *grid.OccupancyGrid, opts BuildOptions) (*DistanceField, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("field: invalid source grid: %w", err)
	}

	oobCap := opts.OutOfBoundsDistanceCap
	if oobCap <= 0 {
		oobCap = DefaultOutOfBoundsCapFactor * g.Diagonal()
	}

	f := &DistanceField{
		Width:      g.Width,
		Height:     g.Height,
		Resolution: g.Resolution,
		Origin:     g.Origin,
		Cells:      make([]float64, g.Width*g.Height),
		geom: grid.OccupancyGrid{
			Width:      g.Width,
			Height:     g.Height,
			Resolution: g.Resolution,
			Origin:     g.Origin,
		},
		oobCap: oobCap,
	}

	if g.OccupiedCount() == 0 {
		if !opts.AllowEmpty {
			return nil, ErrEmptyMap
		}
		for i := range f.Cells {
			f.Cells[i] = oobCap
		}
		return f, nil
	}

	sq := squaredDistances(g)
	for i, d2 := range sq {
		f.Cells[i] = math.Sqrt(d2) * g.Resolution
	}
	return f, nil
}

// At returns the distance value stored for cell (col, row). The cell must be
// in bounds; use DistanceAt for world-coordinate queries with the sentinel
// fallback.
func (f *DistanceField) At(col, row int) float64 {
	return f.Cells[row*f.Width+col]
}

// DistanceAt returns the nearest-obstacle distance at the given world
// coordinates. Coordinates outside the map extents return the configured
// out-of-bounds sentinel; the call never fails. Pose hypotheses whose beam
// endpoints leave the map therefore degrade to low likelihood instead of
// aborting a filter update.
func (f *DistanceField) DistanceAt(x, y float64) float64 {
	col, row := f.geom.WorldToGrid(x, y)
	if !f.geom.InBounds(col, row) {
		return f.oobCap
	}
	return f.Cells[row*f.Width+col]
}

// OutOfBoundsDistance returns the sentinel distance used for queries beyond
// the map extents.
func (f *DistanceField) OutOfBoundsDistance() float64 {
	return f.oobCap
}
