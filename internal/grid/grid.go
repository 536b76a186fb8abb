package grid

import (
	"fmt"
	"math"
)

// CellState classifies one occupancy-grid cell.
type CellState int8

const (
	// CellFree indicates a cell known to contain no obstacle.
	CellFree CellState = iota
	// CellOccupied indicates a cell known to contain an obstacle.
	CellOccupied
	// CellUnknown indicates a cell with no occupancy information.
	CellUnknown
)

// String returns a human-readable cell state name.
func (c CellState) String() string {
	switch c {
	case CellFree:
		return "free"
	case CellOccupied:
		return "occupied"
	case CellUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("cellstate(%d)", int8(c))
	}
}

// Pose2D is a planar pose in world coordinates: position in metres plus a
// heading angle in radians (counterclockwise, zero along +X).
type Pose2D struct {
	X       float64
	Y       float64
	Heading float64
}

// OccupancyGrid is a row-major 2D occupancy map. The Origin is the world-frame
// pose of grid cell (0,0); a non-zero Origin.Heading rotates the whole grid
// relative to the world frame.
type OccupancyGrid struct {
	Width      int         // columns
	Height     int         // rows
	Resolution float64     // metres per cell, > 0
	Origin     Pose2D      // world pose of cell (0,0)
	Cells      []CellState // row-major, len = Width*Height
}

// Validate checks the structural invariants: positive dimensions and
// resolution, and a cell array matching Width*Height.
func (g *OccupancyGrid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("grid: invalid dimensions %dx%d", g.Width, g.Height)
	}
	if g.Resolution <= 0 {
		return fmt.Errorf("grid: resolution must be > 0, got %v", g.Resolution)
	}
	if len(g.Cells) != g.Width*g.Height {
		return fmt.Errorf("grid: cell array length %d does not match %dx%d",
			len(g.Cells), g.Width, g.Height)
	}
	return nil
}

// Idx returns the row-major cell index for (col, row).
func (g *OccupancyGrid) Idx(col, row int) int {
	return row*g.Width + col
}

// InBounds reports whether (col, row) addresses a cell of the grid.
func (g *OccupancyGrid) InBounds(col, row int) bool {
	return col >= 0 && col < g.Width && row >= 0 && row < g.Height
}

// IsOccupied reports whether the cell at (col, row) is occupied.
// Out-of-bounds cells are not occupied.
func (g *OccupancyGrid) IsOccupied(col, row int) bool {
	if !g.InBounds(col, row) {
		return false
	}
	return g.Cells[g.Idx(col, row)] == CellOccupied
}

// GridToWorld returns the world coordinates of the centre of cell (col, row),
// composing the origin translation with the origin heading rotation.
func (g *OccupancyGrid) GridToWorld(col, row int) (x, y float64) {
	lx := (float64(col) + 0.5) * g.Resolution
	ly := (float64(row) + 0.5) * g.Resolution
	sin, cos := math.Sincos(g.Origin.Heading)
	x = g.Origin.X + lx*cos - ly*sin
	y = g.Origin.Y + lx*sin + ly*cos
	return x, y
}

// WorldToGrid converts world coordinates into grid indices. The result may be
// out of bounds; callers decide how to treat that (the distance field maps it
// to a sentinel distance). Inverse of GridToWorld up to cell quantization.
func (g *OccupancyGrid) WorldToGrid(x, y float64) (col, row int) {
	dx := x - g.Origin.X
	dy := y - g.Origin.Y
	sin, cos := math.Sincos(g.Origin.Heading)
	// Rotate back into the grid frame.
	lx := dx*cos + dy*sin
	ly := -dx*sin + dy*cos
	col = int(math.Floor(lx / g.Resolution))
	row = int(math.Floor(ly / g.Resolution))
	return col, row
}

// Diagonal returns the world-length of the grid diagonal in metres.
func (g *OccupancyGrid) Diagonal() float64 {
	w := float64(g.Width) * g.Resolution
	h := float64(g.Height) * g.Resolution
	return math.Hypot(w, h)
}

// OccupiedCount returns the number of occupied cells.
func (g *OccupancyGrid) OccupiedCount() int {
	n := 0
	for _, c := range g.Cells {
		if c == CellOccupied {
			n++
		}
	}
	return n
}

// FreeCells returns the (col, row) coordinates of every free cell, used for
// uniform free-space particle seeding.
func (g *OccupancyGrid) FreeCells() [][2]int {
	out := make([][2]int, 0, len(g.Cells))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			if g.Cells[g.Idx(col, row)] == CellFree {
				out = append(out, [2]int{col, row})
			}
		}
	}
	return out
}

// FromRaw builds an OccupancyGrid from a raw map snapshot using the map-server
// convention: -1 unknown, 0..100 occupancy percentage. Cells at or above
// occupiedThreshold are classified occupied, non-negative cells below it free.
func FromRaw(width, height int, resolution float64, origin Pose2D, data []int8, occupiedThreshold int8) (*OccupancyGrid, error) {
	g := &OccupancyGrid{
		Width:      width,
		Height:     height,
		Resolution: resolution,
		Origin:     origin,
		Cells:      make([]CellState, len(data)),
	}
	for i, v := range data {
		switch {
		case v < 0:
			g.Cells[i] = CellUnknown
		case v >= occupiedThreshold:
			g.Cells[i] = CellOccupied
		default:
			g.Cells[i] = CellFree
		}
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
