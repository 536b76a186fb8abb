// Package monitor renders diagnostic visualizations of localization state.
package monitor

import (
	"fmt"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/position.report/internal/field"
	"github.com/banshee-data/position.report/internal/mcl"
)

// fieldGrid adapts a DistanceField to plotter.GridXYZ. Axes are in grid-local
// metres; the origin rotation is not applied to the image, only to overlaid
// particles, so the heatmap always renders axis-aligned.
type fieldGrid struct {
	f *field.DistanceField
}

func (g fieldGrid) Dims() (c, r int) { return g.f.Width, g.f.Height }
func (g fieldGrid) Z(c, r int) float64 {
	return g.f.At(c, r)
}
func (g fieldGrid) X(c int) float64 { return (float64(c) + 0.5) * g.f.Resolution }
func (g fieldGrid) Y(r int) float64 { return (float64(r) + 0.5) * g.f.Resolution }

// SaveFieldHeatmap renders the distance field as a heatmap image and overlays
// the given particles (if any) as a scatter. The output format follows the
// path extension (e.g. .png, .svg).
func SaveFieldHeatmap(f *field.DistanceField, particles []mcl.Particle, path string) error {
	p := plot.New()
	p.Title.Text = "nearest-obstacle distance (m)"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	pal := moreland.SmoothBlueRed().Palette(255)
	p.Add(plotter.NewHeatMap(fieldGrid{f}, pal))

	if len(particles) > 0 {
		sin, cos := math.Sincos(f.Origin.Heading)
		pts := make(plotter.XYs, len(particles))
		for i, pt := range particles {
			// World to grid-local metres, matching the heatmap axes.
			dx := pt.X - f.Origin.X
			dy := pt.Y - f.Origin.Y
			pts[i] = plotter.XY{
				X: dx*cos + dy*sin,
				Y: -dx*sin + dy*cos,
			}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("build particle scatter: %w", err)
		}
		p.Add(sc)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save field heatmap: %w", err)
	}
	return nil
}
