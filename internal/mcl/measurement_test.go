package mcl

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/position.report/internal/field"
	"github.com/banshee-data/position.report/internal/grid"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/scan"
)

func buildTestField(t *testing.T, w, h int, res float64, occupied ...[2]int) *field.DistanceField {
	t.Helper()
	g := &grid.OccupancyGrid{
		Width:      w,
		Height:     h,
		Resolution: res,
		Cells:      make([]grid.CellState, w*h),
	}
	for _, c := range occupied {
		g.Cells[g.Idx(c[0], c[1])] = grid.CellOccupied
	}
	f, err := field.Build(g, field.BuildOptions{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return f
}

func validBeams(n int, bearing, r float64) []scan.Beam {
	beams := make([]scan.Beam, n)
	for i := range beams {
		beams[i] = scan.Beam{Bearing: bearing, Range: r, Valid: true}
	}
	return beams
}

func TestGaussianDensityPeakAndSymmetry(t *testing.T) {
	for _, sigma := range []float64{0.05, 0.1, 0.5, 2.0} {
		n := distuv.Normal{Mu: 0, Sigma: sigma}
		want := 1.0 / (sigma * math.Sqrt(2*math.Pi))
		if got := n.Prob(0); math.Abs(got-want) > 1e-12 {
			t.Fatalf("sigma=%v: density at 0 = %v, want %v", sigma, got, want)
		}
		for _, d := range []float64{0.01, 0.3, 1.7} {
			if math.Abs(n.Prob(d)-n.Prob(-d)) > 1e-15 {
				t.Fatalf("sigma=%v: density not symmetric at %v", sigma, d)
			}
			if n.Prob(d) >= n.Prob(d/2) {
				t.Fatalf("sigma=%v: density not decreasing away from 0", sigma)
			}
		}
	}
}

func TestSelectBeams(t *testing.T) {
	sc := scan.Scan{Beams: []scan.Beam{
		{Bearing: 0.0, Range: 1.0, Valid: true},
		{Bearing: 0.1, Range: 2.0, Valid: false},
		{Bearing: 0.2, Range: 9.0, Valid: true}, // beyond max range
		{Bearing: 0.3, Range: 1.5, Valid: true},
		{Bearing: 0.4, Range: 1.1, Valid: true},
	}}

	m := NewMeasurementModel(ScoreParams{MaxRange: 3.5})
	got := m.selectBeams(sc)
	if len(got) != 3 {
		t.Fatalf("expected 3 usable beams, got %d", len(got))
	}

	// Stride 2 visits indices 0, 2, 4; index 2 is over range.
	m = NewMeasurementModel(ScoreParams{MaxRange: 3.5, BeamStride: 2})
	got = m.selectBeams(sc)
	if len(got) != 2 {
		t.Fatalf("stride 2: expected 2 usable beams, got %d", len(got))
	}
	if got[0].Bearing != 0.0 || got[1].Bearing != 0.4 {
		t.Fatalf("stride 2 selected wrong beams: %+v", got)
	}
}

// A particle whose hypothesized beam endpoint lands on the obstacle must
// outscore one whose endpoint lands in empty space.
func TestCloserPoseScoresHigher(t *testing.T) {
	defer monitoring.Mute()()

	// Obstacle at world (2,0) area: 0.1m cells, obstacle cell (20,0).
	f := buildTestField(t, 40, 10, 0.1, [2]int{20, 0})

	sc := scan.Scan{Beams: []scan.Beam{{Bearing: 0, Range: 2.0, Valid: true}}}
	ps, err := NewParticleSetFromPoses([]grid.Pose2D{
		{X: 0.05, Y: 0.05, Heading: 0}, // endpoint at (2.05,0.05): on the obstacle
		{X: -3.0, Y: 0.05, Heading: 0}, // endpoint at (-0.95,0.05): off the map
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	m := NewMeasurementModel(ScoreParams{})
	m.ScoreSet(ps, sc, f)

	snap := ps.Snapshot()
	if !(snap[0].Weight > snap[1].Weight) {
		t.Fatalf("expected on-obstacle pose to outscore distant pose: %v vs %v",
			snap[0].Weight, snap[1].Weight)
	}
	if snap[1].Weight < 0 {
		t.Fatalf("weights must be non-negative, got %v", snap[1].Weight)
	}
}

func TestHeadingComposesWithBearing(t *testing.T) {
	defer monitoring.Mute()()

	// Obstacle "north" of the origin cell: cell (5,25) of a 0.1m grid is
	// world (0.55, 2.55).
	f := buildTestField(t, 10, 40, 0.1, [2]int{5, 25})

	// Particle at the obstacle's column, heading +90deg, beam bearing 0,
	// range 2.0: endpoint at (0.55, 2.55) exactly on the obstacle.
	aligned := Particle{X: 0.55, Y: 0.55, Heading: math.Pi / 2}
	// Same pose but heading 0: endpoint at (2.55, 0.55), far from it.
	misaligned := Particle{X: 0.55, Y: 0.55, Heading: 0}

	sc := scan.Scan{Beams: validBeams(1, 0, 2.0)}
	m := NewMeasurementModel(ScoreParams{})
	m.Score(&aligned, sc, f)
	m.Score(&misaligned, sc, f)

	if !(aligned.Weight > misaligned.Weight) {
		t.Fatalf("heading must rotate beam bearings: %v vs %v",
			aligned.Weight, misaligned.Weight)
	}
}

func TestScoreSetPreservesOrderAndLength(t *testing.T) {
	defer monitoring.Mute()()
	f := buildTestField(t, 20, 20, 0.1, [2]int{10, 10})

	poses := []grid.Pose2D{{X: 0.1}, {X: 0.4}, {X: 0.7}, {X: 1.0}}
	ps, err := NewParticleSetFromPoses(poses)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	m := NewMeasurementModel(ScoreParams{})
	m.ScoreSet(ps, scan.Scan{Beams: validBeams(30, 0, 1.0)}, f)

	snap := ps.Snapshot()
	if len(snap) != len(poses) {
		t.Fatalf("set resized: %d -> %d", len(poses), len(snap))
	}
	for i, p := range snap {
		if p.X != poses[i].X || p.Y != poses[i].Y || p.Heading != poses[i].Heading {
			t.Fatalf("particle %d pose changed or reordered: %+v", i, p)
		}
	}
}

func TestEmptyScanLeavesWeightsUnchanged(t *testing.T) {
	defer monitoring.Mute()()
	f := buildTestField(t, 20, 20, 0.1, [2]int{10, 10})

	ps, err := NewParticleSetFromPoses([]grid.Pose2D{{X: 0.5}, {X: 1.5}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := ps.Snapshot()

	m := NewMeasurementModel(ScoreParams{})

	// Zero beams.
	m.ScoreSet(ps, scan.Scan{}, f)
	if diff := cmp.Diff(before, ps.Snapshot()); diff != "" {
		t.Fatalf("empty scan changed weights:\n%s", diff)
	}

	// All beams invalid.
	invalid := scan.Scan{Beams: make([]scan.Beam, 360)}
	m.ScoreSet(ps, invalid, f)
	if diff := cmp.Diff(before, ps.Snapshot()); diff != "" {
		t.Fatalf("fully-invalid scan changed weights:\n%s", diff)
	}

	// Single-particle path too.
	p := Particle{X: 0.5, Weight: 0.37}
	m.Score(&p, invalid, f)
	if p.Weight != 0.37 {
		t.Fatalf("Score changed weight on invalid scan: %v", p.Weight)
	}
}

// Regression for the underflow hazard: with enough beams the naive direct
// product of densities flushes to exactly zero for every hypothesis, while
// the log-domain pass keeps their relative ranking.
func TestLogDomainSurvivesNaiveUnderflow(t *testing.T) {
	defer monitoring.Mute()()

	// 1cm cells; obstacle cell (200,5), world centre (2.005, 0.055).
	f := buildTestField(t, 400, 10, 0.01, [2]int{200, 5})

	const nBeams = 1500
	sc := scan.Scan{Beams: validBeams(nBeams, 0, 2.0)}

	// Beam endpoints land 0.21m, 0.22m and 0.23m short of the obstacle.
	// Every per-beam density is below 0.5 there, so the direct product
	// cannot park on a subnormal: it decays all the way to exact zero.
	poses := []grid.Pose2D{
		{X: -0.205, Y: 0.055},
		{X: -0.215, Y: 0.055},
		{X: -0.225, Y: 0.055},
	}
	ps, err := NewParticleSetFromPoses(poses)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Naive accumulation underflows to exactly zero for every particle.
	sigma := DefaultNoiseSigma
	gauss := distuv.Normal{Mu: 0, Sigma: sigma}
	for i, pose := range poses {
		d := f.DistanceAt(pose.X+2.0, pose.Y)
		// Densities at or above 0.5 stall on the smallest subnormal
		// instead of reaching zero.
		if p := gauss.Prob(d); p >= 0.5 {
			t.Fatalf("particle %d: per-beam density %v is not decaying", i, p)
		}
		naive := 1.0
		for range sc.Beams {
			naive *= gauss.Prob(d)
		}
		if naive != 0 {
			t.Fatalf("particle %d: expected naive product to underflow, got %v", i, naive)
		}
	}

	m := NewMeasurementModel(ScoreParams{})
	m.ScoreSet(ps, sc, f)

	snap := ps.Snapshot()
	if !(snap[0].Weight > snap[1].Weight && snap[1].Weight > snap[2].Weight) {
		t.Fatalf("ranking lost: %v, %v, %v",
			snap[0].Weight, snap[1].Weight, snap[2].Weight)
	}
	if snap[2].Weight <= 0 {
		t.Fatalf("worst particle flushed to zero: %v", snap[2].Weight)
	}
}

func TestMixtureFloorBoundsPerBeamLog(t *testing.T) {
	defer monitoring.Mute()()
	f := buildTestField(t, 20, 20, 0.1, [2]int{10, 10})

	// Endpoint far outside the map: distance is the sentinel cap.
	p := Particle{X: -100, Y: -100}
	beams := validBeams(10, 0, 1.0)

	plain := NewMeasurementModel(ScoreParams{})
	withFloor := NewMeasurementModel(ScoreParams{MixtureFloor: 1e-3})

	lp := plain.logScore(p, beams, f)
	lf := withFloor.logScore(p, beams, f)

	if math.IsInf(lf, -1) || math.IsNaN(lf) {
		t.Fatalf("floor must keep log-likelihood finite, got %v", lf)
	}
	wantFloorMin := 10 * math.Log(1e-3)
	if lf < wantFloorMin-1e-9 {
		t.Fatalf("per-beam floor violated: %v < %v", lf, wantFloorMin)
	}
	if lf <= lp {
		t.Fatalf("floored likelihood should dominate for outlier beams: %v vs %v", lf, lp)
	}
}

func TestScoreParamsDefaults(t *testing.T) {
	m := NewMeasurementModel(ScoreParams{})
	p := m.Params()
	if p.NoiseSigma != DefaultNoiseSigma {
		t.Fatalf("default sigma = %v, want %v", p.NoiseSigma, DefaultNoiseSigma)
	}
	if p.BeamStride != 1 {
		t.Fatalf("default stride = %d, want 1", p.BeamStride)
	}
}
