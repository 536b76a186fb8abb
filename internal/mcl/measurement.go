package mcl

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/position.report/internal/field"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/scan"
)

// DefaultNoiseSigma is the standard deviation in metres of the zero-mean
// Gaussian applied to nearest-obstacle distances.
const DefaultNoiseSigma = 0.1

// ScoreParams tunes the likelihood-field measurement model.
type ScoreParams struct {
	// NoiseSigma is the sensor noise standard deviation in metres.
	// Zero or negative selects DefaultNoiseSigma.
	NoiseSigma float64
	// BeamStride selects every stride-th beam of a scan; values below 1 use
	// every beam.
	BeamStride int
	// MaxRange skips beams whose reading exceeds it. Zero or negative
	// disables the cutoff.
	MaxRange float64
	// MixtureFloor is a uniform density mixed into each beam's Gaussian so a
	// single wild beam cannot drive a hypothesis to the numeric floor.
	// Zero disables the mixture.
	MixtureFloor float64
}

func (p ScoreParams) withDefaults() ScoreParams {
	if p.NoiseSigma <= 0 {
		p.NoiseSigma = DefaultNoiseSigma
	}
	if p.BeamStride < 1 {
		p.BeamStride = 1
	}
	return p
}

// MeasurementModel converts a scan plus a pose hypothesis into an importance
// weight using a likelihood field. Per beam, the hypothesized endpoint is
// projected from the pose, the nearest-obstacle distance is read from the
// field, and the distance feeds a zero-mean Gaussian density. Beam densities
// combine under conditional independence; the combination runs in log space
// so that products of hundreds of sub-unity densities cannot flush to zero.
type MeasurementModel struct {
	params ScoreParams
	noise  distuv.Normal
}

// NewMeasurementModel returns a model with defaults applied to params.
func NewMeasurementModel(params ScoreParams) *MeasurementModel {
	p := params.withDefaults()
	return &MeasurementModel{
		params: p,
		noise:  distuv.Normal{Mu: 0, Sigma: p.NoiseSigma},
	}
}

// Params returns the effective parameters after defaulting.
func (m *MeasurementModel) Params() ScoreParams { return m.params }

// selectBeams picks the usable subset of a scan: every stride-th beam,
// skipping invalid beams and beams beyond the max usable range.
func (m *MeasurementModel) selectBeams(sc scan.Scan) []scan.Beam {
	out := make([]scan.Beam, 0, len(sc.Beams)/m.params.BeamStride+1)
	for i := 0; i < len(sc.Beams); i += m.params.BeamStride {
		b := sc.Beams[i]
		if !b.Valid {
			continue
		}
		if m.params.MaxRange > 0 && b.Range > m.params.MaxRange {
			continue
		}
		out = append(out, b)
	}
	return out
}

// logScore accumulates the log-likelihood of one pose over the given beams.
func (m *MeasurementModel) logScore(p Particle, beams []scan.Beam, f *field.DistanceField) float64 {
	logW := 0.0
	for _, b := range beams {
		theta := p.Heading + b.Bearing
		ex := p.X + b.Range*math.Cos(theta)
		ey := p.Y + b.Range*math.Sin(theta)
		d := f.DistanceAt(ex, ey)
		if m.params.MixtureFloor > 0 {
			// The floor keeps the per-beam density above zero, so the log
			// never reaches -Inf.
			logW += math.Log(m.noise.Prob(d) + m.params.MixtureFloor)
		} else {
			logW += m.noise.LogProb(d)
		}
	}
	return logW
}

// Score reweights a single particle in place against one scan. A scan with
// zero usable beams leaves the particle's weight unchanged. The written
// weight is the raw product of per-beam densities; prefer ScoreSet for full
// passes, which rescales in log space across the set.
func (m *MeasurementModel) Score(p *Particle, sc scan.Scan, f *field.DistanceField) {
	beams := m.selectBeams(sc)
	if len(beams) == 0 {
		return
	}
	p.Weight = math.Exp(m.logScore(*p, beams, f))
}

// ScoreSet reweights every particle of the set against one scan, holding the
// set lock for the whole pass. Per-particle log-likelihoods are rescaled by
// the set's maximum before leaving log space: the common factor is irrelevant
// to the downstream resampler, and the rescaling preserves relative ranking
// in regimes where direct products underflow to exactly zero.
//
// The pass never reorders or resizes the set and does not normalize weights.
// A scan with zero usable beams leaves every weight unchanged.
func (m *MeasurementModel) ScoreSet(set *ParticleSet, sc scan.Scan, f *field.DistanceField) {
	beams := m.selectBeams(sc)
	if len(beams) == 0 {
		monitoring.Logf("mcl: scan has no usable beams (of %d); weights left unchanged", len(sc.Beams))
		return
	}
	set.update(func(particles []Particle) {
		logs := make([]float64, len(particles))
		maxLog := math.Inf(-1)
		for i := range particles {
			logs[i] = m.logScore(particles[i], beams, f)
			if logs[i] > maxLog {
				maxLog = logs[i]
			}
		}
		if math.IsInf(maxLog, -1) {
			// Every hypothesis scored -Inf (possible only with MixtureFloor
			// disabled). There is no ranking to preserve; zero the weights
			// rather than propagate NaN.
			for i := range particles {
				particles[i].Weight = 0
			}
			monitoring.Logf("mcl: all %d particles scored log-zero against scan", len(particles))
			return
		}
		for i := range particles {
			particles[i].Weight = math.Exp(logs[i] - maxLog)
		}
	})
}
