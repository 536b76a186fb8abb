package mcl

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/banshee-data/position.report/internal/grid"
)

// ErrNoParticles is returned when a particle set would be created empty.
var ErrNoParticles = errors.New("mcl: particle set must not be empty")

// Particle is one pose hypothesis in world coordinates plus its unnormalized
// importance weight. Weight is never negative and is not normalized across
// the set; normalization belongs to the external resampler.
type Particle struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
	Weight  float64 `json:"weight"`
}

// ParticleSet is a non-empty ordered collection of particles. Weight updates
// mutate particles in place and never reorder or resize the set. The set lock
// is held for the duration of a full scoring pass or snapshot, so a snapshot
// can never observe a half-updated generation.
type ParticleSet struct {
	mu        sync.Mutex
	particles []Particle
}

// NewParticleSetFromPoses seeds a set deterministically from explicit poses,
// all with weight 1.
func NewParticleSetFromPoses(poses []grid.Pose2D) (*ParticleSet, error) {
	if len(poses) == 0 {
		return nil, ErrNoParticles
	}
	ps := &ParticleSet{particles: make([]Particle, len(poses))}
	for i, p := range poses {
		ps.particles[i] = Particle{X: p.X, Y: p.Y, Heading: p.Heading, Weight: 1.0}
	}
	return ps, nil
}

// NewParticleSetUniform seeds n particles uniformly over the free cells of
// the map, with uniform random headings and weight 1. Positions are jittered
// within the chosen cell so particles don't stack on cell centres.
func NewParticleSetUniform(n int, g *grid.OccupancyGrid, rng *rand.Rand) (*ParticleSet, error) {
	if n < 1 {
		return nil, fmt.Errorf("mcl: particle count must be >= 1, got %d", n)
	}
	free := g.FreeCells()
	if len(free) == 0 {
		return nil, errors.New("mcl: map has no free cells to seed over")
	}
	ps := &ParticleSet{particles: make([]Particle, n)}
	for i := 0; i < n; i++ {
		c := free[rng.Intn(len(free))]
		x, y := g.GridToWorld(c[0], c[1])
		ps.particles[i] = Particle{
			X:       x + (rng.Float64()-0.5)*g.Resolution,
			Y:       y + (rng.Float64()-0.5)*g.Resolution,
			Heading: rng.Float64() * 2 * math.Pi,
			Weight:  1.0,
		}
	}
	return ps, nil
}

// Len returns the number of particles.
func (ps *ParticleSet) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.particles)
}

// Snapshot returns a copy of the particles (pose and weight, original order)
// for external consumption.
func (ps *ParticleSet) Snapshot() []Particle {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Particle, len(ps.particles))
	copy(out, ps.particles)
	return out
}

// update runs fn over the backing slice with the set lock held, serializing
// full scoring passes against snapshots.
func (ps *ParticleSet) update(fn func([]Particle)) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	fn(ps.particles)
}
