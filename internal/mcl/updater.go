package mcl

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/position.report/internal/field"
	"github.com/banshee-data/position.report/internal/grid"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/scan"
)

// ErrFieldNotReady is returned when a scan arrives before any map has been
// processed into a distance field. Callers skip the scan and keep running.
var ErrFieldNotReady = errors.New("mcl: no distance field built yet")

// ErrNotSeeded is returned when a scan arrives before the particle set has
// been initialized.
var ErrNotSeeded = errors.New("mcl: particle set not seeded yet")

// DefaultScanQueueSize bounds the single-consumer scan queue.
const DefaultScanQueueSize = 8

// UpdaterConfig configures an Updater.
type UpdaterConfig struct {
	Model        *MeasurementModel
	Particles    *ParticleSet // optional; may be seeded later via SeedUniform
	BuildOptions field.BuildOptions
	// ScanQueueSize bounds the scan queue; values below 1 use
	// DefaultScanQueueSize.
	ScanQueueSize int
}

// UpdaterStats is an observable snapshot of the updater's counters.
type UpdaterStats struct {
	ScansProcessed int64 `json:"scans_processed"`
	ScansDropped   int64 `json:"scans_dropped"`
	ScansSkipped   int64 `json:"scans_skipped"`
	QueueDepth     int   `json:"queue_depth"`
	FieldVersion   int64 `json:"field_version"`
	ParticleCount  int   `json:"particle_count"`
}

// Updater owns the mutable localization state (current distance field and
// particle set) and drives measurement updates from a bounded single-consumer
// scan queue. Scan processing is strictly serialized: one full scoring pass
// completes before the next queued scan is taken.
//
// Queue policy: arrival order is preserved; when the queue is full the newest
// scan is dropped, counted and logged. Dropping silently would hide backlog
// from downstream consumers, so drops are observable via Stats.
type Updater struct {
	model     *MeasurementModel
	buildOpts field.BuildOptions

	mu  sync.Mutex // guards set replacement (seeding)
	set *ParticleSet

	field  atomic.Pointer[field.DistanceField]
	grid   atomic.Pointer[grid.OccupancyGrid]
	scanCh chan scan.Scan

	scansProcessed atomic.Int64
	scansDropped   atomic.Int64
	scansSkipped   atomic.Int64
	fieldVersion   atomic.Int64
}

// NewUpdater creates an Updater. The distance field is absent until the first
// SetMap call; scans submitted before then are skipped, not failed.
func NewUpdater(cfg UpdaterConfig) *Updater {
	qs := cfg.ScanQueueSize
	if qs < 1 {
		qs = DefaultScanQueueSize
	}
	model := cfg.Model
	if model == nil {
		model = NewMeasurementModel(ScoreParams{})
	}
	return &Updater{
		model:     model,
		buildOpts: cfg.BuildOptions,
		set:       cfg.Particles,
		scanCh:    make(chan scan.Scan, qs),
	}
}

// SetMap ingests a full occupancy-grid snapshot. The replacement distance
// field is built completely aside and only then swapped into place, so an
// in-flight scoring pass keeps reading a consistent field; no query observes
// a mix of old and new cells.
func (u *Updater) SetMap(g *grid.OccupancyGrid) error {
	f, err := field.Build(g, u.buildOpts)
	if err != nil {
		return fmt.Errorf("mcl: rebuilding distance field: %w", err)
	}
	u.grid.Store(g)
	u.field.Store(f)
	v := u.fieldVersion.Add(1)
	monitoring.Logf("mcl: distance field v%d ready (%dx%d cells, %d occupied)",
		v, g.Width, g.Height, g.OccupiedCount())
	return nil
}

// Field returns the active distance field, or nil before the first map.
func (u *Updater) Field() *field.DistanceField {
	return u.field.Load()
}

// SetParticles installs an explicitly seeded particle set.
func (u *Updater) SetParticles(ps *ParticleSet) {
	u.mu.Lock()
	u.set = ps
	u.mu.Unlock()
}

// SeedUniform seeds n particles uniformly over the free space of the current
// map. Fails with ErrFieldNotReady before the first map.
func (u *Updater) SeedUniform(n int, rng *rand.Rand) error {
	g := u.grid.Load()
	if g == nil {
		return ErrFieldNotReady
	}
	ps, err := NewParticleSetUniform(n, g, rng)
	if err != nil {
		return err
	}
	u.SetParticles(ps)
	monitoring.Logf("mcl: seeded %d particles over free space", n)
	return nil
}

// Seeded reports whether a particle set has been installed.
func (u *Updater) Seeded() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.set != nil
}

// Submit enqueues a scan for the consumer loop without blocking. When the
// queue is full the submitted (newest) scan is dropped and false is returned.
func (u *Updater) Submit(sc scan.Scan) bool {
	select {
	case u.scanCh <- sc:
		return true
	default:
		n := u.scansDropped.Add(1)
		monitoring.Logf("mcl: scan queue full, dropped newest scan (%d dropped total)", n)
		return false
	}
}

// ProcessScan runs one measurement update: the current particle set is scored
// against sc using the active distance field. Returns ErrFieldNotReady or
// ErrNotSeeded when the respective state is missing; the scan is then skipped
// without touching any weight.
func (u *Updater) ProcessScan(sc scan.Scan) error {
	f := u.field.Load()
	if f == nil {
		return ErrFieldNotReady
	}
	u.mu.Lock()
	set := u.set
	u.mu.Unlock()
	if set == nil {
		return ErrNotSeeded
	}
	u.model.ScoreSet(set, sc, f)
	u.scansProcessed.Add(1)
	return nil
}

// Run consumes queued scans until ctx is cancelled. No input terminates the
// loop: scans arriving before a map or before seeding are counted as skipped
// and logged.
func (u *Updater) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sc := <-u.scanCh:
			if err := u.ProcessScan(sc); err != nil {
				u.scansSkipped.Add(1)
				monitoring.Logf("mcl: skipping scan: %v", err)
			}
		}
	}
}

// Snapshot returns the current particles in original order, or nil before
// seeding.
func (u *Updater) Snapshot() []Particle {
	u.mu.Lock()
	set := u.set
	u.mu.Unlock()
	if set == nil {
		return nil
	}
	return set.Snapshot()
}

// Stats returns the updater's observable counters.
func (u *Updater) Stats() UpdaterStats {
	s := UpdaterStats{
		ScansProcessed: u.scansProcessed.Load(),
		ScansDropped:   u.scansDropped.Load(),
		ScansSkipped:   u.scansSkipped.Load(),
		QueueDepth:     len(u.scanCh),
		FieldVersion:   u.fieldVersion.Load(),
	}
	u.mu.Lock()
	set := u.set
	u.mu.Unlock()
	if set != nil {
		s.ParticleCount = set.Len()
	}
	return s
}
