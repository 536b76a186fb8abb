package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"

	"github.com/banshee-data/position.report/internal/config"
	"github.com/banshee-data/position.report/internal/grid"
	"github.com/banshee-data/position.report/internal/httputil"
	"github.com/banshee-data/position.report/internal/mcl"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/scan"
)

// Server exposes the localization pipeline over HTTP: map and scan ingestion
// plus particle and stats readout.
type Server struct {
	updater *mcl.Updater
	cfg     *config.TuningConfig

	seedMu sync.Mutex // serializes uniform seeding on map arrival
	rng    *rand.Rand
}

// NewServer wires the HTTP surface to an updater. rng drives uniform
// free-space seeding when the tuning config carries no explicit seed poses.
func NewServer(updater *mcl.Updater, cfg *config.TuningConfig, rng *rand.Rand) *Server {
	return &Server{
		updater: updater,
		cfg:     cfg,
		rng:     rng,
	}
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Welcome to the Position Server!"))
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/map", s.handleMap)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/particles", s.handleParticles)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/", s.homeHandler)
	return mux
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var payload MapPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to decode map payload: %v", err))
		return
	}

	g, err := grid.FromRaw(
		payload.Width, payload.Height, payload.Resolution,
		grid.Pose2D{X: payload.Origin.X, Y: payload.Origin.Y, Heading: payload.Origin.Heading},
		payload.Cells, s.cfg.GetOccupiedThreshold(),
	)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid map: %v", err))
		return
	}
	if err := s.updater.SetMap(g); err != nil {
		httputil.WriteJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("failed to ingest map: %v", err))
		return
	}

	// First usable map and no explicit seed poses: seed uniformly over the
	// map's free space.
	if !s.updater.Seeded() && len(s.cfg.SeedPoses) == 0 {
		s.seedMu.Lock()
		defer s.seedMu.Unlock()
		if !s.updater.Seeded() {
			if err := s.updater.SeedUniform(s.cfg.GetParticleCount(), s.rng); err != nil {
				monitoring.Logf("server: uniform seeding failed: %v", err)
			}
		}
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var payload ScanPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to decode scan payload: %v", err))
		return
	}

	sc := scan.FromRanges(
		payload.AngleMin, payload.AngleIncrement,
		payload.RangeMin, payload.RangeMax, payload.Ranges,
	)
	if !s.updater.Submit(sc) {
		httputil.WriteJSONError(w, http.StatusTooManyRequests, "scan queue full, scan dropped")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleParticles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	snap := s.updater.Snapshot()
	if snap == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "particle set not seeded yet")
		return
	}
	httputil.WriteJSONOK(w, snap)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.updater.Stats())
}
