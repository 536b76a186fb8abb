package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/position.report/internal/config"
	"github.com/banshee-data/position.report/internal/field"
	"github.com/banshee-data/position.report/internal/grid"
	"github.com/banshee-data/position.report/internal/mcl"
	"github.com/banshee-data/position.report/internal/monitoring"
	"github.com/banshee-data/position.report/internal/store"
	"github.com/banshee-data/position.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "Listen address")
	dbPath      = flag.String("db", "position_data.db", "Path to the snapshot database")
	configPath  = flag.String("config", "", "Optional tuning config JSON path")
	rngSeed     = flag.Int64("rng-seed", 0, "PRNG seed for uniform particle seeding (0 = time-based)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

func buildUpdater(cfg *config.TuningConfig) (*mcl.Updater, error) {
	model := mcl.NewMeasurementModel(mcl.ScoreParams{
		NoiseSigma:   cfg.GetNoiseSigma(),
		BeamStride:   cfg.GetBeamStride(),
		MaxRange:     cfg.GetMaxRange(),
		MixtureFloor: cfg.GetMixtureFloor(),
	})

	var particles *mcl.ParticleSet
	if len(cfg.SeedPoses) > 0 {
		poses := make([]grid.Pose2D, len(cfg.SeedPoses))
		for i, sp := range cfg.SeedPoses {
			poses[i] = grid.Pose2D{X: sp.X, Y: sp.Y, Heading: sp.Heading}
		}
		var err error
		particles, err = mcl.NewParticleSetFromPoses(poses)
		if err != nil {
			return nil, err
		}
	}

	return mcl.NewUpdater(mcl.UpdaterConfig{
		Model:     model,
		Particles: particles,
		BuildOptions: field.BuildOptions{
			AllowEmpty:             cfg.GetAllowEmptyMap(),
			OutOfBoundsDistanceCap: cfg.GetOOBDistanceCap(),
		},
		ScanQueueSize: cfg.GetScanQueueSize(),
	}), nil
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("position.report %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	updater, err := buildUpdater(cfg)
	if err != nil {
		log.Fatalf("Failed to build updater: %v", err)
	}

	seed := *rngSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open snapshot database: %v", err)
	}
	defer st.Close()

	runID, err := st.CreateRun(time.Now())
	if err != nil {
		log.Fatalf("Failed to create run: %v", err)
	}
	log.Printf("position.report %s starting localization run %s", version.Version, runID)

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scan consumer: one scoring pass at a time, in queue order.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := updater.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("Updater exited: %v", err)
		}
	}()

	// Snapshot publisher: persists the particle cloud at a fixed cadence,
	// decoupled from scan arrival.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.GetPublishInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				snap := updater.Snapshot()
				if snap == nil {
					continue
				}
				stats := updater.Stats()
				if err := st.RecordSnapshot(runID, time.Now(), stats.ScansProcessed, snap); err != nil {
					monitoring.Logf("publisher: failed to record snapshot: %v", err)
				}
			}
		}
	}()

	server := NewServer(updater, cfg, rng)
	httpServer := &http.Server{Addr: *listen, Handler: server.ServeMux()}

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
	}()

	log.Printf("Listening on %s", *listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("HTTP server: %v", err)
		stop()
	}

	wg.Wait()
}
