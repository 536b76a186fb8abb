package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TuningConfig represents the root configuration for localization tuning
// parameters. All fields are optional pointers so a partial JSON file only
// overrides the values it names; the Get* accessors supply defaults for the
// rest.
type TuningConfig struct {
	// Measurement model params
	NoiseSigma   *float64 `json:"noise_sigma,omitempty"`   // Gaussian sigma over obstacle distances, metres
	BeamStride   *int     `json:"beam_stride,omitempty"`   // use every stride-th beam; 1 = all beams
	MaxRange     *float64 `json:"max_range,omitempty"`     // usable range cutoff, metres; 0 disables
	MixtureFloor *float64 `json:"mixture_floor,omitempty"` // per-beam uniform outlier floor; 0 disables

	// Map ingestion params
	OccupiedThreshold *int     `json:"occupied_threshold,omitempty"` // raw cell value at/above which a cell is occupied
	OOBDistanceCap    *float64 `json:"oob_distance_cap,omitempty"`   // sentinel distance outside the map, metres; 0 = auto
	AllowEmptyMap     *bool    `json:"allow_empty_map,omitempty"`    // accept obstacle-free maps as degraded all-sentinel fields
	ScanQueueSize     *int     `json:"scan_queue_size,omitempty"`    // bounded single-consumer scan queue capacity

	// Particle seeding params
	ParticleCount *int       `json:"particle_count,omitempty"` // uniform free-space seed count, used when seed_poses is absent
	SeedPoses     []SeedPose `json:"seed_poses,omitempty"`     // explicit deterministic seed poses

	// Publisher params
	PublishInterval *string `json:"publish_interval,omitempty"` // duration string like "1s"
}

// SeedPose is one explicit particle seed pose.
type SeedPose struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Heading float64 `json:"heading"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset; every
// accessor then reports its default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted from
// the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable.
func (c *TuningConfig) Validate() error {
	if c.NoiseSigma != nil && *c.NoiseSigma <= 0 {
		return fmt.Errorf("noise_sigma must be > 0, got %f", *c.NoiseSigma)
	}
	if c.BeamStride != nil && *c.BeamStride < 1 {
		return fmt.Errorf("beam_stride must be >= 1, got %d", *c.BeamStride)
	}
	if c.MaxRange != nil && *c.MaxRange < 0 {
		return fmt.Errorf("max_range must be non-negative, got %f", *c.MaxRange)
	}
	if c.MixtureFloor != nil && (*c.MixtureFloor < 0 || *c.MixtureFloor >= 1) {
		return fmt.Errorf("mixture_floor must be in [0,1), got %f", *c.MixtureFloor)
	}
	if c.OccupiedThreshold != nil && (*c.OccupiedThreshold < 0 || *c.OccupiedThreshold > 100) {
		return fmt.Errorf("occupied_threshold must be in [0,100], got %d", *c.OccupiedThreshold)
	}
	if c.OOBDistanceCap != nil && *c.OOBDistanceCap < 0 {
		return fmt.Errorf("oob_distance_cap must be non-negative, got %f", *c.OOBDistanceCap)
	}
	if c.ScanQueueSize != nil && *c.ScanQueueSize < 1 {
		return fmt.Errorf("scan_queue_size must be >= 1, got %d", *c.ScanQueueSize)
	}
	if c.ParticleCount != nil && *c.ParticleCount < 1 {
		return fmt.Errorf("particle_count must be >= 1, got %d", *c.ParticleCount)
	}
	if c.PublishInterval != nil && *c.PublishInterval != "" {
		if _, err := time.ParseDuration(*c.PublishInterval); err != nil {
			return fmt.Errorf("invalid publish_interval '%s': %w", *c.PublishInterval, err)
		}
	}
	return nil
}

// GetNoiseSigma returns the noise_sigma value or the default.
func (c *TuningConfig) GetNoiseSigma() float64 {
	if c.NoiseSigma == nil {
		return 0.1 // metres
	}
	return *c.NoiseSigma
}

// GetBeamStride returns the beam_stride value or the default.
func (c *TuningConfig) GetBeamStride() int {
	if c.BeamStride == nil {
		return 1 // every beam
	}
	return *c.BeamStride
}

// GetMaxRange returns the max_range value or the default.
func (c *TuningConfig) GetMaxRange() float64 {
	if c.MaxRange == nil {
		return 3.5 // typical small planar lidar cutoff
	}
	return *c.MaxRange
}

// GetMixtureFloor returns the mixture_floor value or the default.
func (c *TuningConfig) GetMixtureFloor() float64 {
	if c.MixtureFloor == nil {
		return 0 // pure Gaussian model
	}
	return *c.MixtureFloor
}

// GetOccupiedThreshold returns the occupied_threshold value or the default.
func (c *TuningConfig) GetOccupiedThreshold() int8 {
	if c.OccupiedThreshold == nil {
		return 65 // map-server convention
	}
	return int8(*c.OccupiedThreshold)
}

// GetOOBDistanceCap returns the oob_distance_cap value or the default.
// Zero means the field derives the cap from the map diagonal.
func (c *TuningConfig) GetOOBDistanceCap() float64 {
	if c.OOBDistanceCap == nil {
		return 0
	}
	return *c.OOBDistanceCap
}

// GetAllowEmptyMap returns the allow_empty_map value or the default.
func (c *TuningConfig) GetAllowEmptyMap() bool {
	if c.AllowEmptyMap == nil {
		return false // fail construction on obstacle-free maps
	}
	return *c.AllowEmptyMap
}

// GetScanQueueSize returns the scan_queue_size value or the default.
func (c *TuningConfig) GetScanQueueSize() int {
	if c.ScanQueueSize == nil {
		return 8
	}
	return *c.ScanQueueSize
}

// GetParticleCount returns the particle_count value or the default.
func (c *TuningConfig) GetParticleCount() int {
	if c.ParticleCount == nil {
		return 500
	}
	return *c.ParticleCount
}

// GetPublishInterval parses and returns the PublishInterval as a
// time.Duration.
func (c *TuningConfig) GetPublishInterval() time.Duration {
	if c.PublishInterval == nil || *c.PublishInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.PublishInterval)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}
