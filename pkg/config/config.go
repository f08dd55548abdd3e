// Package config holds the explicit configuration for every layout phase.
//
// A [Config] is a plain value: it is built once (from [Default], a file
// loaded with [Load], or an API request body), validated with
// [Config.Validate], and then passed by value into each component. No
// component reads global state.
//
// # Defaults
//
// The defaults reproduce the reference FM³ behaviour: desired edge length
// L=10, repulsion K_r=100, attraction K_s=1, 300 iterations with a 0.95
// cooling factor, a spatial tree with leaves of at most 4 nodes and
// precision P=4, a tree rebuild at iterations 0-3 and then every 20th, a
// coarsening threshold of 50 nodes, and incremental pinning constants 0.6 /
// 0.35 / 0.5.
//
// # File Formats
//
// [Load] picks the decoder from the file extension:
//
//	.toml         BurntSushi/toml
//	.yaml, .yml   gopkg.in/yaml.v3
//	.json         encoding/json
//
// Fields missing from the file keep their default value.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/evolayout/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	DefaultEdgeLength = 10.0
	DefaultRepulsion  = 100.0
	DefaultAttraction = 1.0

	DefaultIterations               = 300
	DefaultCoolingFactor            = 0.95
	DefaultInitialTemperatureFactor = 0.2
	DefaultRebuildWarmup            = 4
	DefaultRebuildEvery             = 20
	DefaultEarlyExitScale           = 6.0

	DefaultVerticesThreshold = 4
	DefaultPrecision         = 4

	DefaultCoarseningThreshold = 50
	DefaultCoarsestIterations  = 300
	DefaultFinestIterations    = 30
	DefaultPerturbation        = 1.0

	DefaultNeighborInfluence = 0.6
	DefaultPinningInit       = 0.35
	DefaultRingFraction      = 0.5

	DefaultEnergyThreshold = 0.5
	DefaultRelaxIterations = 30
)

// Merger strategy names.
const (
	MergerMatching       = "matching"
	MergerIndependentSet = "mis"
)

// Incremental step modes.
const (
	ModePinning = "pinning" // graded pinning weights unlock nodes over the run
	ModeMask    = "mask"    // only nodes touched by the change may move
)

// =============================================================================
// Config
// =============================================================================

// Config is the complete configuration of the layout engine.
type Config struct {
	Force       Force       `json:"force" toml:"force" yaml:"force"`
	Tree        Tree        `json:"tree" toml:"tree" yaml:"tree"`
	Solver      Solver      `json:"solver" toml:"solver" yaml:"solver"`
	Multilevel  Multilevel  `json:"multilevel" toml:"multilevel" yaml:"multilevel"`
	Incremental Incremental `json:"incremental" toml:"incremental" yaml:"incremental"`
	Refine      Refine      `json:"refine" toml:"refine" yaml:"refine"`
}

// Force holds the force model constants.
type Force struct {
	Repulsion  float64 `json:"repulsion" toml:"repulsion" yaml:"repulsion" validate:"gt=0"`       // K_r
	Attraction float64 `json:"attraction" toml:"attraction" yaml:"attraction" validate:"gt=0"`    // K_s
	EdgeLength float64 `json:"edge_length" toml:"edge_length" yaml:"edge_length" validate:"gt=0"` // L
	Strict     bool    `json:"strict,omitempty" toml:"strict" yaml:"strict,omitempty"`
}

// Tree holds the spatial tree parameters.
type Tree struct {
	VerticesThreshold int  `json:"vertices_threshold" toml:"vertices_threshold" yaml:"vertices_threshold" validate:"gte=1"`
	Precision         int  `json:"precision" toml:"precision" yaml:"precision" validate:"gte=1,lte=32"`
	LinearMedian      bool `json:"linear_median,omitempty" toml:"linear_median" yaml:"linear_median,omitempty"`
	Multipole         bool `json:"multipole,omitempty" toml:"multipole" yaml:"multipole,omitempty"`
}

// Solver holds the iteration and cooling parameters.
type Solver struct {
	Iterations               int     `json:"iterations" toml:"iterations" yaml:"iterations" validate:"gte=0"`
	CoolingFactor            float64 `json:"cooling_factor" toml:"cooling_factor" yaml:"cooling_factor" validate:"gt=0,lte=1"`
	InitialTemperatureFactor float64 `json:"initial_temperature_factor" toml:"initial_temperature_factor" yaml:"initial_temperature_factor" validate:"gt=0"`
	// InitialTemperature overrides the bounding-box derived start when > 0.
	InitialTemperature  float64 `json:"initial_temperature,omitempty" toml:"initial_temperature" yaml:"initial_temperature,omitempty" validate:"gte=0"`
	RebuildWarmup       int     `json:"rebuild_warmup" toml:"rebuild_warmup" yaml:"rebuild_warmup" validate:"gte=0"`
	RebuildEvery        int     `json:"rebuild_every" toml:"rebuild_every" yaml:"rebuild_every" validate:"gte=1"`
	ConstantTemperature bool    `json:"constant_temperature,omitempty" toml:"constant_temperature" yaml:"constant_temperature,omitempty"`
	AdaptiveCooling     bool    `json:"adaptive_cooling,omitempty" toml:"adaptive_cooling" yaml:"adaptive_cooling,omitempty"`
	EarlyExit           bool    `json:"early_exit,omitempty" toml:"early_exit" yaml:"early_exit,omitempty"`
	EarlyExitScale      float64 `json:"early_exit_scale" toml:"early_exit_scale" yaml:"early_exit_scale" validate:"gt=0"`
	Workers             int     `json:"workers,omitempty" toml:"workers" yaml:"workers,omitempty" validate:"gte=0,lte=256"`
}

// Multilevel holds the coarsening parameters.
type Multilevel struct {
	Threshold          int     `json:"threshold" toml:"threshold" yaml:"threshold" validate:"gte=1"`
	CoarsestIterations int     `json:"coarsest_iterations" toml:"coarsest_iterations" yaml:"coarsest_iterations" validate:"gte=0"`
	FinestIterations   int     `json:"finest_iterations" toml:"finest_iterations" yaml:"finest_iterations" validate:"gte=0"`
	Merger             string  `json:"merger" toml:"merger" yaml:"merger" validate:"oneof=matching mis"`
	Perturbation       float64 `json:"perturbation" toml:"perturbation" yaml:"perturbation" validate:"gt=0"`
}

// Incremental holds the pinning-weight parameters.
type Incremental struct {
	Mode string `json:"mode" toml:"mode" yaml:"mode" validate:"oneof=pinning mask"`

	// Multilevel solves mask-mode steps through the coarsener.
	Multilevel        bool    `json:"multilevel,omitempty" toml:"multilevel" yaml:"multilevel,omitempty"`
	NeighborInfluence float64 `json:"neighbor_influence" toml:"neighbor_influence" yaml:"neighbor_influence" validate:"gte=0,lte=1"`
	PinningInit       float64 `json:"pinning_init" toml:"pinning_init" yaml:"pinning_init" validate:"gt=0,lte=1"`
	RingFraction      float64 `json:"ring_fraction" toml:"ring_fraction" yaml:"ring_fraction" validate:"gte=0,lte=1"` // K
	// DesiredDistance places single-anchor new nodes; 0 means the edge length.
	DesiredDistance float64 `json:"desired_distance,omitempty" toml:"desired_distance" yaml:"desired_distance,omitempty" validate:"gte=0"`
}

// Refine holds the energy refinement parameters.
type Refine struct {
	Threshold  float64 `json:"threshold" toml:"threshold" yaml:"threshold" validate:"gt=0"`
	Iterations int     `json:"iterations" toml:"iterations" yaml:"iterations" validate:"gte=0"`
	// Temperature of the relax pass; 0 means twice the edge length.
	Temperature float64 `json:"temperature,omitempty" toml:"temperature" yaml:"temperature,omitempty" validate:"gte=0"`
}

// Default returns the reference configuration.
func Default() Config {
	return Config{
		Force: Force{
			Repulsion:  DefaultRepulsion,
			Attraction: DefaultAttraction,
			EdgeLength: DefaultEdgeLength,
		},
		Tree: Tree{
			VerticesThreshold: DefaultVerticesThreshold,
			Precision:         DefaultPrecision,
		},
		Solver: Solver{
			Iterations:               DefaultIterations,
			CoolingFactor:            DefaultCoolingFactor,
			InitialTemperatureFactor: DefaultInitialTemperatureFactor,
			RebuildWarmup:            DefaultRebuildWarmup,
			RebuildEvery:             DefaultRebuildEvery,
			EarlyExitScale:           DefaultEarlyExitScale,
		},
		Multilevel: Multilevel{
			Threshold:          DefaultCoarseningThreshold,
			CoarsestIterations: DefaultCoarsestIterations,
			FinestIterations:   DefaultFinestIterations,
			Merger:             MergerMatching,
			Perturbation:       DefaultPerturbation,
		},
		Incremental: Incremental{
			Mode:              ModePinning,
			NeighborInfluence: DefaultNeighborInfluence,
			PinningInit:       DefaultPinningInit,
			RingFraction:      DefaultRingFraction,
		},
		Refine: Refine{
			Threshold:  DefaultEnergyThreshold,
			Iterations: DefaultRelaxIterations,
		},
	}
}

// DesiredDistance returns the placement distance for new nodes.
func (c Config) DesiredDistance() float64 {
	if c.Incremental.DesiredDistance > 0 {
		return c.Incremental.DesiredDistance
	}
	return c.Force.EdgeLength
}

// RelaxTemperature returns the starting temperature of the relax pass.
func (c Config) RelaxTemperature() float64 {
	if c.Refine.Temperature > 0 {
		return c.Refine.Temperature
	}
	return 2 * c.Force.EdgeLength
}

// =============================================================================
// Validation
// =============================================================================

// validate is a singleton validator instance.
var validate = validator.New()

// Validate checks every field constraint and reports the first violation as
// an INVALID_CONFIGURATION error.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationError(err)
	}
	if c.Multilevel.FinestIterations > c.Multilevel.CoarsestIterations {
		return errors.New(errors.ErrCodeInvalidConfiguration,
			"multilevel.finest_iterations (%d) exceeds coarsest_iterations (%d)",
			c.Multilevel.FinestIterations, c.Multilevel.CoarsestIterations)
	}
	return nil
}

func formatValidationError(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, err, "validate")
	}

	for _, e := range validationErrs {
		field := strings.TrimPrefix(e.Namespace(), "Config.")
		switch e.Tag() {
		case "gt":
			return errors.New(errors.ErrCodeInvalidConfiguration, "%s: must be greater than %s, got %v", field, e.Param(), e.Value())
		case "gte":
			return errors.New(errors.ErrCodeInvalidConfiguration, "%s: must be at least %s, got %v", field, e.Param(), e.Value())
		case "lte":
			return errors.New(errors.ErrCodeInvalidConfiguration, "%s: must not exceed %s, got %v", field, e.Param(), e.Value())
		case "oneof":
			return errors.New(errors.ErrCodeInvalidConfiguration, "%s: must be one of [%s], got %q", field, e.Param(), e.Value())
		default:
			return errors.New(errors.ErrCodeInvalidConfiguration, "%s: validation failed (%s)", field, e.Tag())
		}
	}
	return nil
}

// =============================================================================
// File Loading
// =============================================================================

// Load reads a configuration file on top of [Default] and validates it.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data in the format named by ext (".toml", ".yaml", ".yml"
// or ".json") on top of [Default] and validates the result.
func Parse(data []byte, ext string) (Config, error) {
	cfg := Default()
	var err error
	switch strings.ToLower(ext) {
	case ".toml":
		_, err = toml.Decode(string(data), &cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return Config{}, errors.New(errors.ErrCodeInvalidFormat, "unsupported config format %q", ext)
	}
	if err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidFormat, err, "decode %s config", strings.TrimPrefix(ext, "."))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
