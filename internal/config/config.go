package config

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/cascade/internal/dynamo"
	"github.com/san-kum/cascade/internal/engine"
)

const (
	DefaultInteractionModel = "toy"
	DefaultPrimaryModel     = "HillasGaisser2012"
	DefaultPrimaryTag       = "H3a"
	DefaultAtmosphere       = "CORSIKA"
	DefaultLocation         = "USStd"
	DefaultStorePath        = "runs"
)

type Config struct {
	Tables           string           `yaml:"tables,omitempty"`
	InteractionModel string           `yaml:"interaction_model"`
	Primary          PrimaryConfig    `yaml:"primary"`
	Atmosphere       AtmosphereConfig `yaml:"atmosphere"`
	Zenith           float64          `yaml:"zenith"`
	Observers        []string         `yaml:"observers,omitempty"`
	NoMixing         bool             `yaml:"no_mixing"`
	Solver           SolverConfig     `yaml:"solver"`
	Output           OutputConfig     `yaml:"output"`
	Storage          StorageConfig    `yaml:"storage"`
	Logging          LoggingConfig    `yaml:"logging"`
	Metrics          MetricsConfig    `yaml:"metrics"`
}

type PrimaryConfig struct {
	Model string `yaml:"model"`
	Tag   string `yaml:"tag"`
}

type AtmosphereConfig struct {
	Kind     string `yaml:"kind"`
	Location string `yaml:"location"`
	Season   string `yaml:"season,omitempty"`
}

type SolverConfig struct {
	Integrator   string  `yaml:"integrator"`
	Kernel       string  `yaml:"kernel"`
	Sparse       bool    `yaml:"sparse"`
	StepScale    float64 `yaml:"step_scale"`
	MaxStep      float64 `yaml:"max_step,omitempty"`
	Rtol         float64 `yaml:"rtol"`
	Atol         float64 `yaml:"atol"`
	InitialDepth float64 `yaml:"initial_depth"`
	DXStep       float64 `yaml:"dx_step"`
	MinStep      float64 `yaml:"min_step,omitempty"`
}

type OutputConfig struct {
	// Depths are snapshot slant depths in g/cm².
	Depths []float64 `yaml:"depths,omitempty"`
	Fluxes []string  `yaml:"fluxes"`
	// Mag multiplies every flux by E^mag.
	Mag float64 `yaml:"mag"`
}

type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	// Textfile is a node-exporter textfile written after each solve.
	Textfile string `yaml:"textfile,omitempty"`
}

func DefaultConfig() *Config {
	run := engine.DefaultRunConfig()
	return &Config{
		InteractionModel: DefaultInteractionModel,
		Primary:          PrimaryConfig{Model: DefaultPrimaryModel, Tag: DefaultPrimaryTag},
		Atmosphere:       AtmosphereConfig{Kind: DefaultAtmosphere, Location: DefaultLocation},
		Solver: SolverConfig{
			Integrator:   run.Integrator,
			Kernel:       run.Kernel,
			Sparse:       run.Sparse,
			StepScale:    run.StepScale,
			Rtol:         run.Tolerance.Rel,
			Atol:         run.Tolerance.Abs,
			InitialDepth: run.InitialDepth,
			DXStep:       run.DXStep,
		},
		Output: OutputConfig{
			Fluxes: []string{"total_mu+", "total_mu-", "total_numu", "total_antinumu", "total_nue", "total_antinue"},
			Mag:    3,
		},
		Storage: StorageConfig{Backend: "file", Path: DefaultStorePath},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", dynamo.ErrConfiguration, path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the fields the engine does not see.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"file", "sqlite"}, c.Storage.Backend) {
		return dynamo.Configf("unknown storage backend: %s", c.Storage.Backend)
	}
	if !slices.Contains([]string{"text", "json"}, c.Logging.Format) {
		return dynamo.Configf("unknown log format: %s", c.Logging.Format)
	}
	if len(c.Output.Fluxes) == 0 {
		return dynamo.Configf("no output fluxes")
	}
	return c.RunConfig().Validate()
}

// RunConfig maps the file onto the engine's build input.
func (c *Config) RunConfig() engine.RunConfig {
	run := engine.DefaultRunConfig()
	run.Tables = c.Tables
	run.InteractionModel = c.InteractionModel
	run.PrimaryModel = c.Primary.Model
	run.PrimaryTag = c.Primary.Tag
	run.Atmosphere = engine.AtmosphereConfig{
		Kind:     c.Atmosphere.Kind,
		Location: c.Atmosphere.Location,
		Season:   c.Atmosphere.Season,
	}
	run.ZenithDeg = c.Zenith
	run.Observers = slices.Clone(c.Observers)
	run.NoMixing = c.NoMixing

	run.Integrator = c.Solver.Integrator
	run.Kernel = c.Solver.Kernel
	run.Sparse = c.Solver.Sparse
	run.StepScale = c.Solver.StepScale
	run.MaxStep = c.Solver.MaxStep
	run.Tolerance = dynamo.Tolerance{Rel: c.Solver.Rtol, Abs: c.Solver.Atol}
	run.InitialDepth = c.Solver.InitialDepth
	run.DXStep = c.Solver.DXStep
	run.MinStep = c.Solver.MinStep
	return run
}
