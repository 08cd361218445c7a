package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration for the optimizer.
type Config struct {
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Devices   DevicesConfig   `yaml:"devices"`
	Carbon    CarbonConfig    `yaml:"carbon"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Solver    SolverConfig    `yaml:"solver"`
	Output    OutputConfig    `yaml:"output"`
}

// SnapshotConfig locates the infrastructure snapshot.
type SnapshotConfig struct {
	// Path to a JSON snapshot file (static source).
	Path string `yaml:"path"`
}

// DevicesConfig locates the device assignment records.
type DevicesConfig struct {
	Path string `yaml:"path"`
}

// CarbonConfig selects where per-cluster carbon intensity comes from.
type CarbonConfig struct {
	// "attribute" reads the snapshot's cluster attributes (default),
	// "static" uses Values, "prometheus" queries URL with Query.
	Source string `yaml:"source"`

	// Static per-cluster intensities, keyed by cluster id.
	Values map[string]float64 `yaml:"values"`

	// Fallback intensity for clusters missing from Values.
	Default float64 `yaml:"default"`

	URL     string        `yaml:"url"`
	Query   string        `yaml:"query"`
	Timeout time.Duration `yaml:"timeout"`
}

// OptimizerConfig holds the assignment model parameters.
type OptimizerConfig struct {
	// Lower bound on total assigned VM-equivalents.
	MinCapacity float64 `yaml:"min_capacity"`

	// Upper bound; 0 = sum of cluster max capacities.
	MaxCapacity float64 `yaml:"max_capacity"`

	// Contention penalty used by the fallback retry.
	ContentionCorr float64 `yaml:"contention_corr"`

	// Number of load scenarios generated by the sweep.
	SweepIterations int `yaml:"sweep_iterations"`

	// Concurrent sweep scenarios; 0 = number of CPUs.
	Parallelism int `yaml:"parallelism"`
}

// SolverConfig selects the MIP backend.
type SolverConfig struct {
	Backend string         `yaml:"backend"`
	Options map[string]any `yaml:"options"`
}

// OutputConfig controls result rendering.
type OutputConfig struct {
	Format string `yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Carbon: CarbonConfig{
			Source:  "attribute",
			Timeout: 30 * time.Second,
		},
		Optimizer: OptimizerConfig{
			ContentionCorr:  2.0,
			SweepIterations: 5,
		},
		Solver: SolverConfig{
			Backend: "glpk",
		},
		Output: OutputConfig{
			Format: "table",
		},
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	if c.Optimizer.MinCapacity < 0 {
		return fmt.Errorf("min_capacity must be non-negative, got %v", c.Optimizer.MinCapacity)
	}
	if c.Optimizer.MaxCapacity < 0 {
		return fmt.Errorf("max_capacity must be non-negative, got %v", c.Optimizer.MaxCapacity)
	}
	if c.Optimizer.MaxCapacity > 0 && c.Optimizer.MinCapacity > c.Optimizer.MaxCapacity {
		return fmt.Errorf("min_capacity %v exceeds max_capacity %v",
			c.Optimizer.MinCapacity, c.Optimizer.MaxCapacity)
	}
	if c.Optimizer.ContentionCorr <= 0 {
		return fmt.Errorf("contention_corr must be positive, got %v", c.Optimizer.ContentionCorr)
	}
	if c.Optimizer.SweepIterations < 2 {
		return fmt.Errorf("sweep_iterations must be at least 2, got %d", c.Optimizer.SweepIterations)
	}
	validSources := map[string]bool{"attribute": true, "static": true, "prometheus": true}
	if !validSources[c.Carbon.Source] {
		return fmt.Errorf("carbon source must be attribute, static, or prometheus, got %q", c.Carbon.Source)
	}
	if c.Carbon.Source == "prometheus" && c.Carbon.URL == "" {
		return fmt.Errorf("carbon source prometheus requires a url")
	}
	validFormats := map[string]bool{"table": true, "json": true}
	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output format must be table or json, got %q", c.Output.Format)
	}
	if c.Solver.Backend == "" {
		return fmt.Errorf("solver backend must not be empty")
	}
	return nil
}
