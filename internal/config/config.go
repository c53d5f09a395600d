package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultModel    = "p2d"
	DefaultPreset   = "graphite_nmc532"
	DefaultDataDir  = "runs"
	DefaultLogLevel = "warning"
	DefaultRTol     = 1e-6
	DefaultATol     = 1e-9
)

// Config holds the CLI-level settings. Cell parameters live in Params and
// are resolved from either a preset or a parameter file.
type Config struct {
	Model    string       `yaml:"model"`
	Preset   string       `yaml:"preset"`
	Params   string       `yaml:"params"`
	DataDir  string       `yaml:"data_dir"`
	LogLevel string       `yaml:"log_level"`
	Solver   SolverConfig `yaml:"solver"`
}

type SolverConfig struct {
	RTol         float64 `yaml:"rtol"`
	ATol         float64 `yaml:"atol"`
	LinearSolver string  `yaml:"linear_solver"`
	MaxStep      float64 `yaml:"max_step"`
	Homotopy     int     `yaml:"homotopy"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:    DefaultModel,
		Preset:   DefaultPreset,
		DataDir:  DefaultDataDir,
		LogLevel: DefaultLogLevel,
		Solver: SolverConfig{
			RTol:         DefaultRTol,
			ATol:         DefaultATol,
			LinearSolver: "band",
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
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

// ResolveParams returns the cell parameters named by the config: the
// parameter file when one is set, otherwise the preset for the model.
func (c *Config) ResolveParams() (Params, error) {
	if c.Params != "" {
		return LoadParams(c.Params)
	}
	return GetPreset(c.Model, c.Preset)
}
