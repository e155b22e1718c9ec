package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/bifurc/internal/continuation"
)

const (
	DefaultDs       = 0.01
	DefaultDsMax    = 0.1
	DefaultMaxSteps = 1000
	DefaultTheta    = 0.5
)

type Config struct {
	Problem   string       `yaml:"problem"`
	Param     float64      `yaml:"param"`
	InitState []float64    `yaml:"init_state"`
	Run       RunConfig    `yaml:"run"`
	Detect    DetectConfig `yaml:"detect"`
}

type RunConfig struct {
	Ds       float64 `yaml:"ds"`
	DsMin    float64 `yaml:"ds_min"`
	DsMax    float64 `yaml:"ds_max"`
	MaxSteps int     `yaml:"max_steps"`
	PMin     float64 `yaml:"p_min"`
	PMax     float64 `yaml:"p_max"`
	Theta    float64 `yaml:"theta"`
	Bothside bool    `yaml:"bothside"`
}

type DetectConfig struct {
	Bifurcations bool    `yaml:"bifurcations"`
	Folds        bool    `yaml:"folds"`
	EventTol     float64 `yaml:"event_tol"`
	NEig         int     `yaml:"n_eig"`
}

func DefaultConfig() *Config {
	return &Config{
		Problem:   "cubic",
		InitState: []float64{0},
		Run: RunConfig{
			Ds:       DefaultDs,
			DsMax:    DefaultDsMax,
			MaxSteps: DefaultMaxSteps,
			PMin:     -2,
			PMax:     2,
			Theta:    DefaultTheta,
			Bothside: true,
		},
		Detect: DetectConfig{
			Bifurcations: true,
			Folds:        true,
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

// Options translates the run section into continuation options. Event
// wiring is left to the caller since it depends on the problem instance.
func (c *Config) Options() continuation.Options {
	return continuation.Options{
		Ds:       c.Run.Ds,
		DsMin:    c.Run.DsMin,
		DsMax:    c.Run.DsMax,
		MaxSteps: c.Run.MaxSteps,
		PMin:     c.Run.PMin,
		PMax:     c.Run.PMax,
		Theta:    c.Run.Theta,
		EventTol: c.Detect.EventTol,
		NEig:     c.Detect.NEig,
	}
}
