package config

var Presets = map[string]map[string]*Config{
	"cubic": {
		"folds": {
			Problem: "cubic", InitState: []float64{-1.5}, Param: -2,
			Run:    RunConfig{Ds: 0.01, DsMax: 0.05, MaxSteps: 2000, PMin: -2, PMax: 2, Theta: 0.5},
			Detect: DetectConfig{Bifurcations: true, Folds: true},
		},
		"coarse": {
			Problem: "cubic", InitState: []float64{-1.5}, Param: -2,
			Run:    RunConfig{Ds: 0.05, DsMax: 0.2, MaxSteps: 500, PMin: -2, PMax: 2, Theta: 0.5},
			Detect: DetectConfig{Folds: true},
		},
	},
	"pitchfork": {
		"trivial": {
			Problem: "pitchfork", InitState: []float64{0}, Param: -1,
			Run:    RunConfig{Ds: 0.01, DsMax: 0.05, MaxSteps: 1000, PMin: -1, PMax: 1, Theta: 0.5},
			Detect: DetectConfig{Bifurcations: true},
		},
	},
	"hopf": {
		"origin": {
			Problem: "hopf", InitState: []float64{0, 0}, Param: -1,
			Run:    RunConfig{Ds: 0.01, DsMax: 0.05, MaxSteps: 1000, PMin: -1, PMax: 1, Theta: 0.5},
			Detect: DetectConfig{Bifurcations: true},
		},
	},
	"bratu": {
		"fold": {
			Problem: "bratu", InitState: make([]float64, 20), Param: 0.1,
			Run:    RunConfig{Ds: 0.02, DsMax: 0.1, MaxSteps: 3000, PMin: 0, PMax: 4, Theta: 0.5},
			Detect: DetectConfig{Folds: true},
		},
	},
}

func GetPreset(problem, preset string) *Config {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	cfg, ok := problemPresets[preset]
	if !ok {
		return nil
	}
	return cfg
}

func ListPresets(problem string) []string {
	problemPresets, ok := Presets[problem]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(problemPresets))
	for name := range problemPresets {
		names = append(names, name)
	}
	return names
}
