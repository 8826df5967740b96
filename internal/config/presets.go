package config

import "sort"

// Presets are named coefficient overlays.
var Presets = map[string]map[string]float64{
	"coarse": {
		"step_size": 0.2,
		"max_steps": 25000,
	},
	"fine": {
		"step_size": 0.05,
		"max_steps": 100000,
	},
	"stiff": {
		"alpha_c":    0.1,
		"beta_c":     1.0,
		"k_coupling": 0.2,
	},
	"loose": {
		"alpha_syntax":     0.05,
		"alpha_structural": 0.05,
		"alpha_semantic":   0.02,
	},
	"quick": {
		"max_steps": 2000,
	},
}

func GetPreset(name string) map[string]float64 {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	return p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
