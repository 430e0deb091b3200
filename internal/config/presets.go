package config

import "sort"

// Presets adjust the default configuration for common geometries.
var Presets = map[string]func(*Config){
	"vertical": func(c *Config) {
		c.Zenith = 0
	},
	"inclined": func(c *Config) {
		c.Zenith = 60
		c.Output.Depths = []float64{500, 1000, 1500}
	},
	"horizontal": func(c *Config) {
		c.Zenith = 90
		c.Output.Fluxes = []string{"total_mu+", "total_mu-", "total_numu", "total_antinumu"}
	},
	"prompt": func(c *Config) {
		c.Zenith = 0
		c.Observers = []string{"D+", "D-", "Ds+", "Ds-"}
		c.Output.Fluxes = []string{"pr_numu", "pr_antinumu", "pr_mu+", "pr_mu-", "obs_numu", "conv_numu"}
	},
}

// GetPreset returns a fresh default configuration with the preset
// applied, or nil for an unknown name.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
