package config

import "sort"

// Presets are ready-made runs. Masses are in solar masses, distances in
// km and times in seconds.
var Presets = map[string]RunConfig{
	// three equal masses on a line, the outer pair circling the middle one
	"line": {
		Speed: 1, NumberFormat: "0.00E0",
		Bodies: []BodyConfig{
			{ID: 1, Mass: 3e-6, X: 100, VY: 71, Color: "#ff5f87", Label: "A"},
			{ID: 2, Mass: 3e-6, X: -100, VY: -71, Color: "#5fafff", Label: "B"},
			{ID: 3, Mass: 3e-6, Color: "#ffd75f", Label: "C"},
		},
	},
	// Chenciner-Montgomery choreography scaled to 1e8 km
	"figure8": {
		Speed: 1e6, NumberFormat: "0.00E0",
		Bodies: []BodyConfig{
			{ID: 1, Mass: 1, X: 97000436, Y: -24308753, VX: 16.983635630237142, VY: 15.75093087760877, Color: "#ff5f87", Label: "A"},
			{ID: 2, Mass: 1, X: -97000436, Y: 24308753, VX: 16.983635630237142, VY: 15.75093087760877, Color: "#5fafff", Label: "B"},
			{ID: 3, Mass: 1, VX: -33.967271260474284, VY: -31.50186175521754, Color: "#ffd75f", Label: "C"},
		},
	},
	// sun, earth and moon
	"hierarchical": {
		Speed: 604800, NumberFormat: "0.00000E0",
		Bodies: []BodyConfig{
			{ID: 1, Mass: 1, Color: "#ffd75f", Label: "Sun"},
			{ID: 2, Mass: 3.003e-6, X: 1.496e8, VY: 29.784421214140853, Color: "#5fafff", Label: "Earth"},
			{ID: 3, Mass: 3.69e-8, X: 1.496e8 + 384400, VY: 29.784421214140853 + 1.0182183944703238, Color: "#bcbcbc", Label: "Moon"},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *RunConfig {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	p.Bodies = append([]BodyConfig(nil), p.Bodies...)
	return &p
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
