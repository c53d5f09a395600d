package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/batsim/internal/dynamo"
)

var Presets = map[string]map[string]func() Params{
	"p2d": {
		"graphite_nmc532":        graphiteNMC532,
		"graphite_nmc532_coarse": graphiteNMC532Coarse,
		"graphite_nmc532_hyst":   graphiteNMC532Hysteresis,
	},
	"spm": {
		"graphite_nmc532":      graphiteNMC532,
		"graphite_nmc532_hyst": graphiteNMC532Hysteresis,
	},
}

// GetPreset returns a fresh copy of the named preset.
func GetPreset(model, preset string) (Params, error) {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil, fmt.Errorf("%w: no presets for model %q", dynamo.ErrConfig, model)
	}
	build, ok := modelPresets[preset]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q for model %q", dynamo.ErrConfig, preset, model)
	}
	return build(), nil
}

func ListPresets(model string) []string {
	modelPresets, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(modelPresets))
	for name := range modelPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// graphiteNMC532 is a ~1 Ah pouch cell with a graphite anode and an
// NMC532 cathode in a Gen2 electrolyte, starting near full charge.
func graphiteNMC532() Params {
	return Params{
		"battery": {
			"cap":  1.0,
			"temp": 298.15,
			"area": 0.04,
		},
		"electrolyte": {
			"material":  "Gen2Electrolyte",
			"Li_0":      1.2,
			"D_deg":     1.0,
			"t0_deg":    1.0,
			"kappa_deg": 1.0,
			"gamma_deg": 1.0,
		},
		"anode": {
			"material": "GraphiteFast",
			"Nx":       10,
			"Nr":       10,
			"thick":    80e-6,
			"R_s":      5e-6,
			"eps_s":    0.6,
			"eps_el":   0.35,
			"eps_CBD":  0.05,
			"p_sol":    1.5,
			"p_liq":    1.5,
			"alpha_a":  0.5,
			"alpha_c":  0.5,
			"Li_max":   30.0,
			"x_0":      0.8,
			"i0_deg":   1.0,
			"Ds_deg":   1.0,
		},
		"separator": {
			"Nx":     5,
			"thick":  25e-6,
			"eps_el": 0.45,
			"p_liq":  1.5,
		},
		"cathode": {
			"material": "NMC532Fast",
			"Nx":       10,
			"Nr":       10,
			"thick":    70e-6,
			"R_s":      2e-6,
			"eps_s":    0.5,
			"eps_el":   0.45,
			"eps_CBD":  0.05,
			"p_sol":    1.5,
			"p_liq":    1.5,
			"alpha_a":  0.5,
			"alpha_c":  0.5,
			"Li_max":   50.0,
			"x_0":      0.35,
			"i0_deg":   1.0,
			"Ds_deg":   1.0,
		},
	}
}

func graphiteNMC532Coarse() Params {
	p := graphiteNMC532()
	p["anode"]["Nx"] = 4
	p["anode"]["Nr"] = 5
	p["separator"]["Nx"] = 3
	p["cathode"]["Nx"] = 4
	p["cathode"]["Nr"] = 5
	return p
}

func graphiteNMC532Hysteresis() Params {
	p := graphiteNMC532()
	for _, electrode := range []string{"anode", "cathode"} {
		p[electrode]["extensions"] = map[string]any{
			"hysteresis": map[string]any{
				"g_hyst": 100.0,
				"hyst0":  0.0,
			},
		}
	}
	return p
}
