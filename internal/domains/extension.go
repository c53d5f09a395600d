package domains

import (
	"fmt"
	"math"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
	"github.com/san-kum/batsim/internal/materials"
)

// Extension adds one differential state per electrode cell on top of the
// base layout.
type Extension interface {
	// Name is the pointer variable the extension owns.
	Name() string
	// Attach validates the extension against its electrode.
	Attach(ed *Electrode) error
	InitialValue() float64
	// VoltageShift is added to the equilibrium potential.
	VoltageShift(xSurf, state float64) float64
	// Residual fills res at idx, one row per cell.
	Residual(res, y, yp []float64, idx []int, sdot []float64, bat *Battery)
}

var extensions = map[string]func(config.Section) (Extension, error){
	"hysteresis": func(s config.Section) (Extension, error) { return NewHysteresis(s) },
}

func NewExtension(name string, s config.Section) (Extension, error) {
	fn, ok := extensions[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown extension: %s", dynamo.ErrConfig, name)
	}
	return fn(s)
}

// Hysteresis tracks a unitless state h in [-1, 1] that relaxes toward the
// sign of the reaction rate:
//
//	dh/dt = |sdot*F*g / (3600*cap)| * (sign(sdot) - h)
//
// The equilibrium potential is shifted by Mhyst(x_surf)*h.
type Hysteresis struct {
	GHyst float64
	Hyst0 float64

	mhyst materials.Hysteretic
}

func NewHysteresis(s config.Section) (*Hysteresis, error) {
	var (
		h   Hysteresis
		err error
	)
	if h.GHyst, err = s.Float("g_hyst"); err != nil {
		return nil, err
	}
	if h.Hyst0, err = s.Float("hyst0"); err != nil {
		return nil, err
	}
	if h.Hyst0 < -1 || h.Hyst0 > 1 {
		return nil, fmt.Errorf("%w: hyst0 must be in [-1, 1]", dynamo.ErrConfig)
	}
	return &h, nil
}

func (h *Hysteresis) Name() string { return "hyst" }

func (h *Hysteresis) Attach(ed *Electrode) error {
	m, ok := ed.MaterialModel().(materials.Hysteretic)
	if !ok {
		return fmt.Errorf("%w: %s material %s has no hysteresis magnitude", dynamo.ErrConfig, ed.Name, ed.Material)
	}
	h.mhyst = m
	return nil
}

func (h *Hysteresis) InitialValue() float64 { return h.Hyst0 }

func (h *Hysteresis) VoltageShift(xSurf, state float64) float64 {
	return h.mhyst.Mhyst(xSurf) * state
}

func (h *Hysteresis) Residual(res, y, yp []float64, idx []int, sdot []float64, bat *Battery) {
	for i, k := range idx {
		rate := math.Abs(sdot[i] * dynamo.F * h.GHyst / 3600 / bat.Cap)
		res[k] = yp[k] - rate*(dynamo.Sign(sdot[i])-y[k])
	}
}
