package domains

import (
	"fmt"

	"github.com/san-kum/batsim/internal/config"
	"github.com/san-kum/batsim/internal/dynamo"
)

// Battery carries the cell-level parameters.
type Battery struct {
	Cap  float64 // nominal capacity [Ah]
	Temp float64 // temperature [K]
	Area float64 // electrode area [m2]
}

func NewBattery(s config.Section) (*Battery, error) {
	var (
		b   Battery
		err error
	)
	if b.Cap, err = s.Float("cap"); err != nil {
		return nil, err
	}
	if b.Temp, err = s.Float("temp"); err != nil {
		return nil, err
	}
	if b.Area, err = s.Float("area"); err != nil {
		return nil, err
	}
	return &b, b.Update()
}

func (b *Battery) Update() error {
	if b.Cap <= 0 || b.Temp <= 0 || b.Area <= 0 {
		return fmt.Errorf("%w: battery cap, temp, and area must be positive", dynamo.ErrConfig)
	}
	return nil
}
