package dynamo

import (
	"math"
)

// State is a flat vector of model unknowns.
type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Sign returns +1 for x >= 0 and -1 otherwise.
func Sign(x float64) float64 {
	if x >= 0 {
		return 1
	}
	return -1
}
