package sim

import (
	"github.com/san-kum/batsim/internal/domains"
	"github.com/san-kum/batsim/internal/integrators"
)

// Model is an electrochemical cell model assembled into one flat DAE.
type Model interface {
	Name() string

	// Pre rebuilds meshes, pointers, the rest state and the bandwidth.
	// It must not run while a step is in flight.
	Pre() error

	Size() int
	// InitialState returns copies of the rested y and yp.
	InitialState() (y, yp []float64)
	AlgebraicIndices() []int
	Bandwidth() (lband, uband int)
	Battery() *domains.Battery

	// Bind resolves the boundary condition of step once and returns the
	// residual for it. Every evaluation publishes step.Observables.
	Bind(step *Step) (integrators.ResidualFunc, error)
}

// Profiles are post-processed internal quantities at one time. Current
// densities [A/m2] are positive in the +x direction.
type Profiles struct {
	SdotAn []float64 // [kmol/m2/s]
	SdotCa []float64

	// DivI is the divergence of the total current per region [A/m3].
	DivI map[string][]float64

	// SumIp is the solid plus liquid current at every plus face.
	SumIp []float64
	// IEl is the liquid current at every face of the electrolyte mesh.
	IEl []float64

	// FaradaicAn and FaradaicCa are the integrated reaction currents of
	// each electrode [A].
	FaradaicAn float64
	FaradaicCa float64
}

// Poster is implemented by models that can report internal profiles.
type Poster interface {
	Post(step *Step, t float64, y, yp []float64) (*Profiles, error)
}

type Metric interface {
	Name() string
	Observe(obs Observables)
	Value() float64
	Reset()
}

type Observer interface {
	OnSample(step int, obs Observables)
}

// Status is the lifecycle of a step.
type Status int

const (
	Pending Status = iota
	Integrating
	Completed
	TerminatedOnEvent
	Failed
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Integrating:
		return "INTEGRATING"
	case Completed:
		return "COMPLETED"
	case TerminatedOnEvent:
		return "TERMINATED_ON_EVENT"
	case Failed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// Done reports whether the step produced a state to commit.
func (s Status) Done() bool { return s == Completed || s == TerminatedOnEvent }
