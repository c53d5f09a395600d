// Package dynamo provides the core primitives shared by the battery models
// and the implicit integrator.
//
// The package defines the fundamental types for simulating lithium-ion
// cells as differential-algebraic systems F(t, y, ẏ) = 0:
//
//   - [State]: flat vector holding every unknown of a cell model
//   - [F] and [R]: Faraday and gas constants in kmol units
//   - [SimulationError]: an integrator failure with step context
//
// # Units
//
// Concentrations are kmol/m3, lengths m, currents A, potentials V, and
// temperatures K. The constants are scaled accordingly, so F is in C/kmol
// and R in J/kmol/K.
//
// # Thread Safety
//
// States are plain slices. Nothing in this package holds shared mutable
// state, but a model built on top of it is NOT safe to step from more than
// one goroutine at a time.
package dynamo
