// Package materials provides kinetic, transport, and thermodynamic
// properties of electrode active materials and electrolytes.
//
// Properties are looked up by name through NewElectrode and
// NewElectrolyte. Concentrations are in kmol/m3, temperatures in K,
// potentials in V.
package materials
