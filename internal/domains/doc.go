// Package domains holds the physical sub-domains of a cell: the battery
// as a whole, the electrolyte, the two electrodes, and the separator.
//
// Each domain reads its parameters from a config.Section, derives its
// secondary properties in Update, and lays out its slice of the global
// state vector through a mesh.Pointer. Models thread pointer offsets from
// one domain to the next so the slices tile the state exactly once.
package domains
