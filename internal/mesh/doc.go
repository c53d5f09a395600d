// Package mesh builds the uniform finite-volume grids and the pointer
// tables that map named physical quantities onto a flat state vector.
//
// A [Mesh] holds minus-face, plus-face, and center coordinates for every
// control volume along one axis. A [Pointer] records, for one domain, the
// base offset of every variable plus the strides between axial cells and
// radial shells, so index arrays can be produced for x, r, or x×r
// variables. Domains are concatenated by shifting each pointer table by
// the running size of the domains placed before it.
package mesh
