// Package viz renders cycle solutions for the terminal and for files.
//
//   - [Plot] and [PlotSeries]: asciigraph line charts of one observable
//   - [SavePNG]: gonum/plot charts of observables against time
//   - [Summary]: a lipgloss table of step outcomes and metrics
//
// Colors come from the current [Theme].
package viz
