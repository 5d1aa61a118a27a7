// Package viz renders a running three-body simulation in the terminal.
//
// [Model] is a Bubble Tea program that owns a [sim.Driver]: every tick
// message advances the driver once and redraws the bodies on a Braille
// [Canvas] next to a panel of positions, velocities and accelerations
// formatted with the run's number format.
//
// # Key Bindings
//
//	Space/P - Pause/Resume simulation
//	T       - Toggle trails
//	C       - Toggle center of gravity marker
//	F       - Cycle number format
//	S       - Save current state as a template
//	Esc     - Dismiss message
//	Q       - Stop and quit
package viz
