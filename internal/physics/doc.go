// Package physics provides the planar three-body model.
//
// The model is split into three layers:
//
//   - [PairwiseForce]: Newtonian attraction between two point masses
//   - [ThreeBody]: the 12-dimensional ODE implementing [dynamo.System]
//   - [Particle]: an observable view of one body, refreshed by the driver
//
// State vectors use the layout [x1, y1, vx1, vy1, x2, ..., vy3]: the block
// 4i..4i+3 always belongs to the body with id i+1.
//
// Units are km, s and solar masses; [G] is expressed in
// km³·M☉⁻¹·s⁻².
package physics
