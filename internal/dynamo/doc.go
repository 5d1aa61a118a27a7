// Package dynamo provides the simulation primitives shared by the
// three-body engine.
//
// The package defines the state vector and the interfaces that connect an
// ODE definition to a numerical integrator:
//
//   - [State]: flat vector of positions and velocities
//   - [System]: interface for ODE systems (dX/dt = f(X, t))
//   - [Integrator]: advances a [State] from t0 to t1
//
// # Errors
//
// Numerical failures are reported with the sentinel errors in this package
// and wrapped in [SimulationError] when the caller needs the time and state
// at which the failure happened. Use [errors.Is] to classify them.
package dynamo
