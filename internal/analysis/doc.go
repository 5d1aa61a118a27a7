// Package analysis characterizes three-body runs beyond what a single
// trajectory shows.
//
// A positive largest Lyapunov exponent indicates chaotic dynamics:
//
//	lambda, err := analysis.LyapunovExponent(sys, newIntegrator, x0, 0.1, 100, 1e-6)
//	if err == nil && lambda > 0 {
//	    // nearby configurations diverge exponentially
//	}
package analysis
