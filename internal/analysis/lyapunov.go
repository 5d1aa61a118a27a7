package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/trisim/internal/dynamo"
)

// LyapunovExponent estimates the largest Lyapunov exponent using the
// trajectory separation method. A positive value indicates chaos.
//
// Algorithm:
// 1. Run two trajectories, the second displaced by perturbation in x[0]
// 2. After every interval measure their separation and rescale it to d0
// 3. λ ≈ Σ ln(|δx|/d0) / (n · interval)
//
// newIntegrator is called once per trajectory so adaptive integrators do
// not share step-size state.
func LyapunovExponent(
	sys dynamo.System,
	newIntegrator func() dynamo.Integrator,
	x0 dynamo.State,
	interval, duration float64,
	perturbation float64,
) (float64, error) {
	if len(x0) == 0 || perturbation <= 0 || interval <= 0 || duration < interval {
		return 0, fmt.Errorf("%w: lyapunov needs a state, perturbation > 0 and 0 < interval <= duration", dynamo.ErrInput)
	}

	integ, integP := newIntegrator(), newIntegrator()

	x := x0.Clone()
	xp := x0.Clone()
	xp[0] += perturbation
	d0 := perturbation

	t := 0.0
	sumLog := 0.0
	count := 0

	for t+interval <= duration*(1+1e-12) {
		var err error
		x, _, err = integ.Integrate(sys, x, t, t+interval)
		if err != nil {
			return 0, err
		}
		xp, _, err = integP.Integrate(sys, xp, t, t+interval)
		if err != nil {
			return 0, err
		}
		t += interval

		sep := xp.Sub(x).Norm()
		if sep == 0 || math.IsInf(sep, 0) || math.IsNaN(sep) {
			return 0, fmt.Errorf("%w: separation %g at t=%g", dynamo.ErrOverflow, sep, t)
		}
		sumLog += math.Log(sep / d0)
		count++

		// renormalize
		scale := d0 / sep
		for i := range xp {
			xp[i] = x[i] + (xp[i]-x[i])*scale
		}
	}

	if count == 0 {
		return 0, nil
	}
	return sumLog / (float64(count) * interval), nil
}
