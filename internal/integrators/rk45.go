package integrators

import (
	"fmt"
	"math"

	"github.com/san-kum/trisim/internal/dynamo"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

const (
	DefaultAbsTol   = 1e-6
	DefaultRelTol   = 1e-9
	DefaultMinStep  = 1e-9
	DefaultMaxEvals = 1_000_000
)

// RK45 is an adaptive Dormand-Prince 5(4) integrator with absolute and
// relative tolerance control. The step size proposed at the end of one
// Integrate call is reused by the next one.
type RK45 struct {
	AbsTol   float64
	RelTol   float64
	MinStep  float64
	MaxStep  float64 // 0 means unbounded
	MaxEvals int     // derivative evaluations allowed per Integrate call

	safety   float64
	minScale float64
	maxScale float64
	h        float64
}

func NewRK45() *RK45 {
	return &RK45{
		AbsTol:   DefaultAbsTol,
		RelTol:   DefaultRelTol,
		MinStep:  DefaultMinStep,
		MaxEvals: DefaultMaxEvals,
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

// Reset discards the remembered step size.
func (r *RK45) Reset() { r.h = 0 }

// Step takes one unchecked 5th order step of size dt.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	k1, err := dyn.Derive(x, t)
	if err != nil {
		return nil, wrap(t, x, err)
	}
	xNew, _, _, err := r.attempt(dyn, x, k1, t, dt)
	if err != nil {
		return nil, wrap(t, x, err)
	}
	return xNew, nil
}

// Integrate advances x from t0 to t1 taking as many accepted steps as the
// tolerances require. It never steps past t1. On failure the returned
// state and time are those of the last accepted step.
func (r *RK45) Integrate(dyn dynamo.System, x dynamo.State, t0, t1 float64) (dynamo.State, float64, error) {
	if len(x) != dyn.StateDim() {
		return x, t0, fmt.Errorf("%w: got %d, want %d", dynamo.ErrDimensionMismatch, len(x), dyn.StateDim())
	}
	if t1 <= t0 {
		return x.Clone(), t0, nil
	}

	cur := x.Clone()
	t := t0

	k1, err := dyn.Derive(cur, t)
	if err != nil {
		return cur, t, wrap(t, cur, err)
	}
	evals := 1

	h := r.h
	if h <= 0 {
		h, err = r.initialStep(dyn, cur, k1, t)
		if err != nil {
			return cur, t, wrap(t, cur, err)
		}
		evals++
	}

	for t < t1 {
		if r.MaxStep > 0 && h > r.MaxStep {
			h = r.MaxStep
		}
		proposed := h
		last := t+h >= t1
		if last {
			h = t1 - t
		}

		if evals+6 > r.MaxEvals {
			return cur, t, wrap(t, cur, dynamo.ErrMaxEvaluations)
		}
		xNew, k7, errNorm, err := r.attempt(dyn, cur, k1, t, h)
		evals += 6
		if err != nil {
			return cur, t, wrap(t, cur, err)
		}

		if errNorm <= 1 {
			if last {
				t = t1
			} else {
				t += h
			}
			cur = xNew
			k1 = k7

			next := r.grow(errNorm) * h
			if last && next < proposed {
				next = proposed
			}
			h = next
			r.h = h
			continue
		}

		h *= r.shrink(errNorm)
		if h < r.MinStep {
			return cur, t, wrap(t, cur, dynamo.ErrStepTooSmall)
		}
	}

	return cur, t, nil
}

// attempt computes one Dormand-Prince step. k1 is the derivative at x;
// k7 is the derivative at the new state (first same as last). A
// non-finite result is ErrOverflow.
func (r *RK45) attempt(dyn dynamo.System, x, k1 dynamo.State, t, dt float64) (xNew, k7 dynamo.State, errNorm float64, err error) {
	n := len(x)
	tmp := make(dynamo.State, n)

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*b21*k1[i]
	}
	k2, err := dyn.Derive(tmp, t+a2*dt)
	if err != nil {
		return nil, nil, 0, err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b31*k1[i]+b32*k2[i])
	}
	k3, err := dyn.Derive(tmp, t+a3*dt)
	if err != nil {
		return nil, nil, 0, err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b41*k1[i]+b42*k2[i]+b43*k3[i])
	}
	k4, err := dyn.Derive(tmp, t+a4*dt)
	if err != nil {
		return nil, nil, 0, err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b51*k1[i]+b52*k2[i]+b53*k3[i]+b54*k4[i])
	}
	k5, err := dyn.Derive(tmp, t+a5*dt)
	if err != nil {
		return nil, nil, 0, err
	}

	for i := 0; i < n; i++ {
		tmp[i] = x[i] + dt*(b61*k1[i]+b62*k2[i]+b63*k3[i]+b64*k4[i]+b65*k5[i])
	}
	k6, err := dyn.Derive(tmp, t+dt)
	if err != nil {
		return nil, nil, 0, err
	}

	xNew = make(dynamo.State, n)
	for i := 0; i < n; i++ {
		xNew[i] = x[i] + dt*(c1*k1[i]+c3*k3[i]+c4*k4[i]+c5*k5[i]+c6*k6[i])
	}
	if !xNew.IsValid() {
		return nil, nil, 0, dynamo.ErrOverflow
	}

	k7, err = dyn.Derive(xNew, t+dt)
	if err != nil {
		return nil, nil, 0, err
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		errEst := dt * (dc1*k1[i] + dc3*k3[i] + dc4*k4[i] + dc5*k5[i] + dc6*k6[i] + dc7*k7[i])
		sc := r.AbsTol + r.RelTol*math.Max(math.Abs(x[i]), math.Abs(xNew[i]))
		e := errEst / sc
		sum += e * e
	}
	errNorm = math.Sqrt(sum / float64(n))
	if math.IsNaN(errNorm) {
		errNorm = math.Inf(1)
	}

	return xNew, k7, errNorm, nil
}

func (r *RK45) grow(errNorm float64) float64 {
	if errNorm == 0 {
		return r.maxScale
	}
	return math.Min(r.maxScale, math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2)))
}

func (r *RK45) shrink(errNorm float64) float64 {
	return math.Min(1, math.Max(r.minScale, r.safety*math.Pow(errNorm, -0.2)))
}

// initialStep estimates a starting step from the scale of the state and
// its derivatives (Hairer, Nørsett & Wanner, II.4).
func (r *RK45) initialStep(dyn dynamo.System, x, f0 dynamo.State, t float64) (float64, error) {
	n := len(x)
	sc := make([]float64, n)
	for i := range x {
		sc[i] = r.AbsTol + r.RelTol*math.Abs(x[i])
	}

	d0 := scaledNorm(x, sc)
	d1 := scaledNorm(f0, sc)

	h0 := 1e-6
	if d0 >= 1e-5 && d1 >= 1e-5 {
		h0 = 0.01 * d0 / d1
	}

	x1 := make(dynamo.State, n)
	for i := range x {
		x1[i] = x[i] + h0*f0[i]
	}
	f1, err := dyn.Derive(x1, t+h0)
	if err != nil {
		return 0, err
	}

	diff := make([]float64, n)
	for i := range diff {
		diff[i] = f1[i] - f0[i]
	}
	d2 := scaledNorm(diff, sc) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 0.2)
	}

	h := math.Min(100*h0, h1)
	if math.IsNaN(h) || h <= 0 {
		h = h0
	}
	if h < r.MinStep {
		h = r.MinStep
	}
	return h, nil
}

func scaledNorm(v []float64, sc []float64) float64 {
	sum := 0.0
	for i := range v {
		e := v[i] / sc[i]
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(v)))
}

func wrap(t float64, x dynamo.State, err error) error {
	return &dynamo.SimulationError{Time: t, State: x.Clone(), Wrapped: err}
}
