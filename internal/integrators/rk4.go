package integrators

import (
	"math"

	"github.com/san-kum/trisim/internal/dynamo"
)

// RK4 is a classic fixed-step Runge-Kutta integrator. Integrate splits the
// interval into equal sub-steps no longer than Dt.
type RK4 struct {
	Dt float64

	k1, k2, k3, k4 dynamo.State
	scratch        dynamo.State
}

func NewRK4(dt float64) *RK4 {
	return &RK4{Dt: dt}
}

func (r *RK4) ensureScratch(n int) {
	if len(r.k1) != n {
		r.k1 = make(dynamo.State, n)
		r.k2 = make(dynamo.State, n)
		r.k3 = make(dynamo.State, n)
		r.k4 = make(dynamo.State, n)
		r.scratch = make(dynamo.State, n)
	}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, t, dt float64) (dynamo.State, error) {
	n := len(x)
	r.ensureScratch(n)

	k1, err := dyn.Derive(x, t)
	if err != nil {
		return nil, wrap(t, x, err)
	}
	copy(r.k1, k1)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k1[i]
	}
	k2, err := dyn.Derive(r.scratch, t+dt*0.5)
	if err != nil {
		return nil, wrap(t, x, err)
	}
	copy(r.k2, k2)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*0.5*r.k2[i]
	}
	k3, err := dyn.Derive(r.scratch, t+dt*0.5)
	if err != nil {
		return nil, wrap(t, x, err)
	}
	copy(r.k3, k3)

	for i := 0; i < n; i++ {
		r.scratch[i] = x[i] + dt*r.k3[i]
	}
	k4, err := dyn.Derive(r.scratch, t+dt)
	if err != nil {
		return nil, wrap(t, x, err)
	}
	copy(r.k4, k4)

	result := make(dynamo.State, n)
	dt6 := dt / 6.0
	for i := 0; i < n; i++ {
		result[i] = x[i] + dt6*(r.k1[i]+2*r.k2[i]+2*r.k3[i]+r.k4[i])
	}

	if !result.IsValid() {
		return nil, wrap(t+dt, x, dynamo.ErrOverflow)
	}
	return result, nil
}

func (r *RK4) Integrate(dyn dynamo.System, x dynamo.State, t0, t1 float64) (dynamo.State, float64, error) {
	if t1 <= t0 {
		return x.Clone(), t0, nil
	}

	steps := 1
	if r.Dt > 0 {
		steps = int(math.Ceil((t1 - t0) / r.Dt))
	}
	h := (t1 - t0) / float64(steps)

	cur := x.Clone()
	t := t0
	for i := 0; i < steps; i++ {
		next, err := r.Step(dyn, cur, t, h)
		if err != nil {
			return cur, t, err
		}
		cur = next
		t = t0 + float64(i+1)*h
	}
	return cur, t1, nil
}
