package dynamo

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	if len(s) == 0 {
		return 0
	}
	return floats.Norm(s, 2)
}

// Sub returns s - other. Both vectors must have the same length.
func (s State) Sub(other State) State {
	result := s.Clone()
	floats.Sub(result, other)
	return result
}

// System is an ODE dX/dt = f(X, t). Derive must not retain or mutate x.
type System interface {
	Derive(x State, t float64) (State, error)
	StateDim() int
}

// Integrator advances x from t0 towards t1 and returns the new state and
// the time actually reached. It never advances past t1.
type Integrator interface {
	Integrate(sys System, x State, t0, t1 float64) (State, float64, error)
}

// Stepper takes a single unchecked step of size dt.
type Stepper interface {
	Step(sys System, x State, t, dt float64) (State, error)
}
