package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/trisim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// NumBodies is fixed: a run always has exactly three particles.
const NumBodies = 3

// StateDim is 3 particles × 2 dims × 2 derivatives.
const StateDim = NumBodies * 4

// pairs are the unordered body pairs {1,2}, {1,3}, {2,3} by index.
var pairs = [3][2]int{{0, 1}, {0, 2}, {1, 2}}

// ThreeBody implements a planar gravitational three-body problem.
// State: [x1, y1, vx1, vy1, x2, y2, vx2, vy2, x3, y3, vx3, vy3]
type ThreeBody struct {
	Masses [NumBodies]float64
}

func NewThreeBody(m1, m2, m3 float64) *ThreeBody {
	return &ThreeBody{Masses: [NumBodies]float64{m1, m2, m3}}
}

// NewThreeBodyFromBodies takes the masses of bodies ordered by id.
func NewThreeBodyFromBodies(bodies [NumBodies]Body) *ThreeBody {
	return NewThreeBody(bodies[0].Mass, bodies[1].Mass, bodies[2].Mass)
}

func (tb *ThreeBody) StateDim() int { return StateDim }

func (tb *ThreeBody) Derive(x dynamo.State, _ float64) (dynamo.State, error) {
	if len(x) != StateDim {
		return nil, fmt.Errorf("%w: got %d, want %d", dynamo.ErrDimensionMismatch, len(x), StateDim)
	}

	acc, err := tb.Accelerations(x)
	if err != nil {
		return nil, err
	}

	dx := make(dynamo.State, StateDim)
	for i := 0; i < NumBodies; i++ {
		dx[i*4] = x[i*4+2]
		dx[i*4+1] = x[i*4+3]
		dx[i*4+2] = acc[i].X
		dx[i*4+3] = acc[i].Y
	}
	return dx, nil
}

// Accelerations sums the pairwise contributions acting on each body.
func (tb *ThreeBody) Accelerations(x dynamo.State) ([NumBodies]r2.Vec, error) {
	var acc [NumBodies]r2.Vec
	for _, p := range pairs {
		i, j := p[0], p[1]
		d := r2.Sub(position(x, j), position(x, i))

		ai, aj, err := PairwiseForce(tb.Masses[i], tb.Masses[j], d)
		if err != nil {
			return acc, fmt.Errorf("bodies %d and %d: %w", i+1, j+1, err)
		}
		acc[i] = r2.Add(acc[i], ai)
		acc[j] = r2.Add(acc[j], aj)
	}
	return acc, nil
}

// Energy returns kinetic plus potential energy. Coincident bodies give -Inf.
func (tb *ThreeBody) Energy(x dynamo.State) float64 {
	ke := 0.0
	for i := 0; i < NumBodies; i++ {
		v := velocity(x, i)
		ke += 0.5 * tb.Masses[i] * r2.Norm2(v)
	}

	pe := 0.0
	for _, p := range pairs {
		i, j := p[0], p[1]
		r := r2.Norm(r2.Sub(position(x, j), position(x, i)))
		if r == 0 {
			return math.Inf(-1)
		}
		pe -= G * tb.Masses[i] * tb.Masses[j] / r
	}

	return ke + pe
}

func (tb *ThreeBody) Momentum(x dynamo.State) r2.Vec {
	var p r2.Vec
	for i := 0; i < NumBodies; i++ {
		p = r2.Add(p, r2.Scale(tb.Masses[i], velocity(x, i)))
	}
	return p
}

func (tb *ThreeBody) AngularMomentum(x dynamo.State) float64 {
	L := 0.0
	for i := 0; i < NumBodies; i++ {
		r, v := position(x, i), velocity(x, i)
		L += tb.Masses[i] * (r.X*v.Y - r.Y*v.X)
	}
	return L
}

func (tb *ThreeBody) TotalMass() float64 {
	return tb.Masses[0] + tb.Masses[1] + tb.Masses[2]
}

func (tb *ThreeBody) CenterOfMass(x dynamo.State) r2.Vec {
	var c r2.Vec
	for i := 0; i < NumBodies; i++ {
		c = r2.Add(c, r2.Scale(tb.Masses[i], position(x, i)))
	}
	return r2.Scale(1/tb.TotalMass(), c)
}

func (tb *ThreeBody) CenterOfMassVelocity(x dynamo.State) r2.Vec {
	return r2.Scale(1/tb.TotalMass(), tb.Momentum(x))
}

// StateFromBodies builds the integration vector from bodies ordered by id.
func StateFromBodies(bodies [NumBodies]Body) dynamo.State {
	x := make(dynamo.State, StateDim)
	for i, b := range bodies {
		x[i*4] = b.Position.X
		x[i*4+1] = b.Position.Y
		x[i*4+2] = b.Velocity.X
		x[i*4+3] = b.Velocity.Y
	}
	return x
}

func position(x dynamo.State, i int) r2.Vec {
	return r2.Vec{X: x[i*4], Y: x[i*4+1]}
}

func velocity(x dynamo.State, i int) r2.Vec {
	return r2.Vec{X: x[i*4+2], Y: x[i*4+3]}
}

// Kinematics splits body i out of the state vector.
func Kinematics(x dynamo.State, i int) (pos, vel r2.Vec) {
	return position(x, i), velocity(x, i)
}
