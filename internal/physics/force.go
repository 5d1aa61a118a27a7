package physics

import (
	"math"

	"github.com/san-kum/trisim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

// G is the gravitational constant in km³·M☉⁻¹·s⁻².
const G = 132711917360.38

// PairwiseForce returns the accelerations two bodies impart on each other.
// d is the separation pos2 - pos1; a1 acts on body 1 and a2 on body 2.
// Coincident bodies, or a separation small enough to make the result
// non-finite, yield dynamo.ErrAsymptote.
func PairwiseForce(m1, m2 float64, d r2.Vec) (a1, a2 r2.Vec, err error) {
	r2n := d.X*d.X + d.Y*d.Y
	if r2n == 0 {
		return r2.Vec{}, r2.Vec{}, dynamo.ErrAsymptote
	}

	r3Inv := 1.0 / (r2n * math.Sqrt(r2n))
	if math.IsInf(r3Inv, 0) || math.IsNaN(r3Inv) {
		return r2.Vec{}, r2.Vec{}, dynamo.ErrAsymptote
	}

	a1 = r2.Scale(G*m2*r3Inv, d)
	a2 = r2.Scale(-G*m1*r3Inv, d)
	if !finite(a1) || !finite(a2) {
		return r2.Vec{}, r2.Vec{}, dynamo.ErrAsymptote
	}
	return a1, a2, nil
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) && !math.IsNaN(v.Y) && !math.IsInf(v.Y, 0)
}
