package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/trisim/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r2"
)

func TestPairwiseForce_Antisymmetric(t *testing.T) {
	tests := []struct {
		name   string
		m1, m2 float64
		d      r2.Vec
	}{
		{"equal masses", 1, 1, r2.Vec{X: 100, Y: 0}},
		{"unequal masses", 2.5, 0.001, r2.Vec{X: -3e5, Y: 4e5}},
		{"diagonal", 1e-6, 1e-3, r2.Vec{X: 1, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a1, a2, err := PairwiseForce(tt.m1, tt.m2, tt.d)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			b2, b1, err := PairwiseForce(tt.m2, tt.m1, r2.Scale(-1, tt.d))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// force = mass * acceleration; forces are equal and opposite
			f1 := r2.Scale(tt.m1, a1)
			f2 := r2.Scale(tt.m2, a2)
			if !closeVec(f1, r2.Scale(-1, f2), 1e-12) {
				t.Errorf("forces not opposite: %v vs %v", f1, f2)
			}
			if !closeVec(a1, b1, 1e-12) || !closeVec(a2, b2, 1e-12) {
				t.Errorf("swapping bodies changed result: %v,%v vs %v,%v", a1, a2, b1, b2)
			}
		})
	}
}

func TestPairwiseForce_Magnitude(t *testing.T) {
	a1, _, err := PairwiseForce(1, 2, r2.Vec{X: 10, Y: 0})
	if err != nil {
		t.Fatal(err)
	}
	want := G * 2 / 100
	if math.Abs(a1.X-want)/want > 1e-14 || a1.Y != 0 {
		t.Errorf("a1 = %v, want (%g, 0)", a1, want)
	}
}

func TestPairwiseForce_Asymptote(t *testing.T) {
	_, _, err := PairwiseForce(1, 1, r2.Vec{})
	if !errors.Is(err, dynamo.ErrAsymptote) {
		t.Errorf("expected ErrAsymptote, got %v", err)
	}

	_, _, err = PairwiseForce(1, 1, r2.Vec{X: 1e-300, Y: 0})
	if !errors.Is(err, dynamo.ErrAsymptote) {
		t.Errorf("expected ErrAsymptote for underflowing separation, got %v", err)
	}
}

func TestThreeBody_DeriveLayout(t *testing.T) {
	tb := NewThreeBody(1, 2, 3)
	x := dynamo.State{
		0, 0, 1, 2,
		100, 0, 3, 4,
		0, 100, 5, 6,
	}

	dx, err := tb.Derive(x, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(dx) != StateDim {
		t.Fatalf("len(dx) = %d, want %d", len(dx), StateDim)
	}

	for i := 0; i < NumBodies; i++ {
		if dx[i*4] != x[i*4+2] || dx[i*4+1] != x[i*4+3] {
			t.Errorf("body %d: position derivative %v,%v != velocity %v,%v",
				i+1, dx[i*4], dx[i*4+1], x[i*4+2], x[i*4+3])
		}
	}

	// body 1 is pulled towards +x by body 2 and +y by body 3
	if dx[2] <= 0 || dx[3] <= 0 {
		t.Errorf("body 1 acceleration (%g, %g) not towards bodies 2 and 3", dx[2], dx[3])
	}

	if x[0] != 0 || x[2] != 1 {
		t.Error("Derive mutated its input")
	}
}

func TestThreeBody_NetForceZero(t *testing.T) {
	tb := NewThreeBody(1.5, 0.3, 2.2)
	x := dynamo.State{
		-120, 40, 10, -3,
		80, -15, -4, 7,
		10, 90, 1, 1,
	}

	acc, err := tb.Accelerations(x)
	if err != nil {
		t.Fatal(err)
	}

	var net r2.Vec
	for i := range acc {
		net = r2.Add(net, r2.Scale(tb.Masses[i], acc[i]))
	}
	scale := tb.Masses[0] * r2.Norm(acc[0])
	if r2.Norm(net) > 1e-12*scale {
		t.Errorf("net internal force %v should vanish", net)
	}
}

func TestThreeBody_Asymptote(t *testing.T) {
	tb := NewThreeBody(1, 1, 1)
	x := dynamo.State{
		5, 5, 0, 0,
		5, 5, 1, 0,
		-5, 0, 0, 0,
	}

	_, err := tb.Derive(x, 0)
	if !errors.Is(err, dynamo.ErrAsymptote) {
		t.Errorf("expected ErrAsymptote, got %v", err)
	}
}

func TestThreeBody_DimensionMismatch(t *testing.T) {
	tb := NewThreeBody(1, 1, 1)
	_, err := tb.Derive(dynamo.State{1, 2, 3}, 0)
	if !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestThreeBody_Invariants(t *testing.T) {
	bodies := [NumBodies]Body{
		{ID: 1, Mass: 1, Position: r2.Vec{X: 100}, Velocity: r2.Vec{Y: 71}},
		{ID: 2, Mass: 1, Position: r2.Vec{X: -100}, Velocity: r2.Vec{Y: -71}},
		{ID: 3, Mass: 1},
	}
	tb := NewThreeBodyFromBodies(bodies)
	x := StateFromBodies(bodies)

	if com := tb.CenterOfMass(x); !closeVec(com, r2.Vec{}, 1e-12) {
		t.Errorf("center of mass = %v, want origin", com)
	}
	if p := tb.Momentum(x); !closeVec(p, r2.Vec{}, 1e-12) {
		t.Errorf("momentum = %v, want zero", p)
	}
	if L := tb.AngularMomentum(x); math.Abs(L-2*100*71) > 1e-9 {
		t.Errorf("angular momentum = %g, want %g", L, 2.0*100*71)
	}
	if e := tb.Energy(x); math.IsInf(e, 0) || e >= 0 {
		t.Errorf("bound system should have negative energy, got %g", e)
	}
}

func TestParticle_OnUpdate(t *testing.T) {
	p := NewParticle(Body{ID: 2, Mass: 3, Color: "#ff0000"})

	var got []Body
	p.OnUpdate(func(b Body) { got = append(got, b) })

	p.Set(r2.Vec{X: 1}, r2.Vec{Y: 2}, r2.Vec{X: 3, Y: 4})

	if len(got) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(got))
	}
	if got[0].ID != 2 || got[0].Mass != 3 || got[0].Color != "#ff0000" {
		t.Errorf("identity not preserved: %+v", got[0])
	}
	if got[0].Acceleration != (r2.Vec{X: 3, Y: 4}) {
		t.Errorf("acceleration = %v", got[0].Acceleration)
	}
	if p.Snapshot() != got[0] {
		t.Error("snapshot differs from notified body")
	}
}

func closeVec(a, b r2.Vec, tol float64) bool {
	scale := math.Max(1, math.Max(r2.Norm(a), r2.Norm(b)))
	return r2.Norm(r2.Sub(a, b)) <= tol*scale
}
