package integrators

import (
	"testing"

	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/physics"
)

func BenchmarkRK4(b *testing.B) {
	integrator := NewRK4(0.01)
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _ = integrator.Step(dyn, x, 0, 0.01)
	}
}

func BenchmarkRK45(b *testing.B) {
	integrator := NewRK45()
	dyn := &harmonicOscillator{}
	x := dynamo.State{1.0, 0.0}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		x, _ = integrator.Step(dyn, x, 0, 0.01)
	}
}

func BenchmarkRK45_ThreeBody(b *testing.B) {
	integrator := NewRK45()
	dyn, x0 := lineConfiguration()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		integrator.Reset()
		if _, _, err := integrator.Integrate(dyn, x0, 0, 1); err != nil {
			b.Fatal(err)
		}
	}
}

var _ dynamo.Integrator = (*RK45)(nil)
var _ dynamo.Integrator = (*RK4)(nil)
var _ dynamo.Stepper = (*RK45)(nil)
var _ dynamo.System = (*physics.ThreeBody)(nil)
