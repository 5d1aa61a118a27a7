package metrics

import (
	"math"
	"sort"
	"sync"

	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/sim"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"
)

// Metric accumulates one scalar over the frames of a run.
type Metric interface {
	Name() string
	Observe(f sim.Frame)
	Value() float64
	Reset()
}

// frameState rebuilds the state vector and system of a frame.
func frameState(f sim.Frame) (*physics.ThreeBody, dynamo.State) {
	return physics.NewThreeBodyFromBodies(f.Bodies), physics.StateFromBodies(f.Bodies)
}

// EnergyDrift is the largest relative change of total energy seen since
// the first frame.
type EnergyDrift struct {
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift { return &EnergyDrift{} }

func (e *EnergyDrift) Name() string { return "energy_drift" }

func (e *EnergyDrift) Observe(f sim.Frame) {
	sys, x := frameState(f)
	energy := sys.Energy(x)
	if math.IsInf(energy, 0) {
		return
	}

	if e.samples == 0 {
		e.initial = energy
	}
	e.samples++

	if e.initial != 0 {
		drift := math.Abs(energy-e.initial) / math.Abs(e.initial)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 { return e.maxDrift }

func (e *EnergyDrift) Reset() { *e = EnergyDrift{} }

// MomentumDrift is the largest change in total linear momentum.
type MomentumDrift struct {
	initial  r2.Vec
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift { return &MomentumDrift{} }

func (m *MomentumDrift) Name() string { return "momentum_drift" }

func (m *MomentumDrift) Observe(f sim.Frame) {
	sys, x := frameState(f)
	p := sys.Momentum(x)
	if m.samples == 0 {
		m.initial = p
	}
	m.samples++
	m.maxDrift = math.Max(m.maxDrift, r2.Norm(r2.Sub(p, m.initial)))
}

func (m *MomentumDrift) Value() float64 { return m.maxDrift }

func (m *MomentumDrift) Reset() { *m = MomentumDrift{} }

// CenterOfMassDrift measures how far the center of mass strays from the
// straight line it should follow.
type CenterOfMassDrift struct {
	origin, velocity r2.Vec
	t0               float64
	maxDrift         float64
	samples          int
}

func NewCenterOfMassDrift() *CenterOfMassDrift { return &CenterOfMassDrift{} }

func (c *CenterOfMassDrift) Name() string { return "com_drift" }

func (c *CenterOfMassDrift) Observe(f sim.Frame) {
	sys, x := frameState(f)
	com := sys.CenterOfMass(x)
	if c.samples == 0 {
		c.origin = com
		c.velocity = sys.CenterOfMassVelocity(x)
		c.t0 = f.Time
	}
	c.samples++

	expected := r2.Add(c.origin, r2.Scale(f.Time-c.t0, c.velocity))
	c.maxDrift = math.Max(c.maxDrift, r2.Norm(r2.Sub(com, expected)))
}

func (c *CenterOfMassDrift) Value() float64 { return c.maxDrift }

func (c *CenterOfMassDrift) Reset() { *c = CenterOfMassDrift{} }

// MinSeparation is the closest approach of any pair of bodies.
type MinSeparation struct {
	min float64
}

func NewMinSeparation() *MinSeparation { return &MinSeparation{min: math.Inf(1)} }

func (m *MinSeparation) Name() string { return "min_separation" }

func (m *MinSeparation) Observe(f sim.Frame) {
	b := f.Bodies
	d := []float64{
		r2.Norm(r2.Sub(b[0].Position, b[1].Position)),
		r2.Norm(r2.Sub(b[0].Position, b[2].Position)),
		r2.Norm(r2.Sub(b[1].Position, b[2].Position)),
	}
	m.min = math.Min(m.min, floats.Min(d))
}

func (m *MinSeparation) Value() float64 { return m.min }

func (m *MinSeparation) Reset() { m.min = math.Inf(1) }

// Recorder feeds every frame of a run to a set of metrics.
type Recorder struct {
	mu      sync.Mutex
	metrics []Metric
	frames  int
}

func NewRecorder(ms ...Metric) *Recorder {
	return &Recorder{metrics: ms}
}

// Conservation returns a recorder with the standard conservation checks.
func Conservation() *Recorder {
	return NewRecorder(NewEnergyDrift(), NewMomentumDrift(), NewCenterOfMassDrift(), NewMinSeparation())
}

func (r *Recorder) OnTick(f sim.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames++
	for _, m := range r.metrics {
		m.Observe(f)
	}
}

func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *Recorder) Summary() map[string]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]float64, len(r.metrics))
	for _, m := range r.metrics {
		out[m.Name()] = m.Value()
	}
	return out
}

// Names returns the metric names in sorted order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.metrics))
	for i, m := range r.metrics {
		names[i] = m.Name()
	}
	sort.Strings(names)
	return names
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = 0
	for _, m := range r.metrics {
		m.Reset()
	}
}
