package physics

import (
	"sync"

	"gonum.org/v1/gonum/spatial/r2"
)

// Body is an immutable snapshot of one particle.
// Color and Label are display tags carried through untouched.
type Body struct {
	ID           int
	Mass         float64
	Position     r2.Vec
	Velocity     r2.Vec
	Acceleration r2.Vec
	Color        string
	Label        string
}

// Particle is the live, observable view of a body during a run.
// The driver refreshes it after every step; readers take snapshots.
type Particle struct {
	mu        sync.RWMutex
	body      Body
	listeners []func(Body)
}

func NewParticle(b Body) *Particle {
	return &Particle{body: b}
}

func (p *Particle) ID() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.body.ID
}

func (p *Particle) Mass() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.body.Mass
}

func (p *Particle) Snapshot() Body {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.body
}

// OnUpdate registers fn to receive a snapshot after every Set.
func (p *Particle) OnUpdate(fn func(Body)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Set replaces the kinematic state and notifies listeners.
// Listeners run outside the lock and may read the particle.
func (p *Particle) Set(pos, vel, acc r2.Vec) {
	p.mu.Lock()
	p.body.Position = pos
	p.body.Velocity = vel
	p.body.Acceleration = acc
	snap := p.body
	listeners := p.listeners
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
