package sim

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/settings"
)

// resetter is implemented by integrators that remember step sizes.
type resetter interface {
	Reset()
}

type Driver struct {
	integ dynamo.Integrator
	opts  Options
	log   *log.Logger

	status atomic.Int32
	stepMu sync.Mutex // serialises Start and Tick

	mu        sync.RWMutex
	settings  settings.Settings
	sys       *physics.ThreeBody
	state     dynamo.State
	t         float64
	lastTick  time.Time
	particles [physics.NumBodies]*physics.Particle
	failure   *Failure

	observers  []Observer
	onUpdate   []func(physics.Body)
	onFailure  []func(Failure)
	onStatus   []func(Status)
	onProgress []func(float64)
}

func New(integ dynamo.Integrator, opts Options) *Driver {
	if opts.SkipChunks <= 0 {
		opts.SkipChunks = DefaultOptions().SkipChunks
	}
	if opts.TimeScale <= 0 {
		opts.TimeScale = DefaultOptions().TimeScale
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Driver{integ: integ, opts: opts, log: logger}
}

func (d *Driver) AddObserver(o Observer) {
	d.mu.Lock()
	d.observers = append(d.observers, o)
	d.mu.Unlock()
}

// OnUpdate registers fn on every particle of the run, including particles
// created by a later Start.
func (d *Driver) OnUpdate(fn func(physics.Body)) {
	d.mu.Lock()
	d.onUpdate = append(d.onUpdate, fn)
	for _, p := range d.particles {
		if p != nil {
			p.OnUpdate(fn)
		}
	}
	d.mu.Unlock()
}

func (d *Driver) OnFailure(fn func(Failure)) {
	d.mu.Lock()
	d.onFailure = append(d.onFailure, fn)
	d.mu.Unlock()
}

func (d *Driver) OnStatus(fn func(Status)) {
	d.mu.Lock()
	d.onStatus = append(d.onStatus, fn)
	d.mu.Unlock()
}

// OnProgress registers fn to receive the simulation time after every
// internal step of a time-skip. It runs on the stepping goroutine and may
// call Pause or Stop.
func (d *Driver) OnProgress(fn func(float64)) {
	d.mu.Lock()
	d.onProgress = append(d.onProgress, fn)
	d.mu.Unlock()
}

func (d *Driver) Status() Status {
	return Status(d.status.Load())
}

func (d *Driver) Time() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.t
}

func (d *Driver) Settings() settings.Settings {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.settings
}

// Failure returns the failure that finished the run, if any.
func (d *Driver) Failure() (Failure, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.failure == nil {
		return Failure{}, false
	}
	return *d.failure, true
}

// Bodies returns the current state of the three bodies, ordered by id.
func (d *Driver) Bodies() [physics.NumBodies]physics.Body {
	return d.Frame().Bodies
}

// Frame returns a snapshot of the current time and bodies.
func (d *Driver) Frame() Frame {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f := Frame{Time: d.t}
	for i, p := range d.particles {
		if p != nil {
			f.Bodies[i] = p.Snapshot()
		}
	}
	return f
}

// Start validates s, seeds the state vector from its bodies and begins
// the run at t = 0. When s asks for a time-skip, Start fast-forwards
// before returning unless the run is paused or stopped meanwhile.
func (d *Driver) Start(s settings.Settings) error {
	if err := settings.Validate(s); err != nil {
		return err
	}

	d.stepMu.Lock()
	defer d.stepMu.Unlock()

	if !d.status.CompareAndSwap(int32(NotStarted), int32(Running)) {
		return fmt.Errorf("%w: start while %s", dynamo.ErrIllegalTransition, d.Status())
	}

	sys := physics.NewThreeBodyFromBodies(s.Bodies)
	state := physics.StateFromBodies(s.Bodies)

	if r, ok := d.integ.(resetter); ok {
		r.Reset()
	}

	d.mu.Lock()
	d.settings = s
	d.sys = sys
	d.state = state
	d.t = 0
	d.lastTick = time.Time{}
	for i, b := range s.Bodies {
		p := physics.NewParticle(b)
		for _, fn := range d.onUpdate {
			p.OnUpdate(fn)
		}
		d.particles[i] = p
	}
	d.mu.Unlock()

	d.log.Info("run started", "skip", s.SkipTo, "speed", s.Speed, "infinite", s.Infinite)
	d.notifyStatus(Running)

	if s.Skips() {
		return d.skip()
	}
	return d.publish()
}

func (d *Driver) Pause() error {
	if !d.status.CompareAndSwap(int32(Running), int32(Paused)) {
		return fmt.Errorf("%w: pause while %s", dynamo.ErrIllegalTransition, d.Status())
	}
	d.log.Debug("run paused", "t", d.Time())
	d.notifyStatus(Paused)
	return nil
}

func (d *Driver) Resume() error {
	if !d.status.CompareAndSwap(int32(Paused), int32(Running)) {
		return fmt.Errorf("%w: resume while %s", dynamo.ErrIllegalTransition, d.Status())
	}
	d.mu.Lock()
	d.lastTick = time.Time{}
	d.mu.Unlock()

	d.log.Debug("run resumed", "t", d.Time())
	d.notifyStatus(Running)
	return nil
}

// Stop finishes the run. It is terminal: a new run needs a new Driver.
func (d *Driver) Stop() error {
	for {
		cur := d.status.Load()
		if Status(cur) == Finished {
			return fmt.Errorf("%w: stop while %s", dynamo.ErrIllegalTransition, Finished)
		}
		if d.status.CompareAndSwap(cur, int32(Finished)) {
			break
		}
	}
	d.log.Info("run stopped", "t", d.Time())
	d.notifyStatus(Finished)
	return nil
}

// Tick performs one bounded unit of work. It is a no-op unless the run is
// Running. A pending time-skip is completed (or continued) first.
func (d *Driver) Tick(now time.Time) error {
	d.stepMu.Lock()
	defer d.stepMu.Unlock()

	if d.Status() != Running {
		return nil
	}

	d.mu.Lock()
	s := d.settings
	t := d.t
	dt := d.delta(now)
	d.lastTick = now
	d.mu.Unlock()

	if s.Skips() && t < s.SkipTo {
		return d.skip()
	}
	if dt <= 0 {
		return nil
	}

	if err := d.advance(t + dt); err != nil {
		return err
	}
	return d.publish()
}

// delta converts the time since the previous tick into simulated seconds.
// The caller holds mu.
func (d *Driver) delta(now time.Time) float64 {
	speed := d.settings.Speed
	if d.opts.FixedStep > 0 {
		return d.opts.FixedStep * speed
	}
	if d.lastTick.IsZero() || !now.After(d.lastTick) {
		return 0
	}
	return now.Sub(d.lastTick).Seconds() * d.opts.TimeScale * speed
}

// skip steps towards SkipTo without yielding, checking between internal
// steps whether the run was paused or stopped.
func (d *Driver) skip() error {
	s := d.Settings()
	chunk := s.SkipTo / float64(d.opts.SkipChunks)

	d.log.Debug("skipping", "to", s.SkipTo)
	for {
		t := d.Time()
		if t >= s.SkipTo {
			break
		}
		if d.Status() != Running {
			return d.publish()
		}

		// A chunk too small to move t finishes the skip in one call.
		target := t + chunk
		if target > s.SkipTo || target <= t {
			target = s.SkipTo
		}
		if err := d.advance(target); err != nil {
			return err
		}
		d.notifyProgress(d.Time())
	}

	return d.publish()
}

// advance integrates up to t1 and records the result. On failure the run
// is finished and the failure reported.
func (d *Driver) advance(t1 float64) error {
	d.mu.RLock()
	sys, x, t0 := d.sys, d.state, d.t
	d.mu.RUnlock()

	xNew, tNew, err := d.integ.Integrate(sys, x, t0, t1)
	if err != nil {
		d.fail(tNew, err)
		return err
	}

	d.mu.Lock()
	d.state = xNew
	d.t = tNew
	d.mu.Unlock()
	return nil
}

// publish writes the state vector back into the particles, which notify
// their listeners, then hands a frame to the observers. A run stopped while
// stepping publishes nothing more.
func (d *Driver) publish() error {
	if d.Status() == Finished {
		return nil
	}

	d.mu.RLock()
	sys, x, t := d.sys, d.state, d.t
	particles := d.particles
	observers := d.observers
	d.mu.RUnlock()

	acc, err := sys.Accelerations(x)
	if err != nil {
		err = &dynamo.SimulationError{Time: t, State: x.Clone(), Wrapped: err}
		d.fail(t, err)
		return err
	}

	f := Frame{Time: t}
	for i, p := range particles {
		pos, vel := physics.Kinematics(x, i)
		p.Set(pos, vel, acc[i])
		f.Bodies[i] = p.Snapshot()
	}

	for _, o := range observers {
		o.OnTick(f)
	}
	return nil
}

func (d *Driver) fail(t float64, err error) {
	d.status.Store(int32(Finished))

	f := Failure{Kind: Classify(err), Time: t, Err: err}
	d.mu.Lock()
	d.failure = &f
	listeners := d.onFailure
	d.mu.Unlock()

	d.log.Error("run failed", "kind", f.Kind, "t", t, "err", err)
	for _, fn := range listeners {
		fn(f)
	}
	d.notifyStatus(Finished)
}

func (d *Driver) notifyStatus(s Status) {
	d.mu.RLock()
	listeners := d.onStatus
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(s)
	}
}

func (d *Driver) notifyProgress(t float64) {
	d.mu.RLock()
	listeners := d.onProgress
	d.mu.RUnlock()
	for _, fn := range listeners {
		fn(t)
	}
}
