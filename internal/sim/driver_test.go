package sim_test

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/integrators"
	"github.com/san-kum/trisim/internal/physics"
	"github.com/san-kum/trisim/internal/settings"
	"github.com/san-kum/trisim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

// lineSettings is three equal masses on a line with the outer pair in a
// near-circular orbit around the middle body.
func lineSettings() settings.Settings {
	const m = 3e-6
	return settings.New([physics.NumBodies]physics.Body{
		{ID: 1, Mass: m, Position: r2.Vec{X: 100}, Velocity: r2.Vec{Y: 71}},
		{ID: 2, Mass: m, Position: r2.Vec{X: -100}, Velocity: r2.Vec{Y: -71}},
		{ID: 3, Mass: m},
	})
}

// failingIntegrator fails every call with err.
type failingIntegrator struct{ err error }

func (f *failingIntegrator) Integrate(_ dynamo.System, x dynamo.State, t0, _ float64) (dynamo.State, float64, error) {
	return x, t0, f.err
}

// hookIntegrator runs after once every Integrate call returns.
type hookIntegrator struct {
	dynamo.Integrator
	after func()
}

func (h *hookIntegrator) Integrate(sys dynamo.System, x dynamo.State, t0, t1 float64) (dynamo.State, float64, error) {
	xNew, t, err := h.Integrator.Integrate(sys, x, t0, t1)
	if h.after != nil {
		h.after()
	}
	return xNew, t, err
}

func fixedStep(step float64) sim.Options {
	opts := sim.DefaultOptions()
	opts.FixedStep = step
	return opts
}

func centerOfMass(f sim.Frame) r2.Vec {
	var c r2.Vec
	total := 0.0
	for _, b := range f.Bodies {
		c = r2.Add(c, r2.Scale(b.Mass, b.Position))
		total += b.Mass
	}
	return r2.Scale(1/total, c)
}

var _ = Describe("Driver", func() {
	var (
		d   *sim.Driver
		now time.Time
	)

	BeforeEach(func() {
		d = sim.New(integrators.NewRK45(), fixedStep(0.05))
		now = time.Unix(1_700_000_000, 0)
	})

	tick := func() error {
		now = now.Add(50 * time.Millisecond)
		return d.Tick(now)
	}

	Describe("lifecycle", func() {
		It("starts in NotStarted", func() {
			Expect(d.Status()).To(Equal(sim.NotStarted))
		})

		It("walks start, pause, resume, stop and then rejects transitions", func() {
			Expect(d.Start(lineSettings())).To(Succeed())
			Expect(d.Status()).To(Equal(sim.Running))

			Expect(d.Pause()).To(Succeed())
			Expect(d.Status()).To(Equal(sim.Paused))

			Expect(d.Resume()).To(Succeed())
			Expect(d.Status()).To(Equal(sim.Running))

			Expect(d.Stop()).To(Succeed())
			Expect(d.Status()).To(Equal(sim.Finished))

			Expect(d.Pause()).To(MatchError(dynamo.ErrIllegalTransition))
			Expect(d.Resume()).To(MatchError(dynamo.ErrIllegalTransition))
			Expect(d.Stop()).To(MatchError(dynamo.ErrIllegalTransition))
			Expect(d.Start(lineSettings())).To(MatchError(dynamo.ErrIllegalTransition))
			Expect(d.Status()).To(Equal(sim.Finished))
		})

		It("rejects pause and resume out of order", func() {
			Expect(d.Pause()).To(MatchError(dynamo.ErrIllegalTransition))
			Expect(d.Resume()).To(MatchError(dynamo.ErrIllegalTransition))

			Expect(d.Start(lineSettings())).To(Succeed())
			Expect(d.Resume()).To(MatchError(dynamo.ErrIllegalTransition))
			Expect(d.Start(lineSettings())).To(MatchError(dynamo.ErrIllegalTransition))
		})

		It("can be stopped before it starts", func() {
			Expect(d.Stop()).To(Succeed())
			Expect(d.Status()).To(Equal(sim.Finished))
		})

		It("reports every transition to status listeners", func() {
			var seen []sim.Status
			d.OnStatus(func(s sim.Status) { seen = append(seen, s) })

			Expect(d.Start(lineSettings())).To(Succeed())
			Expect(d.Pause()).To(Succeed())
			Expect(d.Resume()).To(Succeed())
			Expect(d.Stop()).To(Succeed())

			Expect(seen).To(Equal([]sim.Status{sim.Running, sim.Paused, sim.Running, sim.Finished}))
		})
	})

	Describe("input validation", func() {
		It("rejects invalid settings before running", func() {
			s := lineSettings()
			s.Bodies[0].Mass = 0

			Expect(d.Start(s)).To(MatchError(dynamo.ErrInput))
			Expect(d.Status()).To(Equal(sim.NotStarted))
		})

		It("reports coincident bodies as an asymptote", func() {
			s := lineSettings()
			s.Bodies[1].Position = s.Bodies[0].Position

			var failures []sim.Failure
			d.OnFailure(func(f sim.Failure) { failures = append(failures, f) })

			err := d.Start(s)
			Expect(err).To(MatchError(dynamo.ErrAsymptote))
			Expect(d.Status()).To(Equal(sim.Finished))
			Expect(failures).To(HaveLen(1))
			Expect(failures[0].Kind).To(Equal(sim.FailureAsymptote))
		})
	})

	Describe("stepping", func() {
		It("advances a fixed step scaled by speed on every tick", func() {
			Expect(d.Start(lineSettings().WithSpeed(2))).To(Succeed())

			Expect(tick()).To(Succeed())
			Expect(d.Time()).To(BeNumerically("~", 0.1, 1e-12))

			Expect(tick()).To(Succeed())
			Expect(d.Time()).To(BeNumerically("~", 0.2, 1e-12))
		})

		It("converts wall-clock time in free-run mode", func() {
			d = sim.New(integrators.NewRK45(), sim.DefaultOptions())
			Expect(d.Start(lineSettings().WithSpeed(2))).To(Succeed())

			Expect(d.Tick(now)).To(Succeed())
			Expect(d.Time()).To(BeZero(), "the first tick only sets the baseline")

			now = now.Add(500 * time.Millisecond)
			Expect(d.Tick(now)).To(Succeed())
			Expect(d.Time()).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("does not advance while paused and does not count the pause", func() {
			d = sim.New(integrators.NewRK45(), sim.DefaultOptions())
			Expect(d.Start(lineSettings())).To(Succeed())
			Expect(d.Tick(now)).To(Succeed())

			Expect(d.Pause()).To(Succeed())
			now = now.Add(10 * time.Second)
			Expect(d.Tick(now)).To(Succeed())
			Expect(d.Time()).To(BeZero())

			Expect(d.Resume()).To(Succeed())
			now = now.Add(time.Hour)
			Expect(d.Tick(now)).To(Succeed())
			Expect(d.Time()).To(BeZero(), "resume resets the baseline")

			now = now.Add(250 * time.Millisecond)
			Expect(d.Tick(now)).To(Succeed())
			Expect(d.Time()).To(BeNumerically("~", 0.25, 1e-9))
		})

		It("notifies particles and observers after each tick", func() {
			updates := map[int]int{}
			d.OnUpdate(func(b physics.Body) { updates[b.ID]++ })

			var frames []sim.Frame
			d.AddObserver(sim.ObserverFunc(func(f sim.Frame) { frames = append(frames, f) }))

			Expect(d.Start(lineSettings())).To(Succeed())
			Expect(tick()).To(Succeed())
			Expect(tick()).To(Succeed())

			Expect(frames).To(HaveLen(3), "initial frame plus one per tick")
			Expect(frames[2].Time).To(BeNumerically("~", 0.1, 1e-12))
			Expect(updates).To(Equal(map[int]int{1: 3, 2: 3, 3: 3}))

			for i, b := range frames[2].Bodies {
				Expect(b.ID).To(Equal(i + 1))
			}
			Expect(frames[2].Bodies[0].Acceleration.X).To(BeNumerically("<", 0))
			Expect(frames[2].Bodies[1].Acceleration.X).To(BeNumerically(">", 0))
			Expect(d.Frame()).To(Equal(frames[2]))
		})

		It("keeps the center of mass in place", func() {
			var frames []sim.Frame
			d.AddObserver(sim.ObserverFunc(func(f sim.Frame) { frames = append(frames, f) }))

			Expect(d.Start(lineSettings())).To(Succeed())
			for i := 0; i < 200; i++ {
				Expect(tick()).To(Succeed())
			}

			com0 := centerOfMass(frames[0])
			for _, f := range frames {
				com := centerOfMass(f)
				Expect(com.X).To(BeNumerically("~", com0.X, 1e-6))
				Expect(com.Y).To(BeNumerically("~", com0.Y, 1e-6))
			}
		})

		It("preserves total momentum", func() {
			s := lineSettings()
			s.Bodies[2].Velocity = r2.Vec{X: 3, Y: -2}
			Expect(d.Start(s)).To(Succeed())

			momentum := func() r2.Vec {
				var p r2.Vec
				for _, b := range d.Frame().Bodies {
					p = r2.Add(p, r2.Scale(b.Mass, b.Velocity))
				}
				return p
			}

			p0 := momentum()
			for i := 0; i < 20; i++ {
				Expect(tick()).To(Succeed())
			}
			p1 := momentum()
			Expect(p1.X).To(BeNumerically("~", p0.X, 1e-15))
			Expect(p1.Y).To(BeNumerically("~", p0.Y, 1e-15))
		})

		It("publishes nothing once stopped during a step", func() {
			hook := &hookIntegrator{Integrator: integrators.NewRK45()}
			d = sim.New(hook, fixedStep(0.05))

			var frames []sim.Frame
			d.AddObserver(sim.ObserverFunc(func(f sim.Frame) { frames = append(frames, f) }))
			updates := 0
			d.OnUpdate(func(physics.Body) { updates++ })

			Expect(d.Start(lineSettings())).To(Succeed())
			Expect(frames).To(HaveLen(1))

			hook.after = func() { Expect(d.Stop()).To(Succeed()) }
			Expect(tick()).To(Succeed())

			Expect(d.Status()).To(Equal(sim.Finished))
			Expect(frames).To(HaveLen(1))
			Expect(updates).To(Equal(3))
			Expect(d.Frame().Bodies).To(Equal(frames[0].Bodies))
		})
	})

	Describe("failures", func() {
		DescribeTable("finishes the run and reports the kind",
			func(cause error, kind sim.FailureKind) {
				d = sim.New(&failingIntegrator{err: &dynamo.SimulationError{Time: 0, Wrapped: cause}}, fixedStep(0.05))

				var failures []sim.Failure
				d.OnFailure(func(f sim.Failure) { failures = append(failures, f) })

				Expect(d.Start(lineSettings())).To(Succeed())
				Expect(tick()).To(MatchError(cause))
				Expect(d.Status()).To(Equal(sim.Finished))
				Expect(failures).To(HaveLen(1))
				Expect(failures[0].Kind).To(Equal(kind))

				f, ok := d.Failure()
				Expect(ok).To(BeTrue())
				Expect(f.Kind).To(Equal(kind))

				Expect(tick()).To(Succeed(), "ticks after the failure are no-ops")
				Expect(d.Pause()).To(MatchError(dynamo.ErrIllegalTransition))
			},
			Entry("overflow", dynamo.ErrOverflow, sim.FailureOverflow),
			Entry("asymptote", dynamo.ErrAsymptote, sim.FailureAsymptote),
			Entry("step underflow", dynamo.ErrStepTooSmall, sim.FailureAsymptote),
			Entry("evaluation budget", dynamo.ErrMaxEvaluations, sim.FailureUnknown),
			Entry("anything else", errors.New("boom"), sim.FailureUnknown),
		)
	})

	Describe("time-skip", func() {
		const skipTo = 5.0

		It("fast-forwards before the first observed tick", func() {
			var frames []sim.Frame
			d.AddObserver(sim.ObserverFunc(func(f sim.Frame) { frames = append(frames, f) }))

			Expect(d.Start(lineSettings().WithSkipTo(skipTo))).To(Succeed())
			Expect(d.Time()).To(BeNumerically(">=", skipTo))
			Expect(frames).NotTo(BeEmpty())
			Expect(frames[0].Time).To(BeNumerically(">=", skipTo))

			Expect(tick()).To(Succeed())
			Expect(d.Time()).To(BeNumerically("~", skipTo+0.05, 1e-9))
		})

		It("halts when paused during the skip and continues after resume", func() {
			pausedOnce := false
			d.OnProgress(func(t float64) {
				if t > skipTo/10 && !pausedOnce {
					pausedOnce = true
					Expect(d.Pause()).To(Succeed())
				}
			})

			Expect(d.Start(lineSettings().WithSkipTo(skipTo))).To(Succeed())
			Expect(d.Status()).To(Equal(sim.Paused))
			Expect(d.Time()).To(BeNumerically("<", skipTo))

			paused := d.Time()
			Expect(tick()).To(Succeed())
			Expect(d.Time()).To(Equal(paused))

			Expect(d.Resume()).To(Succeed())
			Expect(tick()).To(Succeed())
			Expect(d.Time()).To(BeNumerically(">=", skipTo))
		})

		It("halts when stopped from another goroutine", func() {
			var once sync.Once
			started := make(chan struct{})
			done := make(chan struct{})
			d.OnProgress(func(float64) {
				once.Do(func() {
					close(started)
					<-done
				})
			})

			go func() {
				defer GinkgoRecover()
				<-started
				Expect(d.Stop()).To(Succeed())
				close(done)
			}()

			Expect(d.Start(lineSettings().WithSkipTo(skipTo))).To(Succeed())
			Expect(d.Status()).To(Equal(sim.Finished))
			Expect(d.Time()).To(BeNumerically("<", skipTo))
		})

		It("reaches a skip time smaller than one chunk", func() {
			const tiny = 5e-324
			done := make(chan struct{})
			var err error
			go func() {
				defer GinkgoRecover()
				defer close(done)
				err = d.Start(lineSettings().WithSkipTo(tiny))
			}()

			Eventually(done).WithTimeout(3 * time.Second).Should(BeClosed())
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Time()).To(BeNumerically(">=", tiny))
			Expect(d.Status()).To(Equal(sim.Running))
		})

		It("is ignored by infinite runs", func() {
			Expect(d.Start(lineSettings().WithSkipTo(skipTo).WithInfinite(true))).To(Succeed())
			Expect(d.Time()).To(BeZero())
		})
	})
})
