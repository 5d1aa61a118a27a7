// Package sim drives a three-body run: it owns simulation time, advances
// the integrator on every tick and publishes particle state.
//
// A [Driver] moves through NotStarted → Running ⇄ Paused → Finished. Tick
// is called by an external clock (a timer, a bubbletea tick, a headless
// loop); no two steps of one driver ever run concurrently. Pause and Stop
// never wait for a running step: the time-skip loop re-checks the status
// between internal steps, so they take effect promptly even while
// fast-forwarding.
//
// # Example
//
//	d := sim.New(integrators.NewRK45(), sim.DefaultOptions())
//	d.OnFailure(func(f sim.Failure) { ... })
//	if err := d.Start(s); err != nil { ... }
//	for now := range ticker.C {
//		if err := d.Tick(now); err != nil { break }
//	}
package sim
