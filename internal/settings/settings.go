// Package settings holds the immutable description of a simulation run
// and its flat, positional record encoding.
package settings

import (
	"fmt"
	"math"

	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/physics"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	// MaxComponent bounds every position and velocity component.
	MaxComponent = 1e15
	// MaxMass bounds body masses (solar masses).
	MaxMass = 1e6
	// DefaultSpeed is real-time playback.
	DefaultSpeed = 1.0
)

// Settings is everything needed to reproduce a run. Values are copied,
// never mutated; use the With helpers to derive a new one.
type Settings struct {
	Bodies          [physics.NumBodies]physics.Body
	Infinite        bool
	Trails          bool
	CenterOfGravity bool
	SkipTo          float64
	Speed           float64
	Format          NumberFormat
	Output          string
}

// New bundles bodies with default options. Accelerations are derived
// quantities and are cleared.
func New(bodies [physics.NumBodies]physics.Body) Settings {
	for i := range bodies {
		bodies[i].Acceleration = r2.Vec{}
	}
	return Settings{
		Bodies: bodies,
		Speed:  DefaultSpeed,
		Format: Sci2,
	}
}

func (s Settings) WithSkipTo(t float64) Settings {
	s.SkipTo = t
	return s
}

func (s Settings) WithSpeed(speed float64) Settings {
	s.Speed = speed
	return s
}

func (s Settings) WithOutput(name string) Settings {
	s.Output = name
	return s
}

func (s Settings) WithInfinite(infinite bool) Settings {
	s.Infinite = infinite
	return s
}

func (s Settings) WithFormat(f NumberFormat) Settings {
	s.Format = f
	return s
}

// Logging reports whether a run output log is requested.
func (s Settings) Logging() bool { return s.Output != "" }

// Skips reports whether the run fast-forwards before normal playback.
func (s Settings) Skips() bool { return !s.Infinite && s.SkipTo > 0 }

// Validate rejects settings that must never reach the integrator.
// Bodies must be stored in id order 1, 2, 3 and carry no acceleration,
// which is derived by the driver.
func Validate(s Settings) error {
	var seen [physics.NumBodies + 1]bool
	for i, b := range s.Bodies {
		if b.ID < 1 || b.ID > physics.NumBodies {
			return fmt.Errorf("%w: particle %d has id %d, want 1..%d", dynamo.ErrInput, i+1, b.ID, physics.NumBodies)
		}
		if seen[b.ID] {
			return fmt.Errorf("%w: duplicate particle id %d", dynamo.ErrInput, b.ID)
		}
		seen[b.ID] = true
		if b.ID != i+1 {
			return fmt.Errorf("%w: particle id %d in slot %d, want id order 1..%d", dynamo.ErrInput, b.ID, i+1, physics.NumBodies)
		}

		if !finite(b.Mass) || b.Mass <= 0 || b.Mass > MaxMass {
			return fmt.Errorf("%w: particle %d mass %g must be in (0, %g]", dynamo.ErrInput, b.ID, b.Mass, MaxMass)
		}
		if b.Acceleration != (r2.Vec{}) {
			return fmt.Errorf("%w: particle %d has a supplied acceleration", dynamo.ErrInput, b.ID)
		}
		components := [4]float64{b.Position.X, b.Position.Y, b.Velocity.X, b.Velocity.Y}
		for j, v := range components {
			if !finite(v) || math.Abs(v) > MaxComponent {
				return fmt.Errorf("%w: particle %d %s=%g out of range", dynamo.ErrInput, b.ID, componentNames[j], v)
			}
		}
	}

	if !finite(s.Speed) || s.Speed <= 0 {
		return fmt.Errorf("%w: speed %g must be positive", dynamo.ErrInput, s.Speed)
	}
	if !finite(s.SkipTo) || s.SkipTo < 0 {
		return fmt.Errorf("%w: skip %g must be non-negative", dynamo.ErrInput, s.SkipTo)
	}
	if _, ok := formatNames[s.Format]; !ok {
		return fmt.Errorf("%w: unknown number format %d", dynamo.ErrInput, int(s.Format))
	}
	return nil
}

var componentNames = [4]string{"x", "y", "vx", "vy"}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
