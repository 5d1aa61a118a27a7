package sim

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/san-kum/trisim/internal/dynamo"
	"github.com/san-kum/trisim/internal/physics"
)

type Status int32

const (
	NotStarted Status = iota
	Running
	Paused
	Finished
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("Status(%d)", int32(s))
}

type FailureKind int

const (
	FailureUnknown FailureKind = iota
	FailureAsymptote
	FailureOverflow
)

func (k FailureKind) String() string {
	switch k {
	case FailureAsymptote:
		return "asymptote"
	case FailureOverflow:
		return "overflow"
	}
	return "unknown"
}

// Classify maps an integration error to the kind reported to the user.
// A step size that collapses below the minimum means bodies are all but
// touching, so it is reported as an asymptote.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, dynamo.ErrAsymptote), errors.Is(err, dynamo.ErrStepTooSmall):
		return FailureAsymptote
	case errors.Is(err, dynamo.ErrOverflow):
		return FailureOverflow
	}
	return FailureUnknown
}

// Failure describes why a run finished early.
type Failure struct {
	Kind FailureKind
	Time float64
	Err  error
}

// Frame is an immutable snapshot published after each tick.
type Frame struct {
	Time   float64
	Bodies [physics.NumBodies]physics.Body
}

type Observer interface {
	OnTick(f Frame)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Frame)

func (fn ObserverFunc) OnTick(f Frame) { fn(f) }

type Options struct {
	// TimeScale is simulated seconds per wall-clock second at speed 1.
	TimeScale float64
	// FixedStep, when positive, makes every tick advance FixedStep × speed
	// simulated seconds regardless of the wall clock.
	FixedStep float64
	// SkipChunks is the number of internal steps a time-skip is split into.
	SkipChunks int
	// Logger receives lifecycle and failure events. Nil discards them.
	Logger *log.Logger
}

func DefaultOptions() Options {
	return Options{
		TimeScale:  1.0,
		SkipChunks: 1000,
	}
}
