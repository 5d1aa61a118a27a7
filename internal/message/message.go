// Package message models user-facing notifications as one tagged type.
package message

import (
	"errors"
	"fmt"

	"github.com/san-kum/trisim/internal/dynamo"
)

type Kind int

const (
	InputError Kind = iota
	AsymptoteError
	OverflowError
	UnknownError
	DecodeError
	SaveConfirm
	LoadConfirm
	DeleteConfirm
	DeleteQuestion
)

// Severity tells the presentation layer how to style a message.
type Severity int

const (
	Info Severity = iota
	Question
	Error
)

type template struct {
	title    string
	body     string
	severity Severity
}

var templates = map[Kind]template{
	InputError:     {"Invalid input", "The simulation could not start: %v.", Error},
	AsymptoteError: {"Asymptote", "Two bodies came too close at t = %v; the acceleration is unbounded.", Error},
	OverflowError:  {"Overflow", "The simulation diverged at t = %v; values left the representable range.", Error},
	UnknownError:   {"Simulation error", "The simulation stopped unexpectedly at t = %v: %v.", Error},
	DecodeError:    {"Corrupt template", "Template %q could not be read: %v.", Error},
	SaveConfirm:    {"Template saved", "Saved template %q.", Info},
	LoadConfirm:    {"Template loaded", "Loaded template %q.", Info},
	DeleteConfirm:  {"Template deleted", "Deleted template %q.", Info},
	DeleteQuestion: {"Delete template", "Delete template %q? This cannot be undone.", Question},
}

// UserMessage is a notification kind plus the values its template needs.
type UserMessage struct {
	Kind   Kind
	Params []any
}

func New(kind Kind, params ...any) UserMessage {
	return UserMessage{Kind: kind, Params: params}
}

func (m UserMessage) Title() string {
	return templates[m.Kind].title
}

func (m UserMessage) Body() string {
	tpl, ok := templates[m.Kind]
	if !ok {
		return fmt.Sprint(m.Params...)
	}
	return fmt.Sprintf(tpl.body, m.Params...)
}

func (m UserMessage) Severity() Severity {
	return templates[m.Kind].severity
}

func (m UserMessage) String() string {
	return m.Title() + ": " + m.Body()
}

// FromError picks the message kind matching err. t is the simulation time
// at which it occurred.
func FromError(err error, t float64) UserMessage {
	switch {
	case errors.Is(err, dynamo.ErrInput):
		return New(InputError, err)
	case errors.Is(err, dynamo.ErrAsymptote), errors.Is(err, dynamo.ErrStepTooSmall):
		return New(AsymptoteError, t)
	case errors.Is(err, dynamo.ErrOverflow):
		return New(OverflowError, t)
	default:
		return New(UnknownError, t, err)
	}
}
