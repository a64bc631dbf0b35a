package invoker

import (
	"fmt"
	"time"

	"github.com/vk/jobhost/internal/binding"
)

// State is a step of the invocation lifecycle.
type State int

const (
	StateCreated State = iota
	StateBound
	StateInvoking
	StateCompleted
	StateFaulted
	StateFlushed
	StateDone
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateBound:
		return "bound"
	case StateInvoking:
		return "invoking"
	case StateCompleted:
		return "completed"
	case StateFaulted:
		return "faulted"
	case StateFlushed:
		return "flushed"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Stage names the part of the pipeline a fault came from.
type Stage string

const (
	StageBind   Stage = "bind"
	StageInvoke Stage = "invoke"
	StageFlush  Stage = "flush"
)

// Fault is an invocation failure. Parameter is empty when the failure is not
// tied to one parameter.
type Fault struct {
	Stage     Stage
	Parameter string
	Err       error
}

func (f *Fault) Error() string {
	if f.Parameter != "" {
		return fmt.Sprintf("%s failed for parameter %q: %v", f.Stage, f.Parameter, f.Err)
	}
	return fmt.Sprintf("%s failed: %v", f.Stage, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// Result describes one finished invocation.
type Result struct {
	ID       string
	Function string
	// Transitions lists every state the invocation went through, in order.
	Transitions []State
	Fault       *Fault
	// CleanupErr joins errors returned by cleanups. It does not fault the
	// invocation.
	CleanupErr    error
	Data          binding.Data
	ParameterLogs map[string]string
	Started       time.Time
	Finished      time.Time
}

// State returns the last state reached.
func (r *Result) State() State {
	if len(r.Transitions) == 0 {
		return StateCreated
	}
	return r.Transitions[len(r.Transitions)-1]
}

// Succeeded reports whether the invocation finished without a fault.
func (r *Result) Succeeded() bool {
	return r.Fault == nil
}

// Err returns the fault as an error, or nil.
func (r *Result) Err() error {
	if r.Fault == nil {
		return nil
	}
	return r.Fault
}

// Duration is the wall time between start and finish.
func (r *Result) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

func (r *Result) enter(s State) {
	r.Transitions = append(r.Transitions, s)
}
