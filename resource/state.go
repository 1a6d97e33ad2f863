// Package resource models the lifecycle of an asynchronous operation as a tagged value.
//
// A State is always exactly one of Pending, Running, Success or Failure. Producers emit
// Running states while work is in flight and exactly one terminal state (Success or
// Failure) per logical attempt. Consumers switch on Kind.
package resource

import "fmt"

// Kind tags the variant held by a State.
type Kind int

const (
	KindPending Kind = iota
	KindRunning
	KindSuccess
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindPending:
		return "pending"
	case KindRunning:
		return "running"
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is the lifecycle value of an operation producing R and reporting progress P.
// The zero value is Pending.
type State[P any, R any] struct {
	kind     Kind
	progress []P
	result   R
	hasValue bool
	err      error
}

// Pending is an operation that has not started.
func Pending[P any, R any]() State[P, R] {
	return State[P, R]{kind: KindPending}
}

// Running is an operation in flight. Progress entries are advisory.
func Running[P any, R any](progress ...P) State[P, R] {
	var copied []P
	if len(progress) > 0 {
		copied = append(copied, progress...)
	}
	return State[P, R]{kind: KindRunning, progress: copied}
}

// Success is a completed operation.
func Success[P any, R any](result R) State[P, R] {
	return State[P, R]{kind: KindSuccess, result: result, hasValue: true}
}

// Failure is a failed operation with an optional partial result.
// A Failure with neither result nor cause means "unknown failure".
func Failure[P any, R any](result *R, cause error) State[P, R] {
	s := State[P, R]{kind: KindFailure, err: cause}
	if result != nil {
		s.result = *result
		s.hasValue = true
	}
	return s
}

// Fail is a Failure without a partial result.
func Fail[P any, R any](cause error) State[P, R] {
	return Failure[P, R](nil, cause)
}

func (s State[P, R]) Kind() Kind {
	return s.kind
}

func (s State[P, R]) IsPending() bool { return s.kind == KindPending }
func (s State[P, R]) IsRunning() bool { return s.kind == KindRunning }
func (s State[P, R]) IsSuccess() bool { return s.kind == KindSuccess }
func (s State[P, R]) IsFailure() bool { return s.kind == KindFailure }

// IsTerminal reports whether the state is Success or Failure.
func (s State[P, R]) IsTerminal() bool {
	return s.kind == KindSuccess || s.kind == KindFailure
}

// Progress returns a copy of the progress entries of a Running state.
func (s State[P, R]) Progress() []P {
	if len(s.progress) == 0 {
		return nil
	}
	return append([]P(nil), s.progress...)
}

// Result returns the result and whether one is present.
// Success always has a result; Failure may carry a partial one.
func (s State[P, R]) Result() (R, bool) {
	return s.result, s.hasValue
}

// Err returns the failure cause, if any.
func (s State[P, R]) Err() error {
	return s.err
}

func (s State[P, R]) String() string {
	switch s.kind {
	case KindRunning:
		if len(s.progress) > 0 {
			return fmt.Sprintf("running(%v)", s.progress[len(s.progress)-1])
		}
		return "running"
	case KindFailure:
		if s.err != nil {
			return "failure: " + s.err.Error()
		}
		return "failure: unknown"
	default:
		return s.kind.String()
	}
}

// Map converts the result type of a state, preserving kind, progress and cause.
func Map[P any, R any, T any](s State[P, R], fn func(R) T) State[P, T] {
	out := State[P, T]{kind: s.kind, progress: s.progress, err: s.err}
	if s.hasValue {
		out.result = fn(s.result)
		out.hasValue = true
	}
	return out
}
