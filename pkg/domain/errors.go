package domain

import (
	"errors"
	"fmt"
)

// Definition problems. A DefinitionError wraps one or more of these.
var (
	ErrNameRequired             = errors.New("name is required")
	ErrInitialStateRequired     = errors.New("initialState is required")
	ErrTransitionsRequired      = errors.New("transitions are required")
	ErrInvalidTransition        = errors.New("transition requires from, event and to")
	ErrUnknownState             = errors.New("state is not declared")
	ErrDuplicateTransition      = errors.New("duplicate transition")
	ErrFinalStateHasTransitions = errors.New("final state has outgoing transitions")
	ErrUnknownGuard             = errors.New("guard not registered")
	ErrUnknownAction            = errors.New("action not registered")
	ErrInvalidParams            = errors.New("invalid hook params")
	ErrNoExpressionEvaluator    = errors.New("expression guard needs an evaluator")
)

// ErrTaskNotFound is returned when a search yields no object.
var ErrTaskNotFound = errors.New("task not found")

// ErrDefinitionNotFound is returned by definition loaders for unknown machine names.
var ErrDefinitionNotFound = errors.New("machine definition not found")

// ErrMissingID is returned by stores when an object carries no identity.
var ErrMissingID = errors.New("object has no id")

// DefinitionError reports a malformed or inconsistent schema.
// Err is usually an errors.Join of every problem found.
type DefinitionError struct {
	Machine string
	Err     error
}

func (e *DefinitionError) Error() string {
	if e.Machine == "" {
		return fmt.Sprintf("invalid machine definition: %v", e.Err)
	}
	return fmt.Sprintf("invalid machine definition %q: %v", e.Machine, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// AlreadyStartedError is returned when start is called on an object that already has a state.
type AlreadyStartedError struct {
	State string
}

func (e *AlreadyStartedError) Error() string {
	return fmt.Sprintf("object already started: current state is %q", e.State)
}

// IllegalTransitionError is returned when no transition matches (State, Event).
type IllegalTransitionError struct {
	State string
	Event string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: no %q event from state %q", e.Event, e.State)
}

// GuardRejectedError is returned when a matching transition's guard declines.
type GuardRejectedError struct {
	State string
	Event string
	Guard string
}

func (e *GuardRejectedError) Error() string {
	return fmt.Sprintf("guard %q rejected event %q in state %q", e.Guard, e.Event, e.State)
}

// HookKind tells guards and actions apart in a HookError.
type HookKind string

const (
	HookGuard  HookKind = "guard"
	HookAction HookKind = "action"
)

// HookError wraps a failure (or recovered panic) raised by a guard or action.
type HookError struct {
	Kind  HookKind
	Name  string
	State string
	Event string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("%s %q failed on event %q in state %q: %v", e.Kind, e.Name, e.Event, e.State, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// IsDefinitionError reports whether err is or wraps a DefinitionError.
func IsDefinitionError(err error) bool {
	var target *DefinitionError
	return errors.As(err, &target)
}

// IsAlreadyStartedError reports whether err is or wraps an AlreadyStartedError.
func IsAlreadyStartedError(err error) bool {
	var target *AlreadyStartedError
	return errors.As(err, &target)
}

// IsIllegalTransitionError reports whether err is or wraps an IllegalTransitionError.
func IsIllegalTransitionError(err error) bool {
	var target *IllegalTransitionError
	return errors.As(err, &target)
}

// IsGuardRejectedError reports whether err is or wraps a GuardRejectedError.
func IsGuardRejectedError(err error) bool {
	var target *GuardRejectedError
	return errors.As(err, &target)
}

// IsHookError reports whether err is or wraps a HookError.
func IsHookError(err error) bool {
	var target *HookError
	return errors.As(err, &target)
}
