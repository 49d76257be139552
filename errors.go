package asx

import (
	"errors"
	"fmt"
)

// Code classifies a kernel-level failure. Codes are part of the external
// contract: their meaning never changes silently, and every operation
// returns the single most specific code that applies.
type Code string

const (
	// General
	InvalidArgument Code = "INVALID_ARGUMENT"
	InvalidState    Code = "INVALID_STATE"
	NotFound        Code = "NOT_FOUND"
	AlreadyExists   Code = "ALREADY_EXISTS"

	// Transition
	InvalidTransition Code = "INVALID_TRANSITION"

	// Region
	RegionNotFound   Code = "REGION_NOT_FOUND"
	RegionClosed     Code = "REGION_CLOSED"
	RegionAtCapacity Code = "REGION_AT_CAPACITY"
	RegionNotOpen    Code = "REGION_NOT_OPEN"
	AdmissionClosed  Code = "ADMISSION_CLOSED"
	AdmissionLimit   Code = "ADMISSION_LIMIT"

	// Task
	TaskNotFound         Code = "TASK_NOT_FOUND"
	SchedulerUnavailable Code = "SCHEDULER_UNAVAILABLE"
	NameConflict         Code = "NAME_CONFLICT"
	TaskNotCompleted     Code = "TASK_NOT_COMPLETED"
	PollBudgetExhausted  Code = "POLL_BUDGET_EXHAUSTED"

	// Obligation
	ObligationAlreadyResolved Code = "OBLIGATION_ALREADY_RESOLVED"
	UnresolvedObligations     Code = "UNRESOLVED_OBLIGATIONS"

	// Cancel / witness
	Cancelled              Code = "CANCELLED"
	WitnessPhaseRegression Code = "WITNESS_PHASE_REGRESSION"
	WitnessReasonWeakened  Code = "WITNESS_REASON_WEAKENED"
	WitnessTaskMismatch    Code = "WITNESS_TASK_MISMATCH"
	WitnessRegionMismatch  Code = "WITNESS_REGION_MISMATCH"
	WitnessEpochMismatch   Code = "WITNESS_EPOCH_MISMATCH"

	// Channel
	Disconnected    Code = "DISCONNECTED"
	WouldBlock      Code = "WOULD_BLOCK"
	ChannelFull     Code = "CHANNEL_FULL"
	ChannelNotDrained Code = "CHANNEL_NOT_DRAINED"

	// Timer
	TimerNotFound Code = "TIMER_NOT_FOUND"
	TimersPending Code = "TIMERS_PENDING"

	// Quiescence
	TasksStillActive      Code = "TASKS_STILL_ACTIVE"
	ObligationsUnresolved Code = "OBLIGATIONS_UNRESOLVED"
	RegionsNotClosed      Code = "REGIONS_NOT_CLOSED"
	IncompleteChildren    Code = "INCOMPLETE_CHILDREN"
	QuiescenceNotReached  Code = "QUIESCENCE_NOT_REACHED"
	QuiescenceTasksLive   Code = "QUIESCENCE_TASKS_LIVE"

	// Resource / runtime
	ResourceExhausted    Code = "RESOURCE_EXHAUSTED"
	StaleHandle          Code = "STALE_HANDLE"
	HookMissing          Code = "HOOK_MISSING"
	HookInvalid          Code = "HOOK_INVALID"
	DeterminismViolation Code = "DETERMINISM_VIOLATION"
	AllocatorSealed      Code = "ALLOCATOR_SEALED"
)

// Error is the classified error value returned by every kernel operation.
// Op names the failing operation; Err, if present, is the underlying cause
// and participates in errors.Is/errors.As via Unwrap.
type Error struct {
	Code Code
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		if e.Op == "" {
			return string(e.Code)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error carrying the same Code, enabling
// errors.Is(err, &Error{Code: StaleHandle}) style checks without requiring
// the caller to also match Op/Err.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// newError constructs a classified error for the given operation.
func newError(op string, code Code) *Error {
	return &Error{Code: code, Op: op}
}

// wrapError constructs a classified error wrapping an underlying cause.
func wrapError(op string, code Code, cause error) *Error {
	return &Error{Code: code, Op: op, Err: cause}
}

// Coded returns the Code of err if it is (or wraps) an *Error, and ok=true.
func Coded(err error) (code Code, ok bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
