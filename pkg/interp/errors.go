package interp

import (
	"errors"
	"fmt"

	"github.com/bruggerl/clara/pkg/ir"
)

// ErrKind enumerates the failure classes a run can abort with. The harness
// treats them all as a failed test; they stay distinguishable for
// diagnostics.
type ErrKind int

const (
	// ErrRuntime is the catch-all for native evaluation faults: division
	// by zero, bad operand shapes, unknown operators, format errors.
	ErrRuntime ErrKind = iota
	// ErrUnknownFunction reports a call to a function the program lacks.
	ErrUnknownFunction
	// ErrUnknownPlugin reports a language key with no registered semantics.
	ErrUnknownPlugin
	// ErrArity reports a call with the wrong number of arguments.
	ErrArity
	// ErrIndex reports an array access outside [0, len).
	ErrIndex
	// ErrType reports an operand or builtin argument of the wrong kind.
	ErrType
	// ErrTimeout reports that the run exceeded its wall-clock budget.
	ErrTimeout
)

func (k ErrKind) String() string {
	switch k {
	case ErrRuntime:
		return "RuntimeError"
	case ErrUnknownFunction:
		return "UnknownFunction"
	case ErrUnknownPlugin:
		return "UnknownPlugin"
	case ErrArity:
		return "ArityMismatch"
	case ErrIndex:
		return "IndexOutOfBounds"
	case ErrType:
		return "TypeError"
	case ErrTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// Error is the single error type every fallible engine operation returns.
// Expr identifies the failing expression when one is known.
type Error struct {
	Kind ErrKind
	Msg  string
	Expr ir.Expr
}

func (e *Error) Error() string {
	if e.Expr != nil {
		return fmt.Sprintf("%s: %s on execution of '%s'", e.Kind, e.Msg, e.Expr)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Errf builds a kinded error. Language plugins use it for their own
// failures so kinds survive the engine's normalization.
func Errf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the error kind, defaulting to ErrRuntime for foreign
// errors.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrRuntime
}

// wrapExpr normalizes any evaluation fault into an *Error and attaches the
// failing expression to errors that do not already carry one.
func wrapExpr(err error, e ir.Expr) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) {
		if ee.Expr == nil {
			return &Error{Kind: ee.Kind, Msg: ee.Msg, Expr: e}
		}
		return ee
	}
	return &Error{Kind: ErrRuntime, Msg: err.Error(), Expr: e}
}
