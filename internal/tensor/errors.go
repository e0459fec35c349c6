package tensor

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ErrorKind classifies failures reported by the tensor core.
type ErrorKind int

// Error kinds.
const (
	// KindValidation marks a recoverable precondition failure (shape
	// mismatch, zero extent, out-of-range slice, bad value count).
	KindValidation ErrorKind = iota
	// KindInvalidObject marks use of a released or never-initialized object.
	KindInvalidObject
	// KindFatal marks a broken invariant: double free, foreign tensor,
	// device library failure, out of device memory.
	KindFatal
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInvalidObject:
		return "invalid object"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Sentinel errors for errors.Is checks against a kind.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrInvalidObject = &Error{Kind: KindInvalidObject}
	ErrFatal         = &Error{Kind: KindFatal}
)

// Error is the failure type of the tensor core.
// It records the source location of the violated precondition.
type Error struct {
	Kind    ErrorKind
	File    string
	Line    int
	Message string
}

// Error renders "file:line: message".
func (e *Error) Error() string {
	if e.File == "" {
		return e.Message
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
}

// Is matches any *Error with the same kind, so the sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

func newError(kind ErrorKind, skip int, format string, args ...any) *Error {
	e := &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
	if _, file, line, ok := runtime.Caller(skip + 1); ok {
		e.File = filepath.Base(file)
		e.Line = line
	}
	return e
}

// validationf returns a stack-carrying validation error located at its caller.
func validationf(format string, args ...any) error {
	return errors.WithStack(newError(KindValidation, 1, format, args...))
}

// invalidf returns a stack-carrying invalid-object error located at its caller.
func invalidf(format string, args ...any) error {
	return errors.WithStack(newError(KindInvalidObject, 1, format, args...))
}

// Validationf is validationf for device packages.
func Validationf(format string, args ...any) error {
	return errors.WithStack(newError(KindValidation, 1, format, args...))
}

// InvalidObjectf is invalidf for packages built on the tensor core.
func InvalidObjectf(format string, args ...any) error {
	return errors.WithStack(newError(KindInvalidObject, 1, format, args...))
}

// Fatalf logs and panics with a fatal *Error located at its caller.
// Devices call it when an invariant is broken; callers are not expected
// to recover.
func Fatalf(format string, args ...any) {
	e := newError(KindFatal, 1, format, args...)
	klog.ErrorS(e, "fatal tensor invariant violation", "file", e.File, "line", e.Line)
	panic(e)
}

// KindOf reports the ErrorKind carried by err, and false if err did not
// originate from the tensor core.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}
