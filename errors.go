package streamrig

import (
	"errors"
	"fmt"
	"syscall"
)

// Error is a structured streamrig error carrying the operation,
// handle, and segment context a caller needs to decide how to react,
// directly adapted from the teacher's errors.go.
type Error struct {
	Op      string        // Operation that failed (e.g. "Read", "Create")
	Handle  Handle        // Machine handle (0 if not applicable)
	Segment string        // Segment/stream name (empty if not applicable)
	Code    ErrorCode     // High-level error category
	Errno   syscall.Errno // Underlying errno (0 if not applicable)
	Msg     string        // Human-readable message
	Inner   error         // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Handle != 0 {
		parts = append(parts, fmt.Sprintf("handle=%d", e.Handle))
	}
	if e.Segment != "" {
		parts = append(parts, fmt.Sprintf("segment=%s", e.Segment))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("streamrig: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("streamrig: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support for both *Error and the legacy
// sentinel string-constant type below.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if le, ok := target.(legacyError); ok {
		return e.Code == ErrorCode(le)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode is the high-level category a streamrig error falls into,
// enumerating exactly the error kinds the core's propagation policy
// names: unknown handle/kind, bad argument, arena exhaustion,
// low-water gating, a disabled/stopped endpoint, an underlying I/O
// failure, and source end-of-data.
type ErrorCode string

const (
	NotFound          ErrorCode = "not found"
	InvalidArgument   ErrorCode = "invalid argument"
	ResourceExhausted ErrorCode = "resource exhausted"
	WouldBlock        ErrorCode = "would block"
	Stopped           ErrorCode = "stopped"
	IoFailed          ErrorCode = "io failed"
	Complete          ErrorCode = "complete"
)

// legacyError is a bare string-constant error type, the equivalent of
// the teacher's legacy UblkError — kept so callers that only care "is
// this a not-found error" can compare against a plain sentinel instead
// of constructing an *Error.
type legacyError string

func (e legacyError) Error() string { return string(e) }

// Legacy sentinel errors, one per ErrorCode.
const (
	ErrNotFound          legacyError = legacyError(NotFound)
	ErrInvalidArgument   legacyError = legacyError(InvalidArgument)
	ErrResourceExhausted legacyError = legacyError(ResourceExhausted)
	ErrWouldBlock        legacyError = legacyError(WouldBlock)
	ErrStopped           legacyError = legacyError(Stopped)
	ErrIoFailed          legacyError = legacyError(IoFailed)
	ErrComplete          legacyError = legacyError(Complete)
)

// NewError creates a structured error with no handle/segment context.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a structured error wrapping an errno.
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{Op: op, Code: code, Errno: errno, Msg: errno.Error()}
}

// NewHandleError creates a structured error scoped to a specific
// machine handle.
func NewHandleError(op string, h Handle, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Handle: h, Code: code, Msg: msg}
}

// NewSegmentError creates a structured error scoped to a handle and
// the segment/stream name it occurred in.
func NewSegmentError(op string, h Handle, segment string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Handle: h, Segment: segment, Code: code, Msg: msg}
}

// WrapError wraps an existing error with streamrig context, mapping a
// bare syscall.Errno to its ErrorCode via mapErrnoToCode.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if se, ok := inner.(*Error); ok {
		return &Error{
			Op:      op,
			Handle:  se.Handle,
			Segment: se.Segment,
			Code:    se.Code,
			Errno:   se.Errno,
			Msg:     se.Msg,
			Inner:   se.Inner,
		}
	}

	if errno, ok := inner.(syscall.Errno); ok {
		return &Error{
			Op:    op,
			Code:  mapErrnoToCode(errno),
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{Op: op, Code: IoFailed, Msg: inner.Error(), Inner: inner}
}

// mapErrnoToCode maps a syscall errno to an ErrorCode.
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT:
		return NotFound
	case syscall.EINVAL, syscall.E2BIG:
		return InvalidArgument
	case syscall.ENOMEM, syscall.ENOSPC:
		return ResourceExhausted
	case syscall.EAGAIN:
		return WouldBlock
	case syscall.EPIPE, syscall.ECONNRESET:
		return IoFailed
	default:
		return IoFailed
	}
}

// IsCode reports whether err is (or wraps) a *Error with the given
// code.
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsErrno reports whether err is (or wraps) a *Error carrying the
// given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Errno == errno
	}
	return false
}
