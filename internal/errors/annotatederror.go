// Package errors decorates errors with the source location and [slog.Attr] annotations of the call site, so that a
// single log line carries the context collected while the error travelled up the stack.
//
// It re-exports the helpers of the standard library errors package so that callers only need one import.
package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
)

// annotatedError wraps an error with a message, the program counter of the call site and optional attributes.
type annotatedError struct {
	msg   string
	err   error
	pc    uintptr
	attrs []slog.Attr
}

func (e *annotatedError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *annotatedError) Unwrap() error {
	return e.err
}

// NewSentinel creates an error meant to be declared at package level and compared with [Is].
//
// Sentinels carry no call-site information because they are created during package initialisation.
func NewSentinel(msg string) error {
	return stderrors.New(msg) //nolint:err113 // this is the sentinel constructor.
}

// New creates an error annotated with the caller's source location and attrs.
func New(msg string, attrs ...slog.Attr) error {
	return &annotatedError{msg: msg, err: nil, pc: callerPC(), attrs: attrs}
}

// Wrap annotates err with msg, the caller's source location and attrs. Wrapping a nil error returns nil.
func Wrap(err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	return &annotatedError{msg: msg, err: err, pc: callerPC(), attrs: attrs}
}

// DecoratePanic converts a recovered panic value into an error pointing at the line that panicked.
func DecoratePanic(recovered any) error {
	if recovered == nil {
		return nil
	}
	var cause error
	if err, ok := recovered.(error); ok {
		cause = err
	} else {
		cause = stderrors.New(fmt.Sprint(recovered)) //nolint:err113 // dynamic panic message.
	}
	return &annotatedError{msg: "panic", err: cause, pc: panicPC(), attrs: nil}
}

// SlogError returns the error as a structured "error" group containing the message, the deepest known source
// location and all annotations collected along the wrap chain.
func SlogError(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}

	var (
		source string
		attrs  []slog.Attr
	)
	walk(err, func(ae *annotatedError) {
		attrs = append(attrs, ae.attrs...)
		if ae.pc != 0 {
			// The deepest annotation is the closest to the root cause.
			source = formatPC(ae.pc)
		}
	})

	group := []any{slog.String("message", err.Error())}
	if source != "" {
		group = append(group, slog.String("source", source))
	}
	if len(attrs) > 0 {
		annotations := make([]any, len(attrs))
		for i, a := range attrs {
			annotations[i] = a
		}
		group = append(group, slog.Group("annotations", annotations...))
	}
	return slog.Group("error", group...)
}

// walk visits every annotatedError reachable from err, including the branches of joined errors.
func walk(err error, visit func(*annotatedError)) {
	for err != nil {
		if ae, ok := err.(*annotatedError); ok { //nolint:errorlint // walking the chain manually.
			visit(ae)
		}
		if joined, ok := err.(interface{ Unwrap() []error }); ok { //nolint:errorlint // same as above.
			for _, e := range joined.Unwrap() {
				walk(e, visit)
			}
			return
		}
		err = stderrors.Unwrap(err)
	}
}

// callerPC returns the program counter of the function calling the exported constructor.
func callerPC() uintptr {
	var pcs [1]uintptr
	// Skip runtime.Callers, callerPC and the exported constructor.
	if runtime.Callers(3, pcs[:]) == 0 { //nolint:mnd // see comment above.
		return 0
	}
	return pcs[0]
}

// panicPC returns the program counter of the frame that called panic.
func panicPC() uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(1, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	afterPanic := false
	for {
		frame, more := frames.Next()
		if afterPanic {
			return frame.PC + 1
		}
		if frame.Function == "runtime.gopanic" {
			afterPanic = true
		}
		if !more {
			return 0
		}
	}
}

func formatPC(pc uintptr) string {
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return frame.File + ":" + strconv.Itoa(frame.Line)
}

// Is reports whether any error in err's tree matches target. See [stderrors.Is].
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target. See [stderrors.As].
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Unwrap returns the result of calling the Unwrap method on err. See [stderrors.Unwrap].
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}

// Join returns an error that wraps the given errors. See [stderrors.Join].
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}
