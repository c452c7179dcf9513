// Package errors extends the standard errors package with typed,
// chainable application errors.
//
// Every error carries an ErrorType and may wrap a cause:
//
//	err := errors.New(errors.NotFound, "thread not found")
//
//	if err != nil {
//	    return errors.Wrap(err, errors.ExecutionFailed, "comment fetch failed")
//	}
//
//	if errors.Is(err, errors.NotFound) {
//	    // handle missing resource
//	}
//
// RootCause walks the chain to the innermost error, and %+v prints the
// chain together with the captured stack.
package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// AppError is the standard error representation of the application.
type AppError struct {
	errType ErrorType
	message string
	cause   error
	stack   []StackFrame
}

// Type returns the error classification.
func (e *AppError) Type() ErrorType {
	return e.errType
}

// Message returns the message without the cause chain.
func (e *AppError) Message() string {
	return e.message
}

// Stack returns the stack captured at creation time.
func (e *AppError) Stack() []StackFrame {
	if e.stack == nil {
		return nil
	}
	return e.stack
}

func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.errType, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.errType, e.message)
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Format implements fmt.Formatter. %+v prints the error chain and the
// stack trace.
func (e *AppError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "[%s] %s", e.errType, e.message)

			// The stack is printed only at the root of the chain or at
			// the boundary to a non-AppError cause. Intermediate links
			// would repeat nearly identical frames.
			var target *AppError
			if e.cause == nil || !errors.As(e.cause, &target) {
				if len(e.stack) > 0 {
					fmt.Fprint(s, "\nStack trace:")
					for _, frame := range e.stack {
						funcName := frame.Function
						if idx := strings.LastIndex(funcName, "/"); idx != -1 {
							funcName = funcName[idx+1:]
						}
						fmt.Fprintf(s, "\n\t%s:%d %s", frame.File, frame.Line, funcName)
					}
				}
			}

			if e.cause != nil {
				fmt.Fprint(s, "\nCaused by:\n")
				if formatter, ok := e.cause.(fmt.Formatter); ok {
					formatter.Format(s, verb)
				} else {
					fmt.Fprintf(s, "\t%v", e.cause)
				}
			}
			return
		}
		fallthrough
	case 's':
		io.WriteString(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}

// New creates a new typed error.
func New(errType ErrorType, message string) error {
	return &AppError{
		errType: errType,
		message: message,
		stack:   captureStack(defaultCallerSkip),
	}
}

// Newf creates a new typed error from a format string.
func Newf(errType ErrorType, format string, args ...any) error {
	return &AppError{
		errType: errType,
		message: fmt.Sprintf(format, args...),
		stack:   captureStack(defaultCallerSkip),
	}
}

// Wrap adds context to an existing error. Returns nil if err is nil.
func Wrap(err error, errType ErrorType, message string) error {
	if err == nil {
		return nil
	}
	return &AppError{
		errType: errType,
		message: message,
		cause:   err,
		stack:   captureStack(defaultCallerSkip),
	}
}

// Wrapf adds formatted context to an existing error. Returns nil if err
// is nil.
func Wrapf(err error, errType ErrorType, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &AppError{
		errType: errType,
		message: fmt.Sprintf(format, args...),
		cause:   err,
		stack:   captureStack(defaultCallerSkip),
	}
}

// Is reports whether any error in the chain carries the given type.
func Is(err error, errType ErrorType) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			if appErr.errType == errType {
				return true
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}

// As finds the first error in the chain matching target's type.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// RootCause returns the innermost error of the chain.
func RootCause(err error) error {
	if err == nil {
		return nil
	}

	for {
		unwrapped := errors.Unwrap(err)
		if unwrapped == nil {
			return err
		}
		err = unwrapped
	}
}

// UnderlyingType returns the ErrorType of the innermost AppError in the
// chain, or Unknown when the chain contains none. Wrapping an external
// error does not hide the type the wrapper assigned to it.
func UnderlyingType(err error) ErrorType {
	var lastAppErrorType ErrorType = Unknown

	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			lastAppErrorType = appErr.errType
		}
		err = errors.Unwrap(err)
	}

	return lastAppErrorType
}
