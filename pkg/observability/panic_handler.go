package observability

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

// PanicError is a recovered panic converted into an error
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// RecoverPanic recovers from a panic and logs it with structured logging
//
// Usage in defer statements:
//
//	func riskyOperation() {
//	    defer observability.RecoverPanic(logger, "risky operation")
//	    // ... code that might panic
//	}
//
// After logging, the panic is NOT re-raised.
func RecoverPanic(logger logrus.FieldLogger, where string) {
	if r := recover(); r != nil {
		logPanic(logger, where, r, debug.Stack())
	}
}

// CapturePanic recovers from a panic, logs it and stores it in *errp as a
// *PanicError. It must be deferred directly:
//
//	func callHook() (err error) {
//	    defer observability.CapturePanic(&err, logger, "plugin activate")
//	    return hook()
//	}
func CapturePanic(errp *error, logger logrus.FieldLogger, where string) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		logPanic(logger, where, r, stack)
		if errp != nil {
			*errp = &PanicError{Value: r, Stack: stack}
		}
	}
}

// MustRecover converts a recovered value to an error, or nil if r is nil
func MustRecover(r interface{}) error {
	if r != nil {
		return &PanicError{Value: r}
	}
	return nil
}

func logPanic(logger logrus.FieldLogger, where string, r interface{}, stack []byte) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithFields(logrus.Fields{
		"panic":   r,
		"stack":   string(stack),
		"context": where,
	}).Error("PANIC recovered")
}
