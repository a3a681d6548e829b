package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/accbmad/accbmad/internal/debug"
)

// Exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitPartial = 2 // execution finished but some entries failed
)

// exitError carries an exit code (and optional hint) out of a command's RunE.
type exitError struct {
	code int
	err  error
	hint string
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// FatalError marks err as fatal: the command could not complete.
//
// Pattern A from the error-handling guide:
// - User input validation failures
// - Configuration that would let a run escape the project
// - Unreadable manifest or unscannable legacy root
func FatalError(format string, args ...interface{}) error {
	return &exitError{code: exitFatal, err: fmt.Errorf(format, args...)}
}

// FatalErrorWithHint is FatalError with an actionable suggestion.
//
// Example:
//
//	return FatalErrorWithHint(err, "Remove '..' segments from the manifest path")
func FatalErrorWithHint(err error, hint string) error {
	return &exitError{code: exitFatal, err: err, hint: hint}
}

// PartialFailure reports a run that completed but recorded per-entry errors.
func PartialFailure(n int) error {
	return &exitError{code: exitPartial, err: fmt.Errorf("%d manifest entries failed", n)}
}

// WarnError writes a warning message and returns. Suppressed by --quiet.
// Use this for optional operations that enhance functionality but aren't required.
func WarnError(w io.Writer, format string, args ...interface{}) {
	debug.PrintNormal(w, "Warning: "+format+"\n", args...)
}

// reportError writes err (and its hint) in the standard format.
func reportError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) && ee.hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", ee.hint)
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFatal
}
