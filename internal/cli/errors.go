package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/deicod/pizzeria/errors"
)

// CommandError provides structured error reporting for CLI commands.
type CommandError struct {
	Message    string
	Cause      error
	Suggestion string
	ExitCode   int
}

// Error implements the error interface.
func (e CommandError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "command failed"
}

// Unwrap exposes the wrapped error.
func (e CommandError) Unwrap() error {
	return e.Cause
}

// ExitStatus returns the process exit code associated with the error.
func (e CommandError) ExitStatus() int {
	if e.ExitCode != 0 {
		return e.ExitCode
	}
	return 1
}

// wrapError builds a CommandError. Hints attached to cause are used when no
// suggestion is given.
func wrapError(message string, cause error, suggestion string, exitCode int) error {
	if suggestion == "" && cause != nil {
		suggestion = errors.FlattenHints(cause)
	}
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return CommandError{
		Message:    message,
		Cause:      cause,
		Suggestion: suggestion,
		ExitCode:   exitCode,
	}
}

// report prints err to w and returns the process exit code.
func report(w io.Writer, err error, verbose bool) int {
	if err == nil {
		return 0
	}
	var cerr CommandError
	if !errors.As(err, &cerr) {
		fmt.Fprintln(w, err)
		if hint := errors.FlattenHints(err); hint != "" {
			fmt.Fprintln(w, formatSuggestion(hint))
		}
		return 1
	}
	msg := strings.TrimSpace(cerr.Message)
	if msg == "" && cerr.Cause != nil {
		msg = cerr.Cause.Error()
	}
	if msg != "" {
		fmt.Fprintln(w, msg)
	}
	if cerr.Cause != nil && msg != cerr.Cause.Error() && verbose {
		fmt.Fprintf(w, "details: %v\n", cerr.Cause)
	}
	if cerr.Suggestion != "" {
		fmt.Fprintln(w, formatSuggestion(cerr.Suggestion))
	}
	return cerr.ExitStatus()
}

func formatSuggestion(hint string) string {
	if hint == "" {
		return ""
	}
	return fmt.Sprintf("hint: %s", hint)
}
