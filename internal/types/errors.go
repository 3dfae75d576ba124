package types

import (
	"fmt"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"
)

// InvalidDomainError is returned when a tool is built for a domain it
// does not support.
type InvalidDomainError struct {
	Domain Domain
	Tool   string
}

func (e *InvalidDomainError) Error() string {
	return fmt.Sprintf("%s does not support the %s domain", e.Tool, e.Domain)
}

// OutputParsingError reports tool output that could not be understood.
type OutputParsingError struct {
	Expected string
	Data     string
	Err      error
}

func (e *OutputParsingError) Error() string {
	var b strings.Builder
	b.WriteString("error parsing output")
	if e.Expected != "" {
		fmt.Fprintf(&b, "\nExpected: %s", e.Expected)
	}
	fmt.Fprintf(&b, "\nSaw: %s", strings.TrimRight(e.Data, "\r\n"))
	if e.Err != nil {
		fmt.Fprintf(&b, "\nCause: %v", e.Err)
	}
	return b.String()
}

func (e *OutputParsingError) Unwrap() error { return e.Err }

// ProcessError records a tool exiting with a code it does not accept.
type ProcessError struct {
	ExitCode int
	Command  []string
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process exited with unexpected code %d\nCommand: %s", e.ExitCode, QuoteCommand(e.Command))
}

// TimeoutError records a tool killed for running too long.
type TimeoutError struct {
	Tool  string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s did not finish within %s and was killed", e.Tool, e.After)
}

// ExecError records a tool that could not be started at all.
type ExecError struct {
	Tool string
	Err  error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Tool, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// QuoteCommand renders args as a command line a POSIX shell would parse back
// into the same arguments.
func QuoteCommand(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		q, err := syntax.Quote(arg, syntax.LangBash)
		if err != nil {
			q = arg
		}
		quoted[i] = q
	}
	return strings.Join(quoted, " ")
}
