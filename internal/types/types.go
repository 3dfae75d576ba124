// Package types defines shared data structures (Domain, Status, Annotation,
// Results) used across the tools, runner and output packages to prevent
// import cycles.
package types

import (
	"fmt"
	"strings"
)

// Domain is a category of check a tool can participate in.
type Domain string

const (
	DomainFormat Domain = "Format"
	DomainLint   Domain = "Lint"
	DomainAudit  Domain = "Audit"
)

// AllDomains returns every domain in run order.
func AllDomains() []Domain {
	return []Domain{DomainFormat, DomainLint, DomainAudit}
}

// ParseDomain matches a domain name case-insensitively.
func ParseDomain(s string) (Domain, bool) {
	for _, d := range AllDomains() {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, true
		}
	}
	return "", false
}

// Status is the outcome of a single annotation or of a whole tool run.
// Values are ordered: a larger Status is a worse outcome.
type Status int

const (
	StatusPassed Status = iota
	StatusFixed
	StatusWarning
	StatusFailed
	StatusError
)

// AllStatuses returns every status from best to worst.
func AllStatuses() []Status {
	return []Status{StatusPassed, StatusFixed, StatusWarning, StatusFailed, StatusError}
}

func (s Status) String() string {
	switch s {
	case StatusPassed:
		return "Passed"
	case StatusFixed:
		return "Fixed"
	case StatusWarning:
		return "Warning"
	case StatusFailed:
		return "Failed"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Short returns the four-character form used in summaries.
func (s Status) Short() string {
	switch s {
	case StatusPassed:
		return "PASS"
	case StatusFixed:
		return "+FIX"
	case StatusWarning:
		return "WARN"
	case StatusFailed:
		return "FAIL"
	case StatusError:
		return "ERR!"
	default:
		return "????"
	}
}

// ParseStatus converts a status name to a Status.
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "passed", "pass":
		return StatusPassed, nil
	case "fixed", "fix":
		return StatusFixed, nil
	case "warning", "warn":
		return StatusWarning, nil
	case "failed", "fail":
		return StatusFailed, nil
	case "error", "err":
		return StatusError, nil
	default:
		return StatusPassed, fmt.Errorf("unknown status: %q", s)
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
