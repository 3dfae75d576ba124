package types

import (
	"encoding/json"
	"errors"
	"slices"
	"time"
)

// ToolResult summarises one tool run in one domain.
type ToolResult struct {
	Tool     string         `json:"tool"`
	Domain   Domain         `json:"domain"`
	Status   Status         `json:"status"`
	ExitCode int            `json:"exit_code"`
	Counts   map[Status]int `json:"counts"`
	Duration time.Duration  `json:"-"`
}

// AnnotationCount returns the number of annotations with exactly the given status.
func (r ToolResult) AnnotationCount(status Status) int {
	return r.Counts[status]
}

// AnnotationAbove returns the number of annotations at or above the given status.
func (r ToolResult) AnnotationAbove(status Status) int {
	n := 0
	for s, c := range r.Counts {
		if s >= status {
			n += c
		}
	}
	return n
}

// MarshalJSON implements custom JSON marshaling so Duration serializes as milliseconds.
func (r ToolResult) MarshalJSON() ([]byte, error) {
	type Alias ToolResult
	counts := make(map[string]int, len(r.Counts))
	for s, c := range r.Counts {
		counts[s.String()] = c
	}
	return json.Marshal(struct {
		Alias
		Counts     map[string]int `json:"counts"`
		DurationMS int64          `json:"duration_ms"`
	}{
		Alias:      Alias(r),
		Counts:     counts,
		DurationMS: r.Duration.Milliseconds(),
	})
}

// Record is everything the runner learned from one tool invocation.
type Record struct {
	Tool                string
	Domain              Domain
	Command             []string
	AcceptableExitCodes []int
	ExitCode            int
	TimedOut            bool
	Annotations         []Annotation
	Errors              []error
	Duration            time.Duration
}

// Results aggregates every tool run of one invocation.
type Results struct {
	RunID       string        `json:"run_id,omitempty"`
	Root        string        `json:"root"`
	Success     bool          `json:"success"`
	Annotations []Annotation  `json:"annotations"`
	Errors      []error       `json:"-"`
	Tools       []ToolResult  `json:"tools"`
	Duration    time.Duration `json:"-"`
}

// NewResults returns an empty, successful result set for root.
func NewResults(root string) *Results {
	return &Results{Root: root, Success: true}
}

// Record folds one tool run into the results and returns its summary.
func (r *Results) Record(rec Record) ToolResult {
	errs := slices.Clone(rec.Errors)
	if !rec.TimedOut && !slices.Contains(rec.AcceptableExitCodes, rec.ExitCode) {
		errs = append(errs, &ProcessError{ExitCode: rec.ExitCode, Command: rec.Command})
	}

	counts := make(map[Status]int)
	status := StatusPassed
	for _, a := range rec.Annotations {
		counts[a.Status]++
		status = max(status, a.Status)
	}
	if len(errs) > 0 {
		status = StatusError
	}

	result := ToolResult{
		Tool:     rec.Tool,
		Domain:   rec.Domain,
		Status:   status,
		ExitCode: rec.ExitCode,
		Counts:   counts,
		Duration: rec.Duration,
	}

	r.Success = r.Success && status < StatusFailed
	r.Annotations = append(r.Annotations, rec.Annotations...)
	r.Errors = append(r.Errors, errs...)
	r.Tools = append(r.Tools, result)
	return result
}

// Status returns the worst status across all recorded tools.
func (r *Results) Status() Status {
	status := StatusPassed
	for _, t := range r.Tools {
		status = max(status, t.Status)
	}
	return status
}

// HasTimeout reports whether any tool was killed for running too long.
func (r *Results) HasTimeout() bool {
	for _, err := range r.Errors {
		var te *TimeoutError
		if errors.As(err, &te) {
			return true
		}
	}
	return false
}

// MarshalJSON implements custom JSON marshaling so Duration serializes as
// milliseconds and errors as their messages.
func (r Results) MarshalJSON() ([]byte, error) {
	type Alias Results
	msgs := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		msgs = append(msgs, err.Error())
	}
	return json.Marshal(struct {
		Alias
		Errors     []string `json:"errors"`
		DurationMS int64    `json:"duration_ms"`
	}{
		Alias:      Alias(r),
		Errors:     msgs,
		DurationMS: r.Duration.Milliseconds(),
	})
}
