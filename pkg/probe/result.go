// Package probe implements the HTTP probe executor (C5): a single-service
// check with timeout, retry, and status-code matching.
package probe

import "time"

// Status is the liveness verdict of a single probe.
type Status string

const (
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusUnknown Status = "unknown"
	// StatusDegraded is part of the data model but is never produced by
	// the core HTTP checker itself (§4.5 only distinguishes Up/Down); it is
	// reserved for status sources outside this package, e.g. a future
	// synthetic or composite probe.
	StatusDegraded Status = "degraded"
)

// Result is the outcome of one probe attempt.
type Result struct {
	ID            string
	ServiceName   string
	ServiceURL    string
	Timestamp     time.Time
	Status        Status
	HTTPStatus    int // 0 if no response was received
	Elapsed       time.Duration
	ErrorText     string
	Method        string
	ResponseBytes int64 // -1 if unknown
	Metadata      map[string]string
}

// IsUp reports whether the result represents a healthy probe.
func (r Result) IsUp() bool { return r.Status == StatusUp }
