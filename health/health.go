package health

import (
	"context"
	"errors"
	"time"
)

// ErrCheckTimeout is the error recorded when a check exceeds the registry
// timeout.
var ErrCheckTimeout = errors.New("health: check timed out")

// Status is the outcome class of a health check.
type Status int

const (
	// StatusHealthy means the component is fully functional.
	StatusHealthy Status = iota
	// StatusDegraded means the component works but with reduced service,
	// e.g. the engine is serving misses because the store is slow.
	StatusDegraded
	// StatusUnhealthy means the component is not functional.
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Result is the outcome of one health check.
type Result struct {
	Status   Status
	Message  string
	Duration time.Duration
	Error    error
}

// Healthy builds a passing result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded builds a degraded result.
func Degraded(message string, err error) Result {
	return Result{Status: StatusDegraded, Message: message, Error: err}
}

// Unhealthy builds a failing result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err}
}

// Checker probes one component.
type Checker interface {
	// Name identifies the component in reports.
	Name() string

	// Check performs the probe. Implementations honor ctx cancellation.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc wraps fn as a named Checker.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }
