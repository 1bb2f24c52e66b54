// Package healthcheck aggregates runtime checks for the admin surface.
package healthcheck

import (
	"context"
	"log/slog"
	"time"
)

const (
	// StatusOK indicates the check passed.
	StatusOK = "ok"
	// StatusWarn indicates the check completed with a warning.
	StatusWarn = "warn"
	// StatusError indicates the check failed.
	StatusError = "error"
)

// CheckResult is one runtime check item produced by a checker.
type CheckResult struct {
	ID      string         `json:"id"`
	Status  string         `json:"status"`
	Summary string         `json:"summary"`
	Detail  string         `json:"detail,omitempty"`
	Took    time.Duration  `json:"took_ns"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// Checker evaluates one runtime check.
type Checker interface {
	Check(ctx context.Context) CheckResult
}

const checkTimeout = 5 * time.Second

// Registry runs every registered checker with a bounded per-check timeout.
type Registry struct {
	logger   *slog.Logger
	checkers []Checker
}

func NewRegistry(log *slog.Logger, checkers ...Checker) *Registry {
	return &Registry{
		logger:   log.With(slog.String("service", "healthcheck")),
		checkers: checkers,
	}
}

// Run evaluates all checks and returns their results in registration order.
func (r *Registry) Run(ctx context.Context) []CheckResult {
	results := make([]CheckResult, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		start := time.Now()
		res := c.Check(checkCtx)
		cancel()
		res.Took = time.Since(start)
		if res.Status != StatusOK {
			r.logger.Warn("check degraded",
				slog.String("check", res.ID),
				slog.String("status", res.Status),
				slog.String("summary", res.Summary),
			)
		}
		results = append(results, res)
	}
	return results
}

// Healthy reports whether no check failed outright.
func Healthy(results []CheckResult) bool {
	for _, r := range results {
		if r.Status == StatusError {
			return false
		}
	}
	return true
}
