// Package gatewaychecker verifies the chat gateway connection.
package gatewaychecker

import (
	"context"
	"log/slog"
	"time"

	"github.com/parrothq/parrot/internal/healthcheck"
)

// Observer reads the gateway's runtime connection state.
type Observer interface {
	Connected() bool
	Latency() time.Duration
}

// Checker evaluates the gateway connection.
type Checker struct {
	logger   *slog.Logger
	observer Observer
}

func NewChecker(log *slog.Logger, observer Observer) *Checker {
	return &Checker{
		logger:   log.With(slog.String("checker", "gateway")),
		observer: observer,
	}
}

func (c *Checker) Check(_ context.Context) healthcheck.CheckResult {
	res := healthcheck.CheckResult{ID: "gateway.connection"}
	if c.observer == nil {
		res.Status = healthcheck.StatusError
		res.Summary = "gateway not initialized"
		return res
	}
	if !c.observer.Connected() {
		res.Status = healthcheck.StatusError
		res.Summary = "disconnected"
		return res
	}
	res.Status = healthcheck.StatusOK
	res.Summary = "connected"
	res.Meta = map[string]any{"heartbeat_latency_ms": c.observer.Latency().Milliseconds()}
	return res
}
