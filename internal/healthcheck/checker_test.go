package healthcheck

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChecker struct {
	result CheckResult
}

func (c staticChecker) Check(context.Context) CheckResult { return c.result }

func TestRegistryRunsAllChecks(t *testing.T) {
	reg := NewRegistry(slog.Default(),
		staticChecker{CheckResult{ID: "a", Status: StatusOK}},
		staticChecker{CheckResult{ID: "b", Status: StatusWarn}},
	)

	results := reg.Run(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].ID)
	assert.Equal(t, "b", results[1].ID)
	assert.True(t, Healthy(results), "warnings do not make the service unhealthy")
}

func TestHealthyFailsOnError(t *testing.T) {
	reg := NewRegistry(slog.Default(),
		staticChecker{CheckResult{ID: "a", Status: StatusOK}},
		staticChecker{CheckResult{ID: "b", Status: StatusError, Summary: "down"}},
	)

	results := reg.Run(context.Background())
	assert.False(t, Healthy(results))
}
