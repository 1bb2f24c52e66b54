// Package dbchecker verifies the Postgres connection pool.
package dbchecker

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parrothq/parrot/internal/healthcheck"
)

// Checker pings the database.
type Checker struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func NewChecker(log *slog.Logger, pool *pgxpool.Pool) *Checker {
	return &Checker{
		logger: log.With(slog.String("checker", "db")),
		pool:   pool,
	}
}

func (c *Checker) Check(ctx context.Context) healthcheck.CheckResult {
	res := healthcheck.CheckResult{ID: "db.ping"}
	if c.pool == nil {
		res.Status = healthcheck.StatusError
		res.Summary = "pool not initialized"
		return res
	}
	if err := c.pool.Ping(ctx); err != nil {
		res.Status = healthcheck.StatusError
		res.Summary = "ping failed"
		res.Detail = err.Error()
		return res
	}
	stat := c.pool.Stat()
	res.Status = healthcheck.StatusOK
	res.Summary = "reachable"
	res.Meta = map[string]any{
		"total_conns": stat.TotalConns(),
		"idle_conns":  stat.IdleConns(),
	}
	return res
}
