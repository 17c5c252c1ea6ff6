package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

const healthTimeout = 5 * time.Second

// requiredTables are the relations the record repositories query.
var requiredTables = []string{"patients", "diagnoses"}

// PoolStats is the pool snapshot reported by /health/db.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

// HealthReport is the /health/db response body.
type HealthReport struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Tables map[string]bool `json:"tables,omitempty"`
	Pool   *PoolStats      `json:"pool"`
}

// Checker is what the health check needs from the database.
type Checker interface {
	Ping(ctx context.Context) error
	TablesPresent(ctx context.Context, names []string) (map[string]bool, error)
}

type poolChecker struct {
	pool *pgxpool.Pool
}

func (p poolChecker) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p poolChecker) TablesPresent(ctx context.Context, names []string) (map[string]bool, error) {
	present := make(map[string]bool, len(names))
	for _, name := range names {
		var ok bool
		if err := p.pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, name).Scan(&ok); err != nil {
			return nil, err
		}
		present[name] = ok
	}
	return present, nil
}

func poolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
	}
}

// HealthHandler pings the database and checks that the schema has been
// applied. It answers 503 when either fails.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return healthHandler(poolChecker{pool: pool}, func() *PoolStats { return poolStats(pool) })
}

func healthHandler(p Checker, stats func() *PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
		defer cancel()

		report := HealthReport{Status: "healthy", Pool: stats()}
		if err := p.Ping(ctx); err != nil {
			report.Status = "unreachable"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}

		tables, err := p.TablesPresent(ctx, requiredTables)
		if err != nil {
			report.Status = "unreachable"
			report.Error = err.Error()
			return c.JSON(http.StatusServiceUnavailable, report)
		}
		report.Tables = tables
		for _, ok := range tables {
			if !ok {
				report.Status = "schema_missing"
				return c.JSON(http.StatusServiceUnavailable, report)
			}
		}
		return c.JSON(http.StatusOK, report)
	}
}
