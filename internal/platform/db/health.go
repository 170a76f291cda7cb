package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the connection pool snapshot attached to health responses.
type PoolStats struct {
	TotalConns    int32  `json:"total_conns"`
	IdleConns     int32  `json:"idle_conns"`
	AcquiredConns int32  `json:"acquired_conns"`
	MaxConns      int32  `json:"max_conns"`
	AcquireCount  int64  `json:"acquire_count"`
	AcquireWait   string `json:"acquire_wait"`
}

func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:    stat.TotalConns(),
		IdleConns:     stat.IdleConns(),
		AcquiredConns: stat.AcquiredConns(),
		MaxConns:      stat.MaxConns(),
		AcquireCount:  stat.AcquireCount(),
		AcquireWait:   stat.AcquireDuration().String(),
	}
}

// Health is the body of a health check response.
type Health struct {
	Status  string     `json:"status"`
	Backend string     `json:"backend"`
	Error   string     `json:"error,omitempty"`
	Pool    *PoolStats `json:"pool,omitempty"`
}

// Check probes a resource store backend.
type Check func(ctx context.Context) error

// HealthHandler runs check with a five second budget and answers 200 when it
// passes and 503 otherwise. stats may be nil.
func HealthHandler(backend string, check Check, stats func() *PoolStats) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		h := Health{Status: "healthy", Backend: backend}
		code := http.StatusOK
		if err := check(ctx); err != nil {
			h.Status = "unhealthy"
			h.Error = err.Error()
			code = http.StatusServiceUnavailable
		}
		if stats != nil {
			h.Pool = stats()
		}
		return c.JSON(code, h)
	}
}

// PoolHealthHandler reports the reachability and pool statistics of a
// PostgreSQL-backed store.
func PoolHealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return HealthHandler("postgres", pool.Ping, func() *PoolStats { return GetPoolStats(pool) })
}
