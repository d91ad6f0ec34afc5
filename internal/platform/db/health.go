package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is the JSON view of pgxpool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
}

func statsOf(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		TotalConns:      s.TotalConns(),
		IdleConns:       s.IdleConns(),
		AcquiredConns:   s.AcquiredConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration().String(),
	}
}

// Check is an extra dependency probed by the health endpoint.
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler pings the database and every extra check. Any failure
// turns the response into a 503.
func HealthHandler(pool *pgxpool.Pool, checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		status := http.StatusOK
		deps := map[string]string{}

		if err := pool.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			deps["postgres"] = err.Error()
		} else {
			deps["postgres"] = "ok"
		}

		for _, chk := range checks {
			if err := chk.Ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				deps[chk.Name] = err.Error()
				continue
			}
			deps[chk.Name] = "ok"
		}

		label := "healthy"
		if status != http.StatusOK {
			label = "unhealthy"
		}
		return c.JSON(status, map[string]interface{}{
			"status":       label,
			"dependencies": deps,
			"pool":         statsOf(pool),
		})
	}
}

// PoolStatsHandler reports connection pool statistics without probing
// other dependencies.
func PoolStatsHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   statsOf(pool),
			})
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   statsOf(pool),
		})
	}
}
