package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is anything that can report its own health.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// Check names one dependency polled by the health endpoint.
type Check struct {
	Name   string
	Pinger Pinger
}

// Health returns "ok" while every check passes, otherwise 503 naming the
// first dependency that failed.  Load balancers and monitoring poll it.
func Health(checks ...Check) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		for _, ch := range checks {
			if err := ch.Pinger.HealthCheck(ctx); err != nil {
				return c.String(http.StatusServiceUnavailable, "unavailable: "+ch.Name)
			}
		}
		return c.String(http.StatusOK, "ok")
	}
}
