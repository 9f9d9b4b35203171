package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/greenhouse-led-hub/internal/logger"
	"github.com/iliyamo/greenhouse-led-hub/internal/view"
)

// NewHTTPErrorHandler renders errors returned by handlers.  JSON routes
// (/api, /v1) get {"error": ...}; browser routes get the error page.
// Unexpected errors are logged and reported as 500 without detail.
func NewHTTPErrorHandler(log *logger.Logger) echo.HTTPErrorHandler {
	log = log.WithComponent("http")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)
		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				message = m
			} else {
				message = http.StatusText(status)
			}
		} else {
			log.Error().Err(err).
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Msg("request failed")
		}

		var werr error
		switch {
		case c.Request().Method == http.MethodHead:
			werr = c.NoContent(status)
		case isJSONRoute(c.Request().URL.Path) || c.Echo().Renderer == nil:
			werr = c.JSON(status, echo.Map{"error": message})
		default:
			werr = c.Render(status, "error.html", view.Page{Status: status, Message: message})
		}
		if werr != nil {
			log.Error().Err(werr).Msg("writing error response failed")
		}
	}
}

func isJSONRoute(path string) bool {
	return strings.HasPrefix(path, "/api/") || strings.HasPrefix(path, "/v1/") || path == "/healthz"
}
