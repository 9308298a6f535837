package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/farm-monitor/internal/logging"
)

// HTTPErrorHandler is installed as echo's error handler.  The raw error is
// logged; the client gets an envelope.  An *echo.HTTPError keeps its status
// and message, anything else becomes a generic failure so internal error
// text never reaches the client.
func HTTPErrorHandler(log logging.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status := http.StatusInternalServerError
		msg := "服务器内部错误"

		var he *echo.HTTPError
		if errors.As(err, &he) {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		}
		if status >= http.StatusInternalServerError {
			log.Error(c.Request().Context(), "unhandled error",
				"method", c.Request().Method, "path", c.Path(), "err", err)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, Result{Message: msg, Code: 1})
		}
		if werr != nil {
			log.Error(c.Request().Context(), "write error response", "err", werr)
		}
	}
}
