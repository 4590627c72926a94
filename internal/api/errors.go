package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"user-service/internal/apperr"
	"user-service/internal/store"
)

const maskedMessage = "Internal server error"

// NewHTTPErrorHandler renders every error returned by a handler or
// middleware as an ErrorResponse. In production, 5xx details stay in the log.
func NewHTTPErrorHandler(production bool, logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message, fields := classify(err, c)
		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("Error occurred")
			if production {
				message = maskedMessage
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = fail(c, status, message, fields...)
		}
		if err != nil {
			logger.Error().Err(err).Msg("Error writing error response")
		}
	}
}

func classify(err error, c echo.Context) (int, string, []apperr.FieldError) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		if ae.Kind == apperr.Internal {
			return ae.StatusCode(), ae.Error(), nil
		}
		return ae.StatusCode(), ae.Message, ae.Fields
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he == echo.ErrNotFound || he == echo.ErrMethodNotAllowed {
			return http.StatusNotFound, fmt.Sprintf("Route %s not found", c.Request().RequestURI), nil
		}
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		return he.Code, msg, nil
	}

	if store.IsUniqueViolation(err) {
		return http.StatusConflict, "Resource already exists", nil
	}
	return http.StatusInternalServerError, err.Error(), nil
}
