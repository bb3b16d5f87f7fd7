package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/workmatch/api/internal/marketplace"
)

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// statusFor maps an error kind to its HTTP status. Conflicts answer 400,
// which existing clients already handle.
func statusFor(kind error) int {
	switch {
	case errors.Is(kind, marketplace.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(kind, marketplace.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(kind, marketplace.ErrConflict), errors.Is(kind, marketplace.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "validation"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limited"
	}
	if status >= 500 {
		return "internal"
	}
	return http.StatusText(status)
}

// errorHandler renders every error as {message, code}. Errors that are
// neither marketplace errors nor echo HTTP errors are logged and hidden.
func errorHandler(logger *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		body := errorBody{Message: "internal server error", Code: "internal"}

		var me *marketplace.Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &me):
			status = statusFor(me.Kind)
			body = errorBody{Message: me.Message, Code: me.Code()}
		case errors.As(err, &he):
			status = he.Code
			msg, ok := he.Message.(string)
			if !ok {
				msg = http.StatusText(he.Code)
			}
			body = errorBody{Message: msg, Code: codeForStatus(he.Code)}
		}

		if status >= 500 {
			logger.Error("request failed",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Path()),
				slog.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				slog.Any("error", err))
			body = errorBody{Message: "internal server error", Code: "internal"}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, body)
		}
		if err != nil {
			logger.Error("write error response", slog.Any("error", err))
		}
	}
}
