package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
)

// ErrorBody is the JSON envelope for every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorHandler renders domain errors with their attached status, keeps the
// status of *echo.HTTPError, and hides everything else behind a 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		rid, _ := c.Get("request_id").(string)

		status, body := classify(err)
		body.RequestID = rid

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("request_id", rid).
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, ErrorBody{Error: body})
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", rid).Msg("write error response")
		}
	}
}

func classify(err error) (int, ErrorDetail) {
	// A body cut off by BodyLimit surfaces as a decode error wrapped by the
	// handler; the size limit wins over the outer 400.
	if tooBig := bodyTooLarge(err); tooBig != nil {
		return tooBig.Code, ErrorDetail{Code: apperr.CodeTooLarge, Message: fmt.Sprintf("%v", tooBig.Message)}
	}

	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Status, ErrorDetail{Code: appErr.Code, Message: appErr.Message}
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.Internal != nil {
			var inner *apperr.Error
			if errors.As(httpErr.Internal, &inner) {
				return inner.Status, ErrorDetail{Code: inner.Code, Message: inner.Message}
			}
		}
		msg := http.StatusText(httpErr.Code)
		if httpErr.Message != nil {
			msg = fmt.Sprintf("%v", httpErr.Message)
		}
		return httpErr.Code, ErrorDetail{Code: codeForStatus(httpErr.Code), Message: msg}
	}

	return http.StatusInternalServerError, ErrorDetail{Code: apperr.CodeInternal, Message: "internal server error"}
}

// bodyTooLarge walks nested echo errors looking for a 413.
func bodyTooLarge(err error) *echo.HTTPError {
	for err != nil {
		var httpErr *echo.HTTPError
		if !errors.As(err, &httpErr) {
			return nil
		}
		if httpErr.Code == http.StatusRequestEntityTooLarge {
			return httpErr
		}
		err = httpErr.Internal
	}
	return nil
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return apperr.CodeInvalid
	case http.StatusNotFound:
		return apperr.CodeNotFound
	case http.StatusConflict:
		return apperr.CodeConflict
	case http.StatusUnprocessableEntity:
		return apperr.CodeUnprocessable
	case http.StatusRequestEntityTooLarge:
		return apperr.CodeTooLarge
	case http.StatusInternalServerError:
		return apperr.CodeInternal
	}
	return strings.ReplaceAll(strings.ToLower(http.StatusText(status)), " ", "_")
}

// responseStatus is the status the client will see for err once the error
// handler has run.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	status, _ := classify(err)
	return status
}
