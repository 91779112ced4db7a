package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/haatos/fisherman/internal/security"
	"github.com/haatos/fisherman/internal/service"
	"github.com/haatos/fisherman/internal/webhook"
)

// NewErrorHandler renders every handler error as JSON with the status its
// kind maps to.
func NewErrorHandler(log *zap.SugaredLogger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, message := errorStatus(err)
		if status >= http.StatusInternalServerError {
			log.Errorw("handler error",
				"path", c.Request().URL.Path,
				"status", status,
				"error", err,
			)
		} else {
			log.Warnw("rejected request",
				"path", c.Request().URL.Path,
				"status", status,
				"error", err,
			)
		}

		if err := c.JSON(status, ErrorResponse{Message: message}); err != nil {
			log.Errorw("err returning json", "error", err)
		}
	}
}

func errorStatus(err error) (int, string) {
	var httpErr *echo.HTTPError
	var unknownEvent webhook.UnknownEventTypeError
	var malformedPayload webhook.MalformedPayloadError

	switch {
	case errors.As(err, &httpErr):
		return httpErr.Code, fmt.Sprint(httpErr.Message)
	case errors.Is(err, security.ErrMissingSignature),
		errors.Is(err, security.ErrUnexpectedSignature),
		errors.Is(err, security.ErrMalformedSignature):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &unknownEvent):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, security.ErrSignatureMismatch):
		return http.StatusUnauthorized, err.Error()
	case errors.As(err, &malformedPayload):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, service.ErrQueueFull), errors.Is(err, service.ErrQueueClosed):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, "something went terribly wrong"
}
