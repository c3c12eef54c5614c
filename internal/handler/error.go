package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/hongjs/code-tanuki/internal/apperr"
	"github.com/hongjs/code-tanuki/internal/service"
	"github.com/hongjs/code-tanuki/internal/store"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const unexpectedErrorMessage = "an unexpected error occurred"

type errorResponse struct {
	Success       bool        `json:"success"`
	Error         string      `json:"error"`
	FailedStep    store.Step  `json:"failedStep,omitempty"`
	FailedService string      `json:"failedService,omitempty"`
	Steps         store.Steps `json:"steps,omitempty"`
}

// ErrorHandler writes every error returned by a handler as a JSON body.
// Pipeline failures carry the failed step and the step breakdown.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, res := errorBody(err)
		fields := []zap.Field{
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		}
		if he, ok := err.(*echo.HTTPError); ok && he.Internal != nil {
			fields = append(fields, zap.NamedError("internal", he.Internal))
		}
		if status >= http.StatusInternalServerError {
			logger.Error("handler error", fields...)
		} else {
			logger.Debug("handler error", fields...)
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, res)
		}
		if err != nil {
			logger.Error("failed to write error response", zap.Error(err))
		}
	}
}

func errorBody(err error) (int, errorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok {
			msg = fmt.Sprint(he.Message)
		}
		return he.Code, errorResponse{Error: msg}
	}

	res := errorResponse{Error: err.Error()}
	var pe *service.PipelineError
	if errors.As(err, &pe) {
		res.FailedStep = pe.Step
		res.FailedService = pe.Label
		res.Steps = pe.Steps
	} else if _, ok := apperr.As(err); !ok {
		res.Error = unexpectedErrorMessage
	}
	return apperr.HTTPStatus(err), res
}

func newError(err error, status int, message string) error {
	e := echo.NewHTTPError(status, message)
	if err != nil {
		e = e.WithInternal(err)
	}
	return e
}
