package middleware

import (
	"context"
	"log/slog"
	"net/http"

	deliverycontext "evently/internal/delivery/context"
	"evently/internal/delivery/http/response"
	domainerrors "evently/internal/domain/errors"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/fx"
)

// ErrorReporter receives errors that could not be mapped to a client error.
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

// ErrorMiddlewareParams holds dependencies for ErrorMiddleware, injected by Fx.
type ErrorMiddlewareParams struct {
	fx.In

	Logger   *slog.Logger
	Reporter ErrorReporter `optional:"true"`
}

// ErrorMiddleware error handling middleware
type ErrorMiddleware struct {
	logger   *slog.Logger
	reporter ErrorReporter
}

// NewErrorMiddleware creates a new error handling middleware
func NewErrorMiddleware(params ErrorMiddlewareParams) *ErrorMiddleware {
	return &ErrorMiddleware{
		logger:   params.Logger,
		reporter: params.Reporter,
	}
}

// HandleHTTPError handles errors as Echo's HTTPErrorHandler
func (m *ErrorMiddleware) HandleHTTPError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var appErr domainerrors.AppError
	if errors.As(err, &appErr) && appErr.HTTPCode() < http.StatusInternalServerError {
		m.write(c, response.AppError(c, appErr))

		return
	}

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) && httpErr.Code < http.StatusInternalServerError {
		message := http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok && msg != "" {
			message = msg
		}
		m.write(c, response.Error(c, httpErr.Code, "HTTP_ERROR", message, ""))

		return
	}

	// Server side failure: log and report it, answer with a generic body
	ctx := c.Request().Context()
	deliverycontext.GetLoggerOrDefault(ctx, m.logger).Error("Unhandled error",
		slog.Any("error", err),
		slog.String("path", c.Path()),
		slog.String("method", c.Request().Method),
	)
	if m.reporter != nil {
		m.reporter.CaptureError(ctx, err, map[string]string{
			"path":       c.Path(),
			"method":     c.Request().Method,
			"request_id": deliverycontext.GetRequestIDFromContext(ctx),
		})
	}

	code := domainerrors.ErrInternalError.ErrorCode()
	if errors.As(err, &appErr) {
		code = appErr.ErrorCode()
	}
	m.write(c, response.Error(c, http.StatusInternalServerError, code, "Internal server error", ""))
}

func (m *ErrorMiddleware) write(c echo.Context, err error) {
	if err != nil {
		m.logger.Error("Failed to write error response", slog.Any("error", err))
	}
}
