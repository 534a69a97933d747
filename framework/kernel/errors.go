package kernel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/logger"
	"github.com/km-arc/go-kernel/framework/routing"
)

// ErrorHandler renders a failure into a response. The kernel resolves it
// from ErrorHandlerKey for every failing step.
type ErrorHandler interface {
	Render(ctx context.Context, s *container.Scope, err error) (*gohttp.Response, error)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(ctx context.Context, s *container.Scope, err error) (*gohttp.Response, error)

func (f ErrorHandlerFunc) Render(ctx context.Context, s *container.Scope, err error) (*gohttp.Response, error) {
	return f(ctx, s, err)
}

// PanicError is a recovered panic from a chain step or listener.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("kernel: panic: %v", e.Value) }

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// DefaultErrorHandler maps framework errors to JSON responses:
//
//   - *routing.RedirectError      → redirect to its URL
//   - *gohttp.HTTPError           → its status and message
//   - anything else               → 500
//
// Only HTTPError messages reach the client. With Debug set, the error text
// of server errors is exposed under "exception".
type DefaultErrorHandler struct {
	Log   *slog.Logger
	Debug bool
}

func (h *DefaultErrorHandler) Render(ctx context.Context, _ *container.Scope, err error) (*gohttp.Response, error) {
	var redirect *routing.RedirectError
	if errors.As(err, &redirect) {
		return gohttp.Redirect(redirect.Status, redirect.URL), nil
	}

	status, message := http.StatusInternalServerError, "Server Error."
	var he *gohttp.HTTPError
	if errors.As(err, &he) {
		status, message = he.Status, he.Message
	}

	log := h.Log
	if log == nil {
		log = slog.Default()
	}

	if status < http.StatusInternalServerError {
		log.DebugContext(ctx, "request failed", logger.Status(status), logger.Error(err))
		return gohttp.Error(status, message), nil
	}

	attrs := []any{logger.Status(status), logger.Error(err)}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	log.ErrorContext(ctx, "request failed", attrs...)

	if !h.Debug {
		return gohttp.Error(status, message), nil
	}
	return gohttp.JSON(status, map[string]any{"message": message, "exception": err.Error()}), nil
}
