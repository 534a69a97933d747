// Package kernel dispatches requests: it opens a request container, runs
// setup listeners, resolves the route, executes the middleware chain and
// fires the lifecycle listeners.
package kernel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/logger"
	"github.com/km-arc/go-kernel/framework/routing"
)

const tracerName = "github.com/km-arc/go-kernel/framework/kernel"

// Keys seeded or consulted by the kernel.
var (
	// AppKey holds the application container in every request container.
	AppKey = container.NewKey[*container.Container]("app")

	// ErrorHandlerKey is looked up in the request container, then in the
	// application container. DefaultErrorHandler is used when neither has it.
	ErrorHandlerKey = container.NewKey[ErrorHandler]("error.handler")

	// LoggerKey holds a logger tagged with the request ID.
	LoggerKey = container.NewKey[*slog.Logger]("logger")
)

// Listener signatures.
type (
	RequestListener   func(ctx context.Context, s *container.Scope) error
	FinishingListener func(ctx context.Context, s *container.Scope, res *gohttp.Response) (*gohttp.Response, error)
	FinishedListener  func(ctx context.Context, s *container.Scope, res *gohttp.Response)
	UpgradedListener  func(ctx context.Context, s *container.Scope)
)

// Kernel is the request dispatcher. It implements gohttp.Dispatcher.
type Kernel struct {
	app    *container.Container
	router *routing.Router
	log    *slog.Logger
	tracer trace.Tracer
	debug  bool

	mu          sync.RWMutex
	middleware  []routing.Middleware
	onRequest   []RequestListener
	onFinishing []FinishingListener
	onFinished  []FinishedListener
	onUpgraded  []UpgradedListener
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithLogger sets the logger used by the kernel and the default error
// handler.
func WithLogger(l *slog.Logger) Option { return func(k *Kernel) { k.log = l } }

// WithDebug exposes server error details in default error responses.
func WithDebug(debug bool) Option { return func(k *Kernel) { k.debug = debug } }

// WithTracerProvider sets the provider of dispatch spans; the global one is
// used otherwise.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(k *Kernel) { k.tracer = tp.Tracer(tracerName) }
}

// New creates a kernel for the application container app. Request
// containers share app's Defaults table.
func New(app *container.Container, router *routing.Router, opts ...Option) *Kernel {
	k := &Kernel{
		app:    app,
		router: router,
		log:    slog.Default(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Router returns the router requests are resolved against.
func (k *Kernel) Router() *routing.Router { return k.router }

// Use appends global middleware; it runs before route middleware.
func (k *Kernel) Use(mw ...routing.Middleware) {
	k.mu.Lock()
	k.middleware = append(k.middleware, mw...)
	k.mu.Unlock()
}

// OnRequest registers a listener run, in registration order, after the
// request container is seeded and before routing. An error aborts the
// request and is rendered.
func (k *Kernel) OnRequest(fn RequestListener) {
	k.mu.Lock()
	k.onRequest = append(k.onRequest, fn)
	k.mu.Unlock()
}

// OnFinishing registers a listener run after the chain; a non-nil returned
// response replaces the current one.
func (k *Kernel) OnFinishing(fn FinishingListener) {
	k.mu.Lock()
	k.onFinishing = append(k.onFinishing, fn)
	k.mu.Unlock()
}

// OnFinished registers a listener that observes the final response.
func (k *Kernel) OnFinished(fn FinishedListener) {
	k.mu.Lock()
	k.onFinished = append(k.onFinished, fn)
	k.mu.Unlock()
}

// OnUpgraded registers a listener run instead of the finishing and finished
// listeners when a handler took over the connection.
func (k *Kernel) OnUpgraded(fn UpgradedListener) {
	k.mu.Lock()
	k.onUpgraded = append(k.onUpgraded, fn)
	k.mu.Unlock()
}

// Handle dispatches one request. It never returns nil; for upgraded
// connections it returns gohttp.Upgraded.
func (k *Kernel) Handle(ctx context.Context, conn *gohttp.Conn, req *gohttp.Request) *gohttp.Response {
	start := time.Now()
	ctx, span := k.tracer.Start(ctx, "kernel.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method()),
			attribute.String("url.path", req.Path()),
			attribute.String("request.id", req.ID()),
		),
	)
	defer span.End()

	c := container.New(container.WithDefaults(k.app.Defaults()))
	s := c.Scope()
	log := k.log.With(logger.RequestID(req.ID()))

	d := &dispatch{k: k, s: s, log: log}
	res, err := d.run(ctx, conn, req)
	if err != nil {
		span.RecordError(err)
		res = d.render(ctx, err)
	}

	if d.upgraded {
		span.SetAttributes(attribute.Bool("http.upgraded", true))
		d.upgrade(ctx)
		log.InfoContext(ctx, "connection upgraded", logger.Method(req.Method()), logger.Path(req.Path()), logger.Duration(time.Since(start)))
		return gohttp.Upgraded
	}

	res = d.finish(ctx, res)

	route := ""
	if d.match != nil {
		route = d.match.Route.Path
		span.SetAttributes(attribute.String("http.route", route))
	}
	span.SetAttributes(attribute.Int("http.response.status_code", res.Status))
	if res.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(res.Status))
	}
	log.InfoContext(ctx, "request handled",
		logger.Method(req.Method()),
		logger.Path(req.Path()),
		logger.Route(route),
		logger.Status(res.Status),
		logger.Duration(time.Since(start)),
	)
	return res
}

// dispatch is the state of one request.
type dispatch struct {
	k        *Kernel
	s        *container.Scope
	log      *slog.Logger
	match    *routing.Match
	upgraded bool
}

// run seeds the container, runs setup listeners, routes and executes the
// chain. Errors returned from here are top-level failures.
func (d *dispatch) run(ctx context.Context, conn *gohttp.Conn, req *gohttp.Request) (*gohttp.Response, error) {
	s := d.s
	if err := errors.Join(
		container.SetImmutable(s, AppKey, d.k.app),
		container.SetImmutable(s, gohttp.ConnKey, conn),
		container.SetImmutable(s, gohttp.RequestKey, req),
		container.Set(s, LoggerKey, d.log),
	); err != nil {
		return nil, err
	}

	d.k.mu.RLock()
	onRequest := slices.Clone(d.k.onRequest)
	global := slices.Clone(d.k.middleware)
	d.k.mu.RUnlock()

	for _, fn := range onRequest {
		if err := protect(func() error { return fn(ctx, s) }); err != nil {
			return nil, err
		}
	}

	m, err := d.k.router.Resolve(req.Method(), req.EscapedPath())
	if err != nil {
		var redirect *routing.RedirectError
		if errors.As(err, &redirect) && req.RawQuery() != "" {
			err = &routing.RedirectError{URL: redirect.URL + "?" + req.RawQuery(), Status: redirect.Status}
		}
		return nil, err
	}

	chain := global
	var action routing.Action = routing.HandlerFunc(unrouted)
	if m != nil {
		d.match = m
		if err := errors.Join(
			container.SetImmutable(s, routing.MatchKey, m),
			container.SetImmutable(s, routing.ParamsKey, m.Params),
		); err != nil {
			return nil, err
		}
		chain = append(chain, m.Route.Middleware...)
		action = m.Route.Action
	}

	return d.chain(ctx, chain, action), nil
}

// unrouted answers requests no route matched.
func unrouted(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	req, err := container.Get(ctx, s, gohttp.RequestKey)
	if err != nil {
		return nil, err
	}
	switch req.Method() {
	case http.MethodGet, http.MethodHead:
		return nil, gohttp.ErrNotFound
	default:
		return nil, gohttp.ErrMethodNotAllowed
	}
}

// finish runs the finishing listeners, then the finished listeners.
func (d *dispatch) finish(ctx context.Context, res *gohttp.Response) *gohttp.Response {
	d.k.mu.RLock()
	finishing := slices.Clone(d.k.onFinishing)
	finished := slices.Clone(d.k.onFinished)
	d.k.mu.RUnlock()

	for _, fn := range finishing {
		var next *gohttp.Response
		err := protect(func() (err error) {
			next, err = fn(ctx, d.s, res)
			return err
		})
		switch {
		case err != nil:
			res = d.render(ctx, err)
		case next != nil:
			res = next
		}
	}

	for _, fn := range finished {
		if err := protect(func() error { fn(ctx, d.s, res); return nil }); err != nil {
			d.log.ErrorContext(ctx, "finished listener failed", logger.Error(err))
		}
	}
	return res
}

func (d *dispatch) upgrade(ctx context.Context) {
	d.k.mu.RLock()
	upgraded := slices.Clone(d.k.onUpgraded)
	d.k.mu.RUnlock()

	for _, fn := range upgraded {
		if err := protect(func() error { fn(ctx, d.s); return nil }); err != nil {
			d.log.ErrorContext(ctx, "upgraded listener failed", logger.Error(err))
		}
	}
}

// render turns err into a response with the request's error handler. If the
// handler fails too, a plain 500 is produced.
func (d *dispatch) render(ctx context.Context, err error) *gohttp.Response {
	var res *gohttp.Response
	herr := protect(func() (e error) {
		res, e = d.errorHandler(ctx).Render(ctx, d.s, err)
		return e
	})
	if herr != nil || res == nil {
		d.log.ErrorContext(ctx, "error handler failed", logger.Error(err), slog.Any("handler_error", herr))
		return gohttp.Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
	return res
}

// errorHandler looks the handler up in the request container, then in the
// application container. A lookup that fails or panics falls through to the
// next source and finally to DefaultErrorHandler.
func (d *dispatch) errorHandler(ctx context.Context) ErrorHandler {
	for _, src := range []container.Source{d.s, d.k.app} {
		if !container.Has(src, ErrorHandlerKey) {
			continue
		}
		var h ErrorHandler
		err := protect(func() (err error) {
			h, err = container.Get(ctx, src, ErrorHandlerKey)
			return err
		})
		if err == nil && h != nil {
			return h
		}
		d.log.ErrorContext(ctx, "error handler lookup failed", logger.Error(err))
	}
	return &DefaultErrorHandler{Log: d.log, Debug: d.k.debug}
}

// protect calls fn and turns a panic into a *PanicError.
func protect(fn func() error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn()
}
