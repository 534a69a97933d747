package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/km-arc/go-kernel/framework/config"
	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/kernel"
	"github.com/km-arc/go-kernel/framework/logger"
	"github.com/km-arc/go-kernel/framework/metrics"
	"github.com/km-arc/go-kernel/framework/providers"
	"github.com/km-arc/go-kernel/framework/routing"
)

// Version of the framework.
const Version = "0.2.0"

// Application is the top-level application container.
// It embeds the container and the ProviderRegistry so user code can bind
// services on it directly, like $app in Laravel's bootstrap/app.php.
type Application struct {
	*container.Container
	Providers *container.ProviderRegistry

	middleware []func(http.Handler) http.Handler
	statics    map[string]string
}

// Option configures New.
type Option func(*options)

type options struct {
	envFiles  []string
	defaults  *container.Defaults
	logOutput io.Writer
}

// WithEnvFiles sets the env files loaded into the configuration
// (default: .env).
func WithEnvFiles(files ...string) Option {
	return func(o *options) { o.envFiles = files }
}

// WithDefaults shares d with the application container and every request
// container.
func WithDefaults(d *container.Defaults) Option {
	return func(o *options) { o.defaults = d }
}

// WithLogOutput redirects the application logger.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// New creates the application and registers the framework providers.
// Nothing is resolved until Boot.
func New(opts ...Option) (*Application, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var copts []container.Option
	if o.defaults != nil {
		copts = append(copts, container.WithDefaults(o.defaults))
	}
	c := container.New(copts...)

	a := &Application{
		Container: c,
		Providers: container.NewProviderRegistry(c),
		statics:   make(map[string]string),
	}

	// Core providers, in dependency order.
	core := []container.ServiceProvider{
		&providers.ConfigServiceProvider{EnvFiles: o.envFiles},
		&providers.LogServiceProvider{Output: o.logOutput},
		&providers.RoutingServiceProvider{},
		&providers.KernelServiceProvider{},
		&providers.MetricsServiceProvider{},
		&providers.ViewServiceProvider{},
	}
	for _, p := range core {
		if err := a.Register(context.Background(), p); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Register adds a ServiceProvider to the application.
func (a *Application) Register(ctx context.Context, provider container.ServiceProvider) error {
	return a.Providers.Register(ctx, provider)
}

// Boot runs the Boot phase of every provider.
func (a *Application) Boot(ctx context.Context) error {
	return a.Providers.Boot(ctx)
}

// Config resolves *config.Config from the container.
func (a *Application) Config() *config.Config {
	return container.MustGet(context.Background(), a, providers.ConfigKey)
}

// Router resolves *routing.Router from the container.
func (a *Application) Router() *routing.Router {
	return container.MustGet(context.Background(), a, providers.RouterKey)
}

// Kernel resolves *kernel.Kernel from the container.
func (a *Application) Kernel() *kernel.Kernel {
	return container.MustGet(context.Background(), a, providers.KernelKey)
}

// Logger resolves the application logger.
func (a *Application) Logger() *slog.Logger {
	return container.MustGet(context.Background(), a, kernel.LoggerKey)
}

// Metrics resolves *metrics.Collector from the container.
func (a *Application) Metrics() *metrics.Collector {
	return container.MustGet(context.Background(), a, providers.MetricsKey)
}

// Views resolves *gohttp.ViewEngine from the container.
func (a *Application) Views() *gohttp.ViewEngine {
	return container.MustGet(context.Background(), a, providers.ViewKey)
}

// Use adds net/http middleware around the whole handler, ahead of the kernel.
func (a *Application) Use(mw ...func(http.Handler) http.Handler) {
	a.middleware = append(a.middleware, mw...)
}

// Static serves files from dir under prefix, outside the kernel.
//
//	app.Static("/assets", "./public")
func (a *Application) Static(prefix, dir string) {
	a.statics[strings.TrimSuffix(prefix, "/")] = dir
}

// Handler builds the net/http handler: static mounts and the metrics
// endpoint are served by chi, everything else by the kernel.
func (a *Application) Handler() http.Handler {
	cfg := a.Config()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.App.Debug && !a.IsTesting() {
		r.Use(middleware.Logger)
	}
	r.Use(a.middleware...)

	if cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, a.Metrics().Handler())
	}
	for prefix, dir := range a.statics {
		fs := http.StripPrefix(prefix, http.FileServer(http.Dir(dir)))
		r.Handle(prefix+"/*", fs)
	}
	r.Handle("/*", gohttp.Handler(a.Kernel()))
	return r
}

// Run boots the application (if needed) and serves HTTP on APP_PORT until
// ctx is done.
func (a *Application) Run(ctx context.Context) error {
	if err := a.Boot(ctx); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", a.Config().Addr())
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is done, then shuts down gracefully
// within HTTP_SHUTDOWN_TIMEOUT.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	if err := a.Boot(ctx); err != nil {
		return err
	}
	cfg := a.Config()
	log := a.Logger().With(logger.Component("server"))

	srv := &http.Server{
		Handler:      a.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(log.Handler(), slog.LevelError),
	}

	errc := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "server started",
			slog.String("addr", ln.Addr().String()),
			slog.String("version", Version),
		)
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	log.InfoContext(ctx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}

// Environment returns APP_ENV value.
func (a *Application) Environment() string { return a.Config().App.Env }
func (a *Application) IsLocal() bool       { return a.Environment() == "local" }
func (a *Application) IsProduction() bool  { return a.Config().IsProduction() }
func (a *Application) IsTesting() bool     { return a.Environment() == "testing" }
func (a *Application) IsDebug() bool       { return a.Config().App.Debug }
