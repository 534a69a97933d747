package providers

import (
	"cmp"
	"context"
	"io"
	"log/slog"

	"github.com/km-arc/go-kernel/framework/config"
	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/kernel"
	"github.com/km-arc/go-kernel/framework/logger"
	"github.com/km-arc/go-kernel/framework/metrics"
	"github.com/km-arc/go-kernel/framework/routing"
)

// Keys bound by the framework providers in the application container.
var (
	ConfigKey  = container.NewKey[*config.Config]("config")
	RouterKey  = container.NewKey[*routing.Router]("router")
	KernelKey  = container.NewKey[*kernel.Kernel]("kernel")
	MetricsKey = container.NewKey[*metrics.Collector]("metrics")
	ViewKey    = container.NewKey[*gohttp.ViewEngine]("view")
)

// ── ConfigServiceProvider ─────────────────────────────────────────────────────

// ConfigServiceProvider loads the configuration from .env and the process
// environment.
//
// Bound keys:
//   - ConfigKey → *config.Config (immutable)
//
// Laravel equivalent:
//
//	// Illuminate\Foundation\Bootstrap\LoadConfiguration
//	$app->singleton('config', fn() => new Repository($items));
type ConfigServiceProvider struct {
	container.BaseProvider
	EnvFiles []string
}

func (p *ConfigServiceProvider) Register(app *container.Container) error {
	envFiles := p.EnvFiles
	return container.RegisterImmutable(app, ConfigKey, func(context.Context, *container.Scope) (*config.Config, error) {
		return config.Load(envFiles...)
	})
}

// ── LogServiceProvider ────────────────────────────────────────────────────────

// LogServiceProvider builds the application logger from the LOG_* settings.
//
// Bound keys:
//   - kernel.LoggerKey → *slog.Logger
type LogServiceProvider struct {
	container.BaseProvider
	Output io.Writer // stdout when nil
}

func (p *LogServiceProvider) Register(app *container.Container) error {
	out := p.Output
	return container.Register(app, kernel.LoggerKey, func(ctx context.Context, s *container.Scope) (*slog.Logger, error) {
		cfg, err := container.Get(ctx, s, ConfigKey)
		if err != nil {
			return nil, err
		}
		var opts []logger.Option
		if out != nil {
			opts = append(opts, logger.WithOutput(out))
		}
		return logger.FromConfig(cfg, opts...), nil
	})
}

// ── RoutingServiceProvider ────────────────────────────────────────────────────

// RoutingServiceProvider registers the router.
//
// Bound keys:
//   - RouterKey → *routing.Router
//
// Laravel equivalent:
//
//	// Illuminate\Routing\RoutingServiceProvider
//	$app->singleton('router', fn($app) => new Router($app['events'], $app));
type RoutingServiceProvider struct {
	container.BaseProvider
}

func (p *RoutingServiceProvider) Register(app *container.Container) error {
	return container.Register(app, RouterKey, func(context.Context, *container.Scope) (*routing.Router, error) {
		return routing.New(), nil
	})
}

// ── KernelServiceProvider ─────────────────────────────────────────────────────

// KernelServiceProvider registers the request dispatcher.
//
// Bound keys:
//   - KernelKey → *kernel.Kernel
//
// Laravel equivalent:
//
//	$app->singleton(Illuminate\Contracts\Http\Kernel::class, App\Http\Kernel::class);
type KernelServiceProvider struct {
	container.BaseProvider
}

func (p *KernelServiceProvider) Register(app *container.Container) error {
	return container.Register(app, KernelKey, func(ctx context.Context, s *container.Scope) (*kernel.Kernel, error) {
		cfg, err := container.Get(ctx, s, ConfigKey)
		if err != nil {
			return nil, err
		}
		router, err := container.Get(ctx, s, RouterKey)
		if err != nil {
			return nil, err
		}
		log, err := container.Get(ctx, s, kernel.LoggerKey)
		if err != nil {
			return nil, err
		}
		return kernel.New(s.Container(), router,
			kernel.WithLogger(log),
			kernel.WithDebug(cfg.App.Debug),
		), nil
	})
}

// ── MetricsServiceProvider ────────────────────────────────────────────────────

// MetricsServiceProvider registers the Prometheus collectors and, when
// METRICS_ENABLED is set, attaches them to the kernel at boot.
//
// Bound keys:
//   - MetricsKey → *metrics.Collector
type MetricsServiceProvider struct{}

func (p *MetricsServiceProvider) Register(app *container.Container) error {
	return container.Register(app, MetricsKey, func(ctx context.Context, s *container.Scope) (*metrics.Collector, error) {
		cfg, err := container.Get(ctx, s, ConfigKey)
		if err != nil {
			return nil, err
		}
		return metrics.New(cfg.Metrics.Namespace), nil
	})
}

func (p *MetricsServiceProvider) Boot(ctx context.Context, app *container.Container) error {
	cfg, err := container.Get(ctx, app, ConfigKey)
	if err != nil {
		return err
	}
	if !cfg.Metrics.Enabled {
		return nil
	}
	collector, err := container.Get(ctx, app, MetricsKey)
	if err != nil {
		return err
	}
	k, err := container.Get(ctx, app, KernelKey)
	if err != nil {
		return err
	}
	collector.Attach(k)
	return nil
}

// ── ViewServiceProvider ───────────────────────────────────────────────────────

// ViewServiceProvider registers the template engine. Dir and Ext override
// VIEW_PATH and VIEW_EXT.
//
// Bound keys:
//   - ViewKey → *gohttp.ViewEngine
//
// Laravel equivalent:
//
//	// Illuminate\View\ViewServiceProvider
//	$app->singleton('view', fn($app) => new Factory(...));
type ViewServiceProvider struct {
	container.BaseProvider
	Dir string // template directory, default: VIEW_PATH
	Ext string // file extension,    default: VIEW_EXT
}

func (p *ViewServiceProvider) Register(app *container.Container) error {
	dir, ext := p.Dir, p.Ext
	return container.Register(app, ViewKey, func(ctx context.Context, s *container.Scope) (*gohttp.ViewEngine, error) {
		cfg, err := container.Get(ctx, s, ConfigKey)
		if err != nil {
			return nil, err
		}
		return gohttp.NewViewEngine(cmp.Or(dir, cfg.View.Path), cmp.Or(ext, cfg.View.Ext)), nil
	})
}
