package providers_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/kernel"
	"github.com/km-arc/go-kernel/framework/providers"
	"github.com/km-arc/go-kernel/framework/routing"
)

func boot(t *testing.T, logs *bytes.Buffer) *container.Container {
	t.Helper()
	c := container.New()
	reg := container.NewProviderRegistry(c)
	ctx := context.Background()

	for _, p := range []container.ServiceProvider{
		&providers.ConfigServiceProvider{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}},
		&providers.LogServiceProvider{Output: logs},
		&providers.RoutingServiceProvider{},
		&providers.KernelServiceProvider{},
		&providers.MetricsServiceProvider{},
		&providers.ViewServiceProvider{Dir: t.TempDir()},
	} {
		require.NoError(t, reg.Register(ctx, p))
	}
	require.NoError(t, reg.Boot(ctx))
	return c
}

func TestConfigServiceProvider_ReadsEnvironment(t *testing.T) {
	t.Setenv("APP_NAME", "Providers")
	c := boot(t, &bytes.Buffer{})

	cfg, err := container.Get(context.Background(), c, providers.ConfigKey)
	require.NoError(t, err)
	assert.Equal(t, "Providers", cfg.App.Name)
}

func TestConfigServiceProvider_Immutable(t *testing.T) {
	c := boot(t, &bytes.Buffer{})

	err := container.Set(c, providers.ConfigKey, nil)
	assert.ErrorIs(t, err, container.ErrImmutable)
}

func TestConfigServiceProvider_BadEnvFile(t *testing.T) {
	c := container.New()
	reg := container.NewProviderRegistry(c)
	ctx := context.Background()

	require.NoError(t, reg.Register(ctx, &providers.ConfigServiceProvider{EnvFiles: []string{t.TempDir()}}))
	_, err := container.Get(ctx, c, providers.ConfigKey)
	assert.Error(t, err, "a directory is not a readable env file")
}

func TestLogServiceProvider_WritesToOutput(t *testing.T) {
	t.Setenv("LOG_FORMAT", "json")
	var logs bytes.Buffer
	c := boot(t, &logs)

	log, err := container.Get(context.Background(), c, kernel.LoggerKey)
	require.NoError(t, err)
	log.Info("hello")

	assert.Contains(t, logs.String(), `"msg":"hello"`)
}

func TestKernelServiceProvider_DispatchesRouterRoutes(t *testing.T) {
	ctx := context.Background()
	c := boot(t, &bytes.Buffer{})

	router := container.MustGet(ctx, c, providers.RouterKey)
	router.Get("/ping", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		return gohttp.Text(http.StatusOK, "pong"), nil
	}))

	k := container.MustGet(ctx, c, providers.KernelKey)
	assert.Same(t, router, k.Router())

	rec := httptest.NewRecorder()
	gohttp.Handler(k).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestMetricsServiceProvider_AttachesWhenEnabled(t *testing.T) {
	ctx := context.Background()
	t.Setenv("METRICS_NAMESPACE", "provtest")
	c := boot(t, &bytes.Buffer{})

	k := container.MustGet(ctx, c, providers.KernelKey)
	rec := httptest.NewRecorder()
	gohttp.Handler(k).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	scrape := httptest.NewRecorder()
	container.MustGet(ctx, c, providers.MetricsKey).Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `provtest_requests_total{method="GET",route="unmatched",status="404"} 1`)
}

func TestMetricsServiceProvider_DisabledLeavesKernelAlone(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "false")
	c := boot(t, &bytes.Buffer{})

	assert.False(t, container.IsResolved(c, providers.MetricsKey))
	assert.False(t, container.IsResolved(c, providers.KernelKey))
}

func TestViewServiceProvider_Registered(t *testing.T) {
	c := boot(t, &bytes.Buffer{})

	ve, err := container.Get(context.Background(), c, providers.ViewKey)
	require.NoError(t, err)
	assert.NotNil(t, ve)
}

func TestViewServiceProvider_UsesViewSettings(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.tmpl"), []byte("Hello {{.}}"), 0o644))
	t.Setenv("VIEW_PATH", dir)
	t.Setenv("VIEW_EXT", ".tmpl")

	c := container.New()
	reg := container.NewProviderRegistry(c)
	require.NoError(t, reg.Register(ctx, &providers.ConfigServiceProvider{EnvFiles: []string{filepath.Join(t.TempDir(), "missing.env")}}))
	require.NoError(t, reg.Register(ctx, &providers.ViewServiceProvider{}))

	res, err := container.MustGet(ctx, c, providers.ViewKey).View("hello", "views")
	require.NoError(t, err)
	assert.Equal(t, "Hello views", string(res.Body))
}
