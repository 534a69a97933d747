package kernel_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/kernel"
	"github.com/km-arc/go-kernel/framework/routing"
)

func newKernel(opts ...kernel.Option) (*kernel.Kernel, *routing.Router, *container.Container) {
	app := container.New(container.WithDefaults(container.NewDefaults()))
	r := routing.New()
	quiet := kernel.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	return kernel.New(app, r, append([]kernel.Option{quiet}, opts...)...), r, app
}

func do(k *kernel.Kernel, method, target string) *gohttp.Response {
	r := httptest.NewRequest(method, target, nil)
	return k.Handle(context.Background(), gohttp.NewConn(httptest.NewRecorder(), r), gohttp.NewRequest(r))
}

func message(t *testing.T, res *gohttp.Response) string {
	t.Helper()
	var body struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(res.Body, &body))
	return body.Message
}

func text(body string) routing.HandlerFunc {
	return func(context.Context, *container.Scope) (*gohttp.Response, error) {
		return gohttp.Text(http.StatusOK, body), nil
	}
}

// record returns middleware appending label to trail around next.
func record(label string, trail *[]string) routing.Middleware {
	return func(_ context.Context, _ *container.Scope, next routing.Next) (*gohttp.Response, error) {
		*trail = append(*trail, label)
		return next()
	}
}

func TestHandle_RoutesWithParams(t *testing.T) {
	k, r, _ := newKernel()
	r.Get("/users/{id}", routing.HandlerFunc(func(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
		m, err := container.Get(ctx, s, routing.MatchKey)
		if err != nil {
			return nil, err
		}
		return gohttp.Success(map[string]string{"id": routing.RouteParam(ctx, s, "id"), "route": m.Route.Path}), nil
	}))

	res := do(k, http.MethodGet, "/users/42")

	assert.Equal(t, http.StatusOK, res.Status)
	assert.JSONEq(t, `{"data":{"id":"42","route":"/users/{id}"}}`, string(res.Body))
}

func TestHandle_Unrouted(t *testing.T) {
	k, _, _ := newKernel()

	res := do(k, http.MethodGet, "/missing")
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "Not found.", message(t, res))

	assert.Equal(t, http.StatusNotFound, do(k, http.MethodHead, "/missing").Status)
	assert.Equal(t, http.StatusMethodNotAllowed, do(k, http.MethodPost, "/missing").Status)
}

func TestHandle_UnroutedStillRunsGlobalMiddleware(t *testing.T) {
	k, _, _ := newKernel()
	var trail []string
	k.Use(record("global", &trail))

	res := do(k, http.MethodDelete, "/missing")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Status)
	assert.Equal(t, []string{"global"}, trail)
}

func TestHandle_TrailingSlashRedirectKeepsQuery(t *testing.T) {
	k, r, _ := newKernel()
	r.Get("/users/{id}", text("user"))

	res := do(k, http.MethodGet, "/users/1/?tab=posts")

	assert.Equal(t, http.StatusPermanentRedirect, res.Status)
	assert.Equal(t, "/users/1?tab=posts", res.Header.Get("Location"))
}

func TestHandle_ListenerAndMiddlewareOrder(t *testing.T) {
	k, r, _ := newKernel()
	var trail []string

	k.OnRequest(func(context.Context, *container.Scope) error { trail = append(trail, "setup-1"); return nil })
	k.OnRequest(func(context.Context, *container.Scope) error { trail = append(trail, "setup-2"); return nil })
	k.Use(record("global-1", &trail), record("global-2", &trail))
	r.Use(record("group", &trail)).Get("/", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		trail = append(trail, "handler")
		return gohttp.NoContent(), nil
	}), routing.With(record("route", &trail)))
	k.OnFinishing(func(_ context.Context, _ *container.Scope, res *gohttp.Response) (*gohttp.Response, error) {
		trail = append(trail, "finishing")
		return nil, nil
	})
	k.OnFinished(func(context.Context, *container.Scope, *gohttp.Response) { trail = append(trail, "finished") })

	res := do(k, http.MethodGet, "/")

	assert.Equal(t, http.StatusNoContent, res.Status)
	assert.Equal(t, []string{
		"setup-1", "setup-2",
		"global-1", "global-2", "group", "route",
		"handler",
		"finishing", "finished",
	}, trail)
}

func TestHandle_StepErrorIsRenderedInPlace(t *testing.T) {
	k, r, _ := newKernel()
	var trail []string
	var seenByOuter []int

	outer := func(label string) routing.Middleware {
		return func(_ context.Context, _ *container.Scope, next routing.Next) (*gohttp.Response, error) {
			trail = append(trail, label)
			res, err := next()
			require.NoError(t, err, "next never fails")
			seenByOuter = append(seenByOuter, res.Status)
			return res, nil
		}
	}
	failing := func(context.Context, *container.Scope, routing.Next) (*gohttp.Response, error) {
		trail = append(trail, "m3")
		return nil, gohttp.NewError(http.StatusTeapot, "No coffee.")
	}

	r.Get("/brew", text("coffee"), routing.With(
		outer("m1"), outer("m2"), failing, record("m4", &trail), record("m5", &trail),
	))

	var finishingSaw int
	k.OnFinishing(func(_ context.Context, _ *container.Scope, res *gohttp.Response) (*gohttp.Response, error) {
		finishingSaw = res.Status
		return nil, nil
	})

	res := do(k, http.MethodGet, "/brew")

	assert.Equal(t, []string{"m1", "m2", "m3"}, trail)
	assert.Equal(t, []int{http.StatusTeapot, http.StatusTeapot}, seenByOuter)
	assert.Equal(t, http.StatusTeapot, finishingSaw)
	assert.Equal(t, http.StatusTeapot, res.Status)
	assert.Equal(t, "No coffee.", message(t, res))
}

func TestHandle_PanicsAreRecovered(t *testing.T) {
	k, r, _ := newKernel()
	r.Get("/boom", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		panic("kaboom")
	}))

	res := do(k, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Server Error.", message(t, res))
	assert.NotContains(t, string(res.Body), "kaboom")

	dk, dr, _ := newKernel(kernel.WithDebug(true))
	dr.Get("/boom", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		panic("kaboom")
	}))
	assert.Contains(t, string(do(dk, http.MethodGet, "/boom").Body), "kaboom")
}

func TestHandle_UpgradeHaltsChain(t *testing.T) {
	k, r, _ := newKernel()
	var trail []string
	handlerRuns := 0

	k.Use(func(_ context.Context, _ *container.Scope, next routing.Next) (*gohttp.Response, error) {
		trail = append(trail, "before")
		first, _ := next()
		again, _ := next()
		assert.True(t, gohttp.IsUpgraded(first))
		assert.True(t, gohttp.IsUpgraded(again))
		trail = append(trail, "after")
		return gohttp.Text(http.StatusOK, "too late"), nil
	})
	r.Get("/ws", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		handlerRuns++
		return gohttp.Upgraded, nil
	}))

	var upgraded, finishing, finished int
	k.OnUpgraded(func(context.Context, *container.Scope) { upgraded++ })
	k.OnFinishing(func(context.Context, *container.Scope, *gohttp.Response) (*gohttp.Response, error) {
		finishing++
		return nil, nil
	})
	k.OnFinished(func(context.Context, *container.Scope, *gohttp.Response) { finished++ })

	res := do(k, http.MethodGet, "/ws")

	assert.True(t, gohttp.IsUpgraded(res))
	assert.Equal(t, 1, handlerRuns)
	assert.Equal(t, []string{"before", "after"}, trail)
	assert.Equal(t, 1, upgraded)
	assert.Zero(t, finishing)
	assert.Zero(t, finished)
}

func TestHandle_MiddlewareUpgradeSkipsRestOfChain(t *testing.T) {
	k, r, _ := newKernel()
	var trail []string
	handlerRuns := 0

	k.Use(
		record("mw1", &trail),
		func(context.Context, *container.Scope, routing.Next) (*gohttp.Response, error) {
			trail = append(trail, "mw2")
			return gohttp.Upgraded, nil
		},
	)
	r.Get("/ws", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		handlerRuns++
		return gohttp.Text(http.StatusOK, "handler"), nil
	}), routing.With(record("mw3", &trail), record("mw4", &trail)))

	var upgraded, finishing, finished int
	k.OnUpgraded(func(context.Context, *container.Scope) { upgraded++ })
	k.OnFinishing(func(context.Context, *container.Scope, *gohttp.Response) (*gohttp.Response, error) {
		finishing++
		return nil, nil
	})
	k.OnFinished(func(context.Context, *container.Scope, *gohttp.Response) { finished++ })

	res := do(k, http.MethodGet, "/ws")

	assert.True(t, gohttp.IsUpgraded(res))
	assert.Equal(t, []string{"mw1", "mw2"}, trail)
	assert.Zero(t, handlerRuns)
	assert.Equal(t, 1, upgraded)
	assert.Zero(t, finishing)
	assert.Zero(t, finished)
}

func TestHandle_FinishingMayReplace(t *testing.T) {
	k, r, _ := newKernel()
	r.Get("/", text("original"))

	k.OnFinishing(func(_ context.Context, _ *container.Scope, res *gohttp.Response) (*gohttp.Response, error) {
		return res.WithHeader("X-Seen", "1"), nil
	})
	k.OnFinishing(func(_ context.Context, _ *container.Scope, res *gohttp.Response) (*gohttp.Response, error) {
		assert.Equal(t, "1", res.Header.Get("X-Seen"))
		return gohttp.Text(http.StatusAccepted, "replaced"), nil
	})
	var final *gohttp.Response
	k.OnFinished(func(_ context.Context, _ *container.Scope, res *gohttp.Response) { final = res })

	res := do(k, http.MethodGet, "/")
	assert.Equal(t, "replaced", string(res.Body))
	assert.Same(t, res, final)
}

func TestHandle_FinishingErrorIsRendered(t *testing.T) {
	k, r, _ := newKernel()
	r.Get("/", text("ok"))
	k.OnFinishing(func(context.Context, *container.Scope, *gohttp.Response) (*gohttp.Response, error) {
		return nil, gohttp.NewError(http.StatusConflict, "Changed meanwhile.")
	})

	res := do(k, http.MethodGet, "/")
	assert.Equal(t, http.StatusConflict, res.Status)
}

func TestHandle_SetupFailureIsRendered(t *testing.T) {
	k, r, _ := newKernel()
	ran := false
	r.Get("/", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		ran = true
		return gohttp.NoContent(), nil
	}))
	k.OnRequest(func(context.Context, *container.Scope) error {
		return gohttp.NewError(http.StatusServiceUnavailable, "Down for maintenance.")
	})
	var finished int
	k.OnFinished(func(_ context.Context, _ *container.Scope, res *gohttp.Response) {
		finished = res.Status
	})

	res := do(k, http.MethodGet, "/")

	assert.False(t, ran)
	assert.Equal(t, http.StatusServiceUnavailable, res.Status)
	assert.Equal(t, "Down for maintenance.", message(t, res))
	assert.Equal(t, http.StatusServiceUnavailable, finished)
}

func TestHandle_CustomErrorHandler(t *testing.T) {
	k, r, app := newKernel()
	r.Get("/fail", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		return nil, errors.New("nope")
	}))

	require.NoError(t, container.Set[kernel.ErrorHandler](app, kernel.ErrorHandlerKey,
		kernel.ErrorHandlerFunc(func(_ context.Context, _ *container.Scope, err error) (*gohttp.Response, error) {
			return gohttp.Text(http.StatusBadGateway, "app: "+err.Error()), nil
		})))

	res := do(k, http.MethodGet, "/fail")
	assert.Equal(t, http.StatusBadGateway, res.Status)
	assert.Equal(t, "app: nope", string(res.Body))

	// A request-level handler wins over the application one.
	k.OnRequest(func(_ context.Context, s *container.Scope) error {
		return container.Set[kernel.ErrorHandler](s, kernel.ErrorHandlerKey,
			kernel.ErrorHandlerFunc(func(context.Context, *container.Scope, error) (*gohttp.Response, error) {
				return gohttp.Text(http.StatusTeapot, "request"), nil
			}))
	})
	assert.Equal(t, http.StatusTeapot, do(k, http.MethodGet, "/fail").Status)
}

func TestHandle_FailingErrorHandlerYieldsPlain500(t *testing.T) {
	k, r, app := newKernel()
	r.Get("/fail", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		return nil, errors.New("nope")
	}))
	require.NoError(t, container.Set[kernel.ErrorHandler](app, kernel.ErrorHandlerKey,
		kernel.ErrorHandlerFunc(func(context.Context, *container.Scope, error) (*gohttp.Response, error) {
			return nil, errors.New("renderer down")
		})))

	res := do(k, http.MethodGet, "/fail")
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Internal Server Error", string(res.Body))
}

func TestHandle_PanickingErrorHandlerLookupFallsBackToDefault(t *testing.T) {
	k, r, app := newKernel()
	r.Get("/fail", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		return nil, gohttp.NewError(http.StatusConflict, "taken")
	}))
	require.NoError(t, container.Register(app, kernel.ErrorHandlerKey,
		func(context.Context, *container.Scope) (kernel.ErrorHandler, error) {
			panic("handler wiring broken")
		}))

	var res *gohttp.Response
	require.NotPanics(t, func() { res = do(k, http.MethodGet, "/fail") })
	require.NotNil(t, res)
	assert.Equal(t, http.StatusConflict, res.Status)
	assert.Equal(t, "taken", message(t, res))

	// The key is not wedged: the next request falls back the same way.
	assert.Equal(t, http.StatusConflict, do(k, http.MethodGet, "/fail").Status)
}

var siteKey = container.NewKey[string]("site")

type page struct {
	site string
}

var pageType = container.Describe("page",
	container.InjectVia(siteKey, func(p *page, v string) { p.site = v }, kernel.AppKey),
)

func (p *page) Show(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	return gohttp.Text(http.StatusOK, p.site+"/"+routing.RouteParam(ctx, s, "slug")), nil
}

func TestHandle_RequestContainers(t *testing.T) {
	k, r, app := newKernel()
	require.NoError(t, container.Set(app, siteKey, "docs"))
	require.NoError(t, container.Provide(app.Defaults(), siteKey, "from-defaults"))

	r.Get("/pages/{slug}", routing.Controller(pageType, (*page).Show))
	r.Get("/seeds", routing.HandlerFunc(func(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
		appC, err := container.Get(ctx, s, kernel.AppKey)
		if err != nil {
			return nil, err
		}
		if err := container.Set(s, kernel.AppKey, appC); !errors.Is(err, container.ErrImmutable) {
			return nil, errors.New("app key must be immutable")
		}
		site, err := container.Get(ctx, s, siteKey)
		if err != nil {
			return nil, err
		}
		_, err = container.Get(ctx, s, kernel.LoggerKey)
		return gohttp.Text(http.StatusOK, site), err
	}))

	res := do(k, http.MethodGet, "/pages/intro")
	assert.Equal(t, "docs/intro", string(res.Body), "InjectVia reads the application container")

	res = do(k, http.MethodGet, "/seeds")
	require.Equal(t, http.StatusOK, res.Status, string(res.Body))
	assert.Equal(t, "from-defaults", string(res.Body), "request containers share the defaults table")
}

func TestDefaultErrorHandler(t *testing.T) {
	h := &kernel.DefaultErrorHandler{Log: slog.New(slog.NewTextHandler(io.Discard, nil))}
	ctx := context.Background()

	res, err := h.Render(ctx, nil, &routing.RedirectError{URL: "/x", Status: http.StatusPermanentRedirect})
	require.NoError(t, err)
	assert.Equal(t, http.StatusPermanentRedirect, res.Status)
	assert.Equal(t, "/x", res.Header.Get("Location"))

	res, err = h.Render(ctx, nil, errors.Join(errors.New("ctx"), gohttp.NewError(http.StatusForbidden, "Go away.")))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, res.Status)
	assert.Equal(t, "Go away.", message(t, res))

	res, err = h.Render(ctx, nil, &container.ResolutionError{Label: "db", Err: container.ErrUnbound})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Server Error.", message(t, res))
}
