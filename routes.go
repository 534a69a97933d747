package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/km-arc/go-kernel/framework/app"
	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/http/validation"
	"github.com/km-arc/go-kernel/framework/kernel"
	"github.com/km-arc/go-kernel/framework/routing"
)

// registerRoutes installs the example application routes.
func registerRoutes(application *app.Application) {
	r := application.Router()

	// ── Basic routes ─────────────────────────────────────────────────────────

	r.Get("/", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		return gohttp.Success(map[string]any{"message": "Welcome to Go-Kernel!", "version": app.Version}), nil
	}), routing.Named("welcome"))

	// ── Route prefix (like Route::prefix('api')) ──────────────────────────────

	api := r.Prefix("/api/v1").Name("api.")
	api.Get("/users", routing.Controller(userControllerType, (*UserController).Index), routing.Named("users.index"))
	api.Post("/users", routing.Controller(userControllerType, (*UserController).Store), routing.Named("users.store"))
	api.Get("/users/{id}", routing.Controller(userControllerType, (*UserController).Show),
		routing.Named("users.show"),
		routing.Where(validation.Rules{"id": "integer"}),
	)

	// ── Auth group with middleware ────────────────────────────────────────────

	r.Use(Authenticate).Group(func(protected routing.Registrar) {
		protected.Get("/profile", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
			return gohttp.Success(map[string]any{"user": "authenticated"}), nil
		}), routing.Named("profile"))
	})

	// ── WebSocket ────────────────────────────────────────────────────────────

	r.Get("/ws/echo", routing.HandlerFunc(Echo), routing.Named("ws.echo"))

	r.Fallback("/api/{any}", routing.HandlerFunc(func(context.Context, *container.Scope) (*gohttp.Response, error) {
		return gohttp.NotFound("Unknown API endpoint."), nil
	}))
}

// ── Controllers ──────────────────────────────────────────────────────────────

// UserController is built once per request with the request logger.
type UserController struct {
	Log *slog.Logger
}

var userControllerType = container.Describe("UserController",
	container.Inject(kernel.LoggerKey, func(c *UserController, l *slog.Logger) { c.Log = l }),
)

func (c *UserController) Index(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	return gohttp.Success([]map[string]any{
		{"id": 1, "name": "Alice"},
		{"id": 2, "name": "Bob"},
	}), nil
}

func (c *UserController) Store(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	req, err := container.Get(ctx, s, gohttp.RequestKey)
	if err != nil {
		return nil, err
	}

	// 1. Bind JSON body into a struct
	var body struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Age   string `json:"age"`
	}
	if err := req.Bind(&body); err != nil {
		return nil, gohttp.NewError(http.StatusBadRequest, err.Error())
	}

	// 2. Validate
	v := validation.Make(map[string]string{
		"name":  body.Name,
		"email": body.Email,
		"age":   body.Age,
	}, validation.Rules{
		"name":  "required|min:2|max:100",
		"email": "required|email",
		"age":   "required|numeric|gte:18",
	})
	if v.Fails() {
		// 3. Return 422 {"errors": {"field": ["msg"]}}
		return gohttp.ValidationError(v.Errors()), nil
	}

	c.Log.InfoContext(ctx, "user created", slog.String("email", body.Email))
	return gohttp.Created(map[string]any{
		"name":  body.Name,
		"email": body.Email,
	}), nil
}

func (c *UserController) Show(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	return gohttp.Success(map[string]any{"id": routing.RouteParam(ctx, s, "id")}), nil
}

// ── Middleware ───────────────────────────────────────────────────────────────

// Authenticate is an example bearer token guard.
func Authenticate(ctx context.Context, s *container.Scope, next routing.Next) (*gohttp.Response, error) {
	req, err := container.Get(ctx, s, gohttp.RequestKey)
	if err != nil {
		return nil, err
	}
	if req.BearerToken() == "" {
		return gohttp.Unauthorized(), nil
	}
	return next()
}

// ── WebSocket ────────────────────────────────────────────────────────────────

var upgrader = &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}

// Echo writes every received message back.
func Echo(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	return gohttp.UpgradeWebSocket(ctx, s, upgrader, func(ctx context.Context, ws *websocket.Conn) {
		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	})
}
