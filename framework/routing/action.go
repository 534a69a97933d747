package routing

import (
	"context"

	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
)

// HandlerFunc produces the response for a matched route. The scope belongs to
// the request container.
type HandlerFunc func(ctx context.Context, s *container.Scope) (*gohttp.Response, error)

// Handle implements Action.
func (h HandlerFunc) Handle(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	return h(ctx, s)
}

// Middleware implements Action; plain handlers declare none.
func (h HandlerFunc) Middleware() []Middleware { return nil }

// Next invokes the rest of the chain.
type Next func() (*gohttp.Response, error)

// Middleware wraps the rest of the chain. Not calling next short-circuits it.
//
//	func Auth(ctx context.Context, s *container.Scope, next routing.Next) (*gohttp.Response, error) {
//	    req, err := container.Get(ctx, s, gohttp.RequestKey)
//	    if err != nil {
//	        return nil, err
//	    }
//	    if req.BearerToken() == "" {
//	        return gohttp.Unauthorized(), nil
//	    }
//	    return next()
//	}
type Middleware func(ctx context.Context, s *container.Scope, next Next) (*gohttp.Response, error)

// Action is the target of a route: a plain HandlerFunc or a controller method.
type Action interface {
	Handle(ctx context.Context, s *container.Scope) (*gohttp.Response, error)

	// Middleware declared on the action itself; it runs before route
	// middleware.
	Middleware() []Middleware
}

// Method is a controller method expression, e.g. (*UserController).Show.
type Method[T any] func(c *T, ctx context.Context, s *container.Scope) (*gohttp.Response, error)

type controllerAction[T any] struct {
	typ        *container.Type[T]
	method     Method[T]
	middleware []Middleware
}

// Controller targets a method of T. The controller instance is built at
// dispatch time as a singleton of the request container, so middleware and
// handler of one request share it.
//
//	r.Match([]string{"GET"}, "/users/{id}",
//	    routing.Controller(UserControllerType, (*UserController).Show, RequireAuth))
func Controller[T any](typ *container.Type[T], method Method[T], mw ...Middleware) Action {
	return &controllerAction[T]{typ: typ, method: method, middleware: mw}
}

func (a *controllerAction[T]) Handle(ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
	inst, err := container.Singleton(ctx, s, a.typ)
	if err != nil {
		return nil, err
	}
	return a.method(inst, ctx, s)
}

func (a *controllerAction[T]) Middleware() []Middleware { return a.middleware }

// ResourceController is a RESTful controller.
//
//	GET    /photos           → Index
//	POST   /photos           → Store
//	GET    /photos/{id}      → Show
//	PUT    /photos/{id}      → Update
//	PATCH  /photos/{id}      → Update
//	DELETE /photos/{id}      → Destroy
type ResourceController interface {
	Index(ctx context.Context, s *container.Scope) (*gohttp.Response, error)
	Store(ctx context.Context, s *container.Scope) (*gohttp.Response, error)
	Show(ctx context.Context, s *container.Scope) (*gohttp.Response, error)
	Update(ctx context.Context, s *container.Scope) (*gohttp.Response, error)
	Destroy(ctx context.Context, s *container.Scope) (*gohttp.Response, error)
}

// Resource registers the standard RESTful routes of a controller type,
// named name.index, name.store, name.show, name.update and name.destroy.
func Resource[T any, PT interface {
	*T
	ResourceController
}](g Registrar, path, name string, typ *container.Type[T], opts ...RouteOption) {
	method := func(pick func(PT) HandlerFunc) Action {
		return Controller(typ, func(c *T, ctx context.Context, s *container.Scope) (*gohttp.Response, error) {
			return pick(PT(c))(ctx, s)
		})
	}
	named := func(suffix string) []RouteOption {
		return append([]RouteOption{Named(name + "." + suffix)}, opts...)
	}
	item := path + "/{id}"

	g.Match([]string{"GET"}, path, method(func(c PT) HandlerFunc { return c.Index }), named("index")...)
	g.Match([]string{"POST"}, path, method(func(c PT) HandlerFunc { return c.Store }), named("store")...)
	g.Match([]string{"GET"}, item, method(func(c PT) HandlerFunc { return c.Show }), named("show")...)
	g.Match([]string{"PUT", "PATCH"}, item, method(func(c PT) HandlerFunc { return c.Update }), named("update")...)
	g.Match([]string{"DELETE"}, item, method(func(c PT) HandlerFunc { return c.Destroy }), named("destroy")...)
}
