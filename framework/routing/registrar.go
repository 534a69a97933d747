package routing

import (
	"net/http"
	"slices"
)

// Registrar declares routes under a shared path prefix, name prefix and
// middleware. Registrars are values: every builder method returns a new one
// and leaves the receiver untouched.
//
//	api := r.Prefix("/api").Name("api.").Use(Auth)
//	api.Get("/users/{id}", showUser, routing.Named("users.show"))  // api.users.show
type Registrar struct {
	router     *Router
	prefix     string
	namePrefix string
	middleware []Middleware
}

// Prefix returns a registrar whose paths are nested under p.
func (g Registrar) Prefix(p string) Registrar {
	g.prefix = joinPath(g.prefix, p)
	if g.prefix == "/" {
		g.prefix = ""
	}
	return g
}

// Name returns a registrar that prepends prefix to route names.
func (g Registrar) Name(prefix string) Registrar {
	g.namePrefix += prefix
	return g
}

// Use returns a registrar that adds mw to every route it declares.
func (g Registrar) Use(mw ...Middleware) Registrar {
	g.middleware = append(slices.Clip(g.middleware), mw...)
	return g
}

// Group calls fn with g, for declaring related routes in one block.
//
//	r.Prefix("/admin").Use(AdminOnly).Group(func(admin routing.Registrar) {
//	    admin.Get("/stats", stats)
//	})
func (g Registrar) Group(fn func(Registrar)) {
	fn(g)
}

// Match registers action for the given methods.
func (g Registrar) Match(methods []string, path string, action Action, opts ...RouteOption) *Route {
	all := make([]RouteOption, 0, len(opts)+2)
	all = append(all, func(c *routeConfig) { c.namePrefix = g.namePrefix })
	if len(g.middleware) > 0 {
		all = append(all, With(g.middleware...))
	}
	all = append(all, opts...)
	return g.router.add(methods, joinPath(g.prefix, path), action, all)
}

// Get registers a GET route. HEAD requests are served by it as well.
func (g Registrar) Get(path string, action Action, opts ...RouteOption) *Route {
	return g.Match([]string{http.MethodGet}, path, action, opts...)
}

// Post registers a POST route.
func (g Registrar) Post(path string, action Action, opts ...RouteOption) *Route {
	return g.Match([]string{http.MethodPost}, path, action, opts...)
}

// Put registers a PUT route.
func (g Registrar) Put(path string, action Action, opts ...RouteOption) *Route {
	return g.Match([]string{http.MethodPut}, path, action, opts...)
}

// Patch registers a PATCH route.
func (g Registrar) Patch(path string, action Action, opts ...RouteOption) *Route {
	return g.Match([]string{http.MethodPatch}, path, action, opts...)
}

// Delete registers a DELETE route.
func (g Registrar) Delete(path string, action Action, opts ...RouteOption) *Route {
	return g.Match([]string{http.MethodDelete}, path, action, opts...)
}

// Options registers an OPTIONS route.
func (g Registrar) Options(path string, action Action, opts ...RouteOption) *Route {
	return g.Match([]string{http.MethodOptions}, path, action, opts...)
}

// AnyMethods lists the methods registered by Any and Fallback.
var AnyMethods = []string{
	http.MethodGet, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// Any registers action for every method in AnyMethods.
func (g Registrar) Any(path string, action Action, opts ...RouteOption) *Route {
	return g.Match(AnyMethods, path, action, opts...)
}

// Fallback registers a catch-all below path. It only matches when no regular
// route does; among fallbacks on the way down, the deepest wins.
//
//	r.Prefix("/api").Fallback("/", apiNotFound)
func (g Registrar) Fallback(path string, action Action, opts ...RouteOption) *Route {
	return g.Match(AnyMethods, path, action, append(slices.Clip(opts), asFallback())...)
}
