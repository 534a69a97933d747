package routing

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/km-arc/go-kernel/framework/container"
	gohttp "github.com/km-arc/go-kernel/framework/http"
	"github.com/km-arc/go-kernel/framework/http/validation"
)

// Keys under which the kernel publishes the resolved route.
var (
	MatchKey  = container.NewKey[*Match]("route.match")
	ParamsKey = container.NewKey[Params]("route.params")
)

// RouteParam returns a captured route parameter of the current request, or "".
//
//	id := routing.RouteParam(ctx, s, "id")
func RouteParam(ctx context.Context, src container.Source, name string) string {
	ps, err := container.Get(ctx, src, ParamsKey)
	if err != nil {
		return ""
	}
	return ps.Get(name)
}

// ── Route ─────────────────────────────────────────────────────────────────────

// Route is one registered rule.
type Route struct {
	Methods []string
	Path    string // normalized template, e.g. /users/{id}

	// Pattern is the compiled full-path expression. It is only exposed for
	// introspection; matching walks the trie.
	Pattern *regexp.Regexp

	// Middleware is action middleware followed by route middleware.
	Middleware []Middleware
	Action     Action
	Name       string

	fallback bool
	where    *validation.Ruleset
}

// IsFallback reports whether the route only matches when nothing else does.
func (rt *Route) IsFallback() bool { return rt.fallback }

func (rt *Route) accepts(ps Params) bool {
	return rt.where == nil || rt.where.Passes(ps.Map())
}

// Match is the result of a successful resolution.
type Match struct {
	Route  *Route
	Params Params
}

// ── Options ───────────────────────────────────────────────────────────────────

type routeConfig struct {
	name       string
	namePrefix string
	middleware []Middleware
	where      validation.Rules
	fallback   bool
}

// RouteOption configures a single registration.
type RouteOption func(*routeConfig)

// Named names the route; enclosing group name prefixes are prepended.
func Named(name string) RouteOption {
	return func(c *routeConfig) { c.name = name }
}

// With appends route-level middleware.
func With(mw ...Middleware) RouteOption {
	return func(c *routeConfig) { c.middleware = append(c.middleware, mw...) }
}

// Where constrains captured parameters with validation rules. A candidate
// whose parameters fail the rules does not match, and resolution moves on.
//
//	r.Get("/users/{id}", show, routing.Where(validation.Rules{"id": "integer"}))
func Where(rules validation.Rules) RouteOption {
	return func(c *routeConfig) {
		if c.where == nil {
			c.where = validation.Rules{}
		}
		for k, v := range rules {
			c.where[k] = v
		}
	}
}

func asFallback() RouteOption {
	return func(c *routeConfig) { c.fallback = true }
}

// ── Router ────────────────────────────────────────────────────────────────────

// Router registers method+path rules into one trie per method and resolves
// requests against them. The embedded Registrar is the root builder, so
// r.Get, r.Prefix, r.Group and friends are available directly.
type Router struct {
	Registrar

	mu     sync.RWMutex
	trees  map[string]*node
	names  map[string]*Route
	routes []*Route
}

// New creates an empty router.
func New() *Router {
	r := &Router{
		trees: make(map[string]*node),
		names: make(map[string]*Route),
	}
	r.Registrar = Registrar{router: r}
	return r
}

// add inserts a rule. Invalid patterns panic, like any other programming
// error made while declaring routes.
func (r *Router) add(methods []string, path string, action Action, opts []RouteOption) *Route {
	var cfg routeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	p := NormalizePath(path)
	segs, full, err := compilePath(p)
	if err != nil {
		panic(err)
	}

	rt := &Route{
		Path:     p,
		Pattern:  full,
		Action:   action,
		fallback: cfg.fallback,
	}
	for _, m := range methods {
		m = strings.ToUpper(m)
		if !slices.Contains(rt.Methods, m) {
			rt.Methods = append(rt.Methods, m)
		}
	}
	rt.Middleware = append(slices.Clone(action.Middleware()), cfg.middleware...)
	if cfg.where != nil {
		if rt.where, err = validation.Compile(cfg.where); err != nil {
			panic(fmt.Errorf("routing: %s: %w", p, err))
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range rt.Methods {
		tree, ok := r.trees[m]
		if !ok {
			tree = newNode()
			r.trees[m] = tree
		}
		if prev := tree.insert(segs, rt); prev != nil {
			r.displace(prev, m)
		}
	}

	if cfg.name != "" {
		name := cfg.namePrefix + cfg.name
		if old, ok := r.names[name]; ok && old != rt {
			old.Name = ""
		}
		rt.Name = name
		r.names[name] = rt
	}

	r.routes = append(r.routes, rt)
	return rt
}

// displace removes method m from a route that was overwritten in the trie.
// A route left without methods is forgotten entirely. Must hold mu.
func (r *Router) displace(prev *Route, m string) {
	prev.Methods = slices.DeleteFunc(prev.Methods, func(x string) bool { return x == m })
	if len(prev.Methods) > 0 {
		return
	}
	r.routes = slices.DeleteFunc(r.routes, func(x *Route) bool { return x == prev })
	if prev.Name != "" && r.names[prev.Name] == prev {
		delete(r.names, prev.Name)
	}
}

// Resolve finds the route for method and an escaped request path.
//
// It returns (nil, nil) when nothing matches. A path with a trailing slash
// that would otherwise match yields a *RedirectError to the stripped path.
// HEAD requests try HEAD routes first, then GET routes; a regular route of
// either beats a fallback of either.
func (r *Router) Resolve(method, path string) (*Match, error) {
	methods := []string{method}
	if method == http.MethodHead {
		methods = append(methods, http.MethodGet)
	}

	segs, err := decodeSegments(path)
	if err != nil {
		return nil, &gohttp.HTTPError{Status: http.StatusBadRequest, Message: "Malformed request path.", Err: err}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		rt       *Route
		params   Params
		fallback *lookup
	)
	for _, m := range methods {
		tree, ok := r.trees[m]
		if !ok {
			continue
		}
		l := &lookup{segs: segs, fallbackDepth: -1}
		if rt = tree.match(l, 0); rt != nil {
			params = l.params
			break
		}
		if fallback == nil && l.fallback != nil {
			fallback = l
		}
	}
	if rt == nil && fallback != nil {
		rt, params = fallback.fallback, fallback.fallbackParams
	}
	if rt == nil {
		return nil, nil
	}

	if hasTrailingSlash(path) {
		return nil, &RedirectError{URL: NormalizePath(path), Status: http.StatusPermanentRedirect}
	}
	return &Match{Route: rt, Params: append(Params(nil), params...)}, nil
}

// Generate builds the URL of a named route by substituting {key}
// placeholders with path-escaped values. Placeholders without a value are
// left as they are.
//
//	url, err := r.Generate("users.show", map[string]string{"id": "42"})  // /users/42
func (r *Router) Generate(name string, params map[string]string) (string, error) {
	r.mu.RLock()
	rt, ok := r.names[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrRouteNotFound, name)
	}

	return placeholder.ReplaceAllStringFunc(rt.Path, func(m string) string {
		if v, ok := params[m[1:len(m)-1]]; ok {
			return url.PathEscape(v)
		}
		return m
	}), nil
}

// Route returns the route registered under name.
func (r *Router) Route(name string) (*Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.names[name]
	return rt, ok
}

// Routes returns the registered routes sorted by path, then first method.
func (r *Router) Routes() []*Route {
	r.mu.RLock()
	out := slices.Clone(r.routes)
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Methods[0] < out[j].Methods[0]
	})
	return out
}
