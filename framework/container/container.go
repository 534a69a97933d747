package container

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// ── Slots ─────────────────────────────────────────────────────────────────────

// resolverFunc is the untyped form every Resolver is stored as.
type resolverFunc func(ctx context.Context, s *Scope) (any, error)

// slot is the per-key binding state of one container.
//
// Lifecycle: unbound → registered (resolver set) → resolved (value cached).
// immutable, once set, is never cleared.
type slot struct {
	resolver  resolverFunc
	value     any
	resolved  bool
	immutable bool

	// pending is non-nil while a resolver runs; concurrent lookups wait on it.
	// owner is the resolution running it.
	pending chan struct{}
	owner   *resolution

	// one-shot OnResolved listeners
	listeners []func(any)
}

// writable checks whether a set/register may touch the slot.
func (sl *slot) writable(h Handle, immutable bool) error {
	if sl.immutable {
		return newError(h, nil, ErrImmutable)
	}
	if immutable && (sl.resolved || sl.resolver != nil) {
		return newError(h, nil, ErrBound)
	}
	return nil
}

// ── Container ─────────────────────────────────────────────────────────────────

// Container is a single physical instance store mapping keys (and type
// descriptors) to lazily computed, memoized values.
//
// A container is usually created per request and discarded afterwards.
// Lookups never walk a parent chain; the only fallback is the Defaults table.
// Resolution happens through a Scope, which carries the reference set used
// for cycle detection. Every exported operation accepts a Source, which is
// either the container itself (empty reference set) or a Scope.
type Container struct {
	mu       sync.Mutex
	slots    map[Handle]*slot
	defaults *Defaults

	// resolved callbacks: label, instance
	afterResolving []func(string, any)
}

// Option configures a Container.
type Option func(*Container)

// WithDefaults makes the container fall back to d instead of Global.
func WithDefaults(d *Defaults) Option {
	return func(c *Container) {
		c.defaults = d
	}
}

// New creates an empty container.
func New(opts ...Option) *Container {
	c := &Container{
		slots:    make(map[Handle]*slot),
		defaults: Global,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Source is anything resolution can start from: a *Container or a *Scope.
type Source interface {
	scope() *Scope
}

// Scope returns a root view of the container with an empty reference set.
func (c *Container) Scope() *Scope { return &Scope{c: c} }

func (c *Container) scope() *Scope { return c.Scope() }

// Defaults returns the fallback table of the container.
func (c *Container) Defaults() *Defaults { return c.defaults }

// slotFor returns the slot for h, creating it. Must hold mu.
func (c *Container) slotFor(h Handle) *slot {
	sl, ok := c.slots[h]
	if !ok {
		sl = &slot{}
		c.slots[h] = sl
	}
	return sl
}

// AfterResolving registers a callback fired after any key or singleton type
// is resolved or set. Callbacks run after per-key OnResolved listeners.
func (c *Container) AfterResolving(cb func(label string, instance any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterResolving = append(c.afterResolving, cb)
}

// Bindings returns the sorted labels of every slot holding a value or
// resolver (for debugging).
func (c *Container) Bindings() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.slots))
	for h, sl := range c.slots {
		if sl.resolved || sl.resolver != nil {
			out = append(out, h.Label())
		}
	}
	slices.Sort(out)
	return out
}

// ── Resolution ────────────────────────────────────────────────────────────────

// resolve returns the value for h, running its resolver at most once.
// implicit, when non-nil, acts as the resolver of a slot that has none
// (used for singleton types); otherwise the defaults table is consulted.
func (s *Scope) resolve(ctx context.Context, h Handle, implicit resolverFunc) (any, error) {
	next, err := s.enter(h)
	if err != nil {
		return nil, err
	}
	c := s.c

	for {
		c.mu.Lock()
		sl := c.slots[h]

		if sl != nil && sl.resolved {
			v := sl.value
			c.mu.Unlock()
			return v, nil
		}

		if sl != nil && sl.pending != nil {
			wait, holder := sl.pending, sl.owner
			c.mu.Unlock()
			if !next.owner.await(holder) {
				return nil, newError(h, s.Chain(), ErrCycle)
			}
			select {
			case <-wait:
				next.owner.release()
				continue
			case <-ctx.Done():
				next.owner.release()
				return nil, ctx.Err()
			}
		}

		resolver := implicit
		if sl != nil && sl.resolver != nil {
			resolver = sl.resolver
		}
		if resolver == nil {
			c.mu.Unlock()
			if v, ok := c.defaults.lookup(h); ok {
				return v, nil
			}
			return nil, newError(h, s.Chain(), ErrUnbound)
		}

		sl = c.slotFor(h)
		done := make(chan struct{})
		sl.pending, sl.owner = done, next.owner
		c.mu.Unlock()

		v, err := c.call(ctx, next, resolver, sl, done)

		c.mu.Lock()
		sl.pending, sl.owner = nil, nil
		close(done)
		if err != nil {
			c.mu.Unlock()
			return nil, wrapError(h, err)
		}
		if sl.resolved {
			// A Set landed while the resolver ran; the direct value wins.
			v = sl.value
			c.mu.Unlock()
			return v, nil
		}
		sl.value, sl.resolved = v, true
		listeners, hooks := c.takeListeners(sl)
		c.mu.Unlock()

		notify(h, v, listeners, hooks)
		return v, nil
	}
}

// call runs r. If r panics, the slot is released before the panic
// propagates so later lookups run the resolver again instead of waiting.
func (c *Container) call(ctx context.Context, s *Scope, r resolverFunc, sl *slot, done chan struct{}) (v any, err error) {
	returned := false
	defer func() {
		if returned {
			return
		}
		c.mu.Lock()
		sl.pending, sl.owner = nil, nil
		close(done)
		c.mu.Unlock()
	}()
	v, err = r(ctx, s)
	returned = true
	return v, err
}

// takeListeners detaches the one-shot listeners of sl. Must hold mu.
func (c *Container) takeListeners(sl *slot) ([]func(any), []func(string, any)) {
	listeners := sl.listeners
	sl.listeners = nil
	return listeners, slices.Clone(c.afterResolving)
}

// notify runs key listeners, then container hooks. Never called with mu held
// so callbacks observe the post-assignment state and may use the container.
func notify(h Handle, v any, listeners []func(any), hooks []func(string, any)) {
	for _, fn := range listeners {
		fn(v)
	}
	for _, fn := range hooks {
		fn(h.Label(), v)
	}
}

func (c *Container) set(h Handle, v any, immutable bool) error {
	c.mu.Lock()
	sl := c.slotFor(h)
	if err := sl.writable(h, immutable); err != nil {
		c.mu.Unlock()
		return err
	}
	sl.value, sl.resolved, sl.resolver = v, true, nil
	sl.immutable = immutable
	listeners, hooks := c.takeListeners(sl)
	c.mu.Unlock()

	notify(h, v, listeners, hooks)
	return nil
}

func (c *Container) register(h Handle, r resolverFunc, immutable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	sl := c.slotFor(h)
	if err := sl.writable(h, immutable); err != nil {
		return err
	}
	if sl.resolved {
		return newError(h, nil, ErrAlreadyResolved)
	}
	sl.resolver = r
	sl.immutable = immutable
	return nil
}

func (c *Container) isImmutable(h Handle) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	sl, ok := c.slots[h]
	return ok && sl.immutable
}

// ── Typed API ─────────────────────────────────────────────────────────────────

// Resolver computes the value of a key. It receives the Scope it is being
// resolved in and may resolve other keys through it.
type Resolver[T any] func(ctx context.Context, s *Scope) (T, error)

func (r Resolver[T]) untyped() resolverFunc {
	return func(ctx context.Context, s *Scope) (any, error) {
		return r(ctx, s)
	}
}

// Has reports whether h has a cached value, a resolver, or a default.
// It never triggers resolution.
func Has(src Source, h Handle) bool {
	c := src.scope().c
	c.mu.Lock()
	sl, ok := c.slots[h]
	bound := ok && (sl.resolved || sl.resolver != nil)
	c.mu.Unlock()
	if bound {
		return true
	}
	_, ok = c.defaults.lookup(h)
	return ok
}

// Get returns the value of k, computing and caching it on first access.
//
//	db, err := container.Get(ctx, scope, DBKey)
func Get[T any](ctx context.Context, src Source, k *Key[T]) (T, error) {
	v, err := src.scope().resolve(ctx, k, nil)
	if err != nil {
		var zero T
		return zero, err
	}
	return cast[T](k, v)
}

// MustGet is like Get but panics on failure. Meant for bootstrap code.
func MustGet[T any](ctx context.Context, src Source, k *Key[T]) T {
	v, err := Get(ctx, src, k)
	if err != nil {
		panic(err)
	}
	return v
}

func cast[T any](h Handle, v any) (T, error) {
	if v == nil {
		var zero T
		return zero, nil
	}
	typed, ok := v.(T)
	if !ok {
		var zero T
		return zero, newError(h, nil, fmt.Errorf("%w: %T", ErrType, v))
	}
	return typed, nil
}

// Set stores v directly under k, dropping any resolver.
// It fails only if k is immutable.
func Set[T any](src Source, k *Key[T], v T) error {
	return src.scope().c.set(k, v, false)
}

// SetImmutable stores v under k and locks the binding for the life of the
// container. k must not already hold a value or resolver.
func SetImmutable[T any](src Source, k *Key[T], v T) error {
	return src.scope().c.set(k, v, true)
}

// Register installs a resolver for k without invoking it.
func Register[T any](src Source, k *Key[T], r Resolver[T]) error {
	return src.scope().c.register(k, r.untyped(), false)
}

// RegisterImmutable installs a resolver and locks the binding.
func RegisterImmutable[T any](src Source, k *Key[T], r Resolver[T]) error {
	return src.scope().c.register(k, r.untyped(), true)
}

// Replace resolves the current value of k, applies fn and stores the result
// as a direct value.
func Replace[T any](ctx context.Context, src Source, k *Key[T], fn func(T) (T, error)) error {
	s := src.scope()
	if s.c.isImmutable(k) {
		return newError(k, s.Chain(), ErrImmutable)
	}
	cur, err := Get(ctx, s, k)
	if err != nil {
		return err
	}
	next, err := fn(cur)
	if err != nil {
		return wrapError(k, err)
	}
	return s.c.set(k, next, false)
}

// Derive wraps the resolver of k: the original value is computed first and
// handed to fn, whose result becomes the value of k.
//
//	container.Derive(c, LoggerKey, func(ctx context.Context, l *slog.Logger) (*slog.Logger, error) {
//	    return l.With("component", "billing"), nil
//	})
func Derive[T any](src Source, k *Key[T], fn func(ctx context.Context, v T) (T, error)) error {
	c := src.scope().c
	c.mu.Lock()
	defer c.mu.Unlock()

	sl := c.slotFor(k)
	switch {
	case sl.immutable:
		return newError(k, nil, ErrImmutable)
	case sl.resolved:
		return newError(k, nil, ErrAlreadyResolved)
	case sl.resolver == nil:
		return newError(k, nil, ErrNoResolver)
	}

	prev := sl.resolver
	sl.resolver = func(ctx context.Context, s *Scope) (any, error) {
		v, err := prev(ctx, s)
		if err != nil {
			return nil, err
		}
		typed, err := cast[T](k, v)
		if err != nil {
			return nil, err
		}
		return fn(ctx, typed)
	}
	return nil
}

// IsResolved reports whether a value for h is cached (not merely registered).
func IsResolved(src Source, h Handle) bool {
	c := src.scope().c
	c.mu.Lock()
	defer c.mu.Unlock()
	sl, ok := c.slots[h]
	return ok && sl.resolved
}

// OnResolved subscribes fn to fire exactly once, the next time k is resolved
// or set. If k is already resolved fn runs immediately.
func OnResolved[T any](src Source, k *Key[T], fn func(T)) {
	c := src.scope().c
	c.mu.Lock()
	sl := c.slotFor(k)
	if sl.resolved {
		v := sl.value
		c.mu.Unlock()
		if typed, err := cast[T](k, v); err == nil {
			fn(typed)
		}
		return
	}
	sl.listeners = append(sl.listeners, func(v any) {
		if typed, err := cast[T](k, v); err == nil {
			fn(typed)
		}
	})
	c.mu.Unlock()
}
