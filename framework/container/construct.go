package container

import (
	"context"
	"fmt"
)

// ── Type descriptors ──────────────────────────────────────────────────────────

// injector fills one dependency of a freshly allocated *T.
type injector[T any] func(ctx context.Context, s *Scope, v *T) error

// Type describes how to build a *T: which context values and which other
// types it wants, in declaration order. Descriptors replace reflected
// property metadata; build them once, usually as package-level variables.
//
//	var UserControllerType = container.Describe("UserController",
//	    container.Inject(LoggerKey, func(c *UserController, l *slog.Logger) { c.log = l }),
//	    container.Depends(UserRepoType, func(c *UserController, r *UserRepo) { c.repo = r }),
//	)
type Type[T any] struct {
	name  string
	wants []injector[T]
	hooks []injector[T]
}

// TypeOption declares one dependency or hook of a Type.
type TypeOption[T any] func(*Type[T])

// Describe builds a descriptor for T. The option list is flattened here,
// embedded bases included, so construction never walks a hierarchy.
func Describe[T any](name string, opts ...TypeOption[T]) *Type[T] {
	t := &Type[T]{name: name}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Label returns the descriptor name.
func (t *Type[T]) Label() string { return t.name }

func (t *Type[T]) String() string { return t.name }

// Inject requests the context value k and hands it to assign.
func Inject[T, V any](k *Key[V], assign func(*T, V)) TypeOption[T] {
	return func(t *Type[T]) {
		t.wants = append(t.wants, func(ctx context.Context, s *Scope, v *T) error {
			val, err := Get(ctx, s, k)
			if err != nil {
				return err
			}
			assign(v, val)
			return nil
		})
	}
}

// InjectVia requests k from another container, reached by resolving each key
// of via in turn, each one in the container produced by the previous hop.
// A typical use is reading an application-wide value from a request
// container that holds the application container under a key.
//
//	container.InjectVia(ConfigKey, assign, kernel.AppKey)
func InjectVia[T, V any](k *Key[V], assign func(*T, V), via ...*Key[*Container]) TypeOption[T] {
	return func(t *Type[T]) {
		t.wants = append(t.wants, func(ctx context.Context, s *Scope, v *T) error {
			cur := s
			for _, hop := range via {
				next, err := Get(ctx, cur, hop)
				if err != nil {
					return err
				}
				if next == nil {
					return newError(hop, cur.Chain(), ErrUnbound)
				}
				cur = cur.in(next)
			}
			val, err := Get(ctx, cur, k)
			if err != nil {
				return err
			}
			assign(v, val)
			return nil
		})
	}
}

// Depends requests the container-wide singleton of dep.
func Depends[T, D any](dep *Type[D], assign func(*T, *D)) TypeOption[T] {
	return func(t *Type[T]) {
		t.wants = append(t.wants, func(ctx context.Context, s *Scope, v *T) error {
			d, err := Singleton(ctx, s, dep)
			if err != nil {
				return err
			}
			assign(v, d)
			return nil
		})
	}
}

// DependsNew requests a freshly constructed instance of dep.
func DependsNew[T, D any](dep *Type[D], assign func(*T, *D)) TypeOption[T] {
	return func(t *Type[T]) {
		t.wants = append(t.wants, func(ctx context.Context, s *Scope, v *T) error {
			d, err := Construct(ctx, s, dep)
			if err != nil {
				return err
			}
			assign(v, d)
			return nil
		})
	}
}

// Embed merges the wants and hooks of base into T. field returns the
// embedded base inside a *T. Base wants run first, in their own order.
//
//	var AdminType = container.Describe("Admin",
//	    container.Embed(UserType, func(a *Admin) *User { return &a.User }),
//	)
func Embed[T, B any](base *Type[B], field func(*T) *B) TypeOption[T] {
	return func(t *Type[T]) {
		for _, w := range base.wants {
			t.wants = append(t.wants, func(ctx context.Context, s *Scope, v *T) error {
				return w(ctx, s, field(v))
			})
		}
		for _, h := range base.hooks {
			t.hooks = append(t.hooks, func(ctx context.Context, s *Scope, v *T) error {
				return h(ctx, s, field(v))
			})
		}
	}
}

// OnBuild runs fn after every want has been injected.
func OnBuild[T any](fn func(ctx context.Context, s *Scope, v *T) error) TypeOption[T] {
	return func(t *Type[T]) {
		t.hooks = append(t.hooks, fn)
	}
}

// ── Construction ──────────────────────────────────────────────────────────────

func (t *Type[T]) build(ctx context.Context, s *Scope) (*T, error) {
	v := new(T)
	for _, w := range t.wants {
		if err := w(ctx, s, v); err != nil {
			return nil, t.wrap(err)
		}
	}
	for _, h := range t.hooks {
		if err := h(ctx, s, v); err != nil {
			return nil, t.wrap(err)
		}
	}
	return v, nil
}

func (t *Type[T]) wrap(err error) error {
	if _, ok := err.(*ResolutionError); ok {
		return err
	}
	return fmt.Errorf("container: building [%s]: %w", t.name, err)
}

// Construct always builds a fresh *T. Type-level cycles fail with ErrCycle.
func Construct[T any](ctx context.Context, src Source, typ *Type[T]) (*T, error) {
	next, err := src.scope().enter(typ)
	if err != nil {
		return nil, err
	}
	return typ.build(ctx, next)
}

// Singleton builds *T once per container and returns the cached instance on
// every later call.
func Singleton[T any](ctx context.Context, src Source, typ *Type[T]) (*T, error) {
	v, err := src.scope().resolve(ctx, typ, func(ctx context.Context, s *Scope) (any, error) {
		return typ.build(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	inst, ok := v.(*T)
	if !ok {
		return nil, newError(typ, nil, fmt.Errorf("%w: %T", ErrType, v))
	}
	return inst, nil
}
