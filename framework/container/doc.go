// Package container provides the dependency-resolution container used by the
// kernel: a map from typed identity keys to lazily computed, memoized values.
//
// # Keys
//
// Keys are created once and compared by identity; the label only appears in
// error messages.
//
//	var ConfigKey = container.NewKey[*config.Config]("config")
//
// # Bindings
//
//	c := container.New()
//
//	// Pre-built value
//	container.Set(c, ConfigKey, cfg)
//
//	// Lazy resolver, invoked at most once per container
//	container.Register(c, DBKey, func(ctx context.Context, s *container.Scope) (*sql.DB, error) {
//	    cfg, err := container.Get(ctx, s, ConfigKey)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return sql.Open("pgx", cfg.DSN)
//	})
//
//	// Immutable: can never be set, registered, replaced or derived again
//	container.SetImmutable(c, RequestKey, req)
//
//	// Decorate the resolver, or transform the current value
//	container.Derive(c, DBKey, wrapWithTracing)
//	container.Replace(ctx, c, CounterKey, func(n int) (int, error) { return n + 1, nil })
//
// # Resolving
//
//	db, err := container.Get(ctx, c, DBKey)
//
// Resolvers receive a *Scope carrying the keys currently being resolved.
// Resolving a key that is already in that set fails with ErrCycle instead of
// recursing forever:
//
//	container: circular dependency: a -> b -> a
//
// # Defaults
//
// A Defaults table holds process-wide fallbacks, consulted only when a
// container has no binding of its own. It accepts values until the first read.
//
//	d := container.NewDefaults()
//	container.Provide(d, LoggerKey, slog.Default())
//	c := container.New(container.WithDefaults(d))
//
// # Types
//
// Construct and Singleton build structs from explicit descriptors instead of
// reflected field metadata:
//
//	var ServiceType = container.Describe("Service",
//	    container.Inject(DBKey, func(s *Service, db *sql.DB) { s.db = db }),
//	    container.Depends(CacheType, func(s *Service, c *Cache) { s.cache = c }),
//	)
//
//	svc, err := container.Singleton(ctx, c, ServiceType)
//
// # Service Providers
//
//	registry := container.NewProviderRegistry(c)
//	registry.Register(ctx, &AppServiceProvider{})
//	registry.Boot(ctx)
package container
