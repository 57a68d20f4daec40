package remote

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/wippyai/mfe-bridge/contract"
	"github.com/wippyai/mfe-bridge/errors"
)

// Resolver loads remote modules and caches their namespaces.
// It is safe for concurrent use.
type Resolver struct {
	fetcher       Fetcher
	cache         *Cache
	logger        *zap.Logger
	evaluators    map[Format]Evaluator
	aliases       map[string]string
	manifests     map[string]*Manifest
	local         map[Key]contract.Namespace
	defaultOrigin string
	loads         singleflight.Group
	manifestLoads singleflight.Group
	mu            sync.RWMutex
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(r *Resolver) { r.fetcher = f }
}

// WithCache injects a shared module cache.
func WithCache(c *Cache) Option {
	return func(r *Resolver) { r.cache = c }
}

// WithEvaluator registers the evaluator for a format.
func WithEvaluator(format Format, ev Evaluator) Option {
	return func(r *Resolver) { r.evaluators[format] = ev }
}

// WithDefaultOrigin sets the origin used when a spec leaves it empty.
func WithDefaultOrigin(origin string) Option {
	return func(r *Resolver) { r.defaultOrigin = origin }
}

// WithAliases maps short remote names to origin URLs.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for k, v := range aliases {
			r.aliases[k] = v
		}
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// NewResolver creates a resolver with an empty cache.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		evaluators: make(map[Format]Evaluator),
		aliases:    make(map[string]string),
		manifests:  make(map[string]*Manifest),
		local:      make(map[Key]contract.Namespace),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.fetcher == nil {
		r.fetcher = NewHTTPFetcher(0, 0)
	}
	if r.cache == nil {
		r.cache = NewCache()
	}
	if r.logger == nil {
		r.logger = Logger()
	}
	return r
}

// Cache returns the resolver's module cache.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// RegisterLocal makes ns resolvable under (origin, module) without any
// network access.
func (r *Resolver) RegisterLocal(origin, module string, ns contract.Namespace) {
	r.mu.Lock()
	r.local[Key{Origin: r.origin(origin), Module: module}] = ns
	r.mu.Unlock()
}

// Normalize applies the default origin and alias table to spec.
func (r *Resolver) Normalize(spec Spec) Spec {
	spec.Origin = r.origin(spec.Origin)
	return spec
}

func (r *Resolver) origin(o string) string {
	if o == "" {
		return r.defaultOrigin
	}
	if target, ok := r.aliases[o]; ok {
		return target
	}
	return o
}

// Resolve returns the namespace of the module spec points at. The network
// fetch and evaluation happen at most once per (origin, module) per
// session; concurrent callers share one in-flight load. Cancelling ctx
// abandons the wait but not the shared load.
func (r *Resolver) Resolve(ctx context.Context, spec Spec) (contract.Namespace, error) {
	spec = r.Normalize(spec)
	if spec.Origin == "" || spec.Module == "" {
		return nil, errors.RemoteLoad(errors.PhaseResolve, spec.Origin, spec.Module,
			errors.InvalidInput(errors.PhaseResolve, "origin and module are required"))
	}
	key := spec.Key()

	if ns, ok := r.cache.Get(key); ok {
		return ns, nil
	}

	r.mu.RLock()
	localNS, isLocal := r.local[key]
	r.mu.RUnlock()
	if isLocal {
		return r.cache.Put(key, localNS), nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := r.loads.DoChan(key.flightKey(), func() (any, error) {
		return r.load(loadCtx, key)
	})

	select {
	case <-ctx.Done():
		return nil, errors.RemoteLoad(errors.PhaseResolve, key.Origin, key.Module, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			r.logger.Debug("joined in-flight load", zap.Stringer("key", key))
		}
		return res.Val.(contract.Namespace), nil
	}
}

func (r *Resolver) load(ctx context.Context, key Key) (ns contract.Namespace, err error) {
	if ns, ok := r.cache.Get(key); ok {
		return ns, nil
	}

	r.logger.Info("loading remote module", zap.String("origin", key.Origin), zap.String("module", key.Module))

	m, err := r.Manifest(ctx, key.Origin)
	if err != nil {
		return nil, err
	}

	exposed, ok := m.Module(key.Module)
	if !ok {
		return nil, errors.RemoteLoad(errors.PhaseResolve, key.Origin, key.Module,
			errors.NotFound(errors.PhaseResolve, "exposed module", key.Module))
	}

	ev, ok := r.evaluators[exposed.Format]
	if !ok {
		return nil, errors.RemoteLoad(errors.PhaseEvaluate, key.Origin, key.Module,
			errors.Unsupported(errors.PhaseEvaluate, "no evaluator for format "+string(exposed.Format)))
	}

	artifactURL, err := ResolveRef(key.Origin, exposed.Path)
	if err != nil {
		return nil, errors.RemoteLoad(errors.PhaseFetch, key.Origin, key.Module, err)
	}

	src, err := r.fetcher.Fetch(ctx, artifactURL)
	if err != nil {
		return nil, errors.RemoteLoad(errors.PhaseFetch, key.Origin, key.Module, err)
	}

	bundle := &Bundle{Exposed: exposed, Key: key, URL: artifactURL, Source: src}

	defer func() {
		if rec := recover(); rec != nil {
			ns = nil
			err = errors.RemoteLoad(errors.PhaseEvaluate, key.Origin, key.Module, errors.Panic(errors.PhaseEvaluate, rec))
		}
	}()

	ns, err = ev.Evaluate(ctx, bundle)
	if err != nil {
		return nil, errors.RemoteLoad(errors.PhaseEvaluate, key.Origin, key.Module, err)
	}
	if ns == nil {
		ns = contract.Namespace{}
	}

	r.logger.Info("remote module loaded",
		zap.Stringer("key", key),
		zap.Strings("exports", ns.Names()),
		zap.Int("bytes", len(src)))

	return r.cache.Put(key, ns), nil
}

// Manifest returns the remote entry manifest of origin, fetching it at most
// once per session.
func (r *Resolver) Manifest(ctx context.Context, origin string) (*Manifest, error) {
	origin = r.origin(origin)

	r.mu.RLock()
	m, ok := r.manifests[origin]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	v, err, _ := r.manifestLoads.Do(origin, func() (any, error) {
		r.mu.RLock()
		m, ok := r.manifests[origin]
		r.mu.RUnlock()
		if ok {
			return m, nil
		}

		data, err := r.fetcher.Fetch(ctx, origin)
		if err != nil {
			return nil, errors.RemoteLoad(errors.PhaseFetch, origin, "", err)
		}
		m, err = ParseManifest(data)
		if err != nil {
			return nil, errors.RemoteLoad(errors.PhaseFetch, origin, "", err)
		}

		r.mu.Lock()
		r.manifests[origin] = m
		r.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Manifest), nil
}

// Preload resolves specs concurrently and returns the first failure.
func (r *Resolver) Preload(ctx context.Context, specs ...Spec) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		g.Go(func() error {
			_, err := r.Resolve(ctx, spec)
			return err
		})
	}
	return g.Wait()
}

// Close ends the session: the cache and manifest table are cleared and
// evaluators holding runtime resources are closed.
func (r *Resolver) Close(ctx context.Context) error {
	r.cache.Clear()

	r.mu.Lock()
	r.manifests = make(map[string]*Manifest)
	r.mu.Unlock()

	var firstErr error
	for format, ev := range r.evaluators {
		c, ok := ev.(Closer)
		if !ok {
			continue
		}
		if err := c.Close(ctx); err != nil && firstErr == nil {
			firstErr = errors.Wrap(errors.PhaseEvaluate, errors.KindInvalidData, err, "close evaluator "+string(format))
		}
	}
	return firstErr
}
