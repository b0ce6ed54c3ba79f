// Package store implements the storage collaborator controllers delegate
// to: id allocation, a cache of live controllers and a model repository.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zimmed/zimmed-core/internal/cachemanager"
	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/log"
)

// ErrUnknownKind is returned when a model is loaded for a kind no Type was
// registered for.
var ErrUnknownKind = errors.New("unknown controller kind")

// Store is the default datamodel.Store.
type Store struct {
	repo    ModelRepository
	ids     IDGenerator
	catalog *datamodel.Catalog
	cache   *cachemanager.InMemoryCache[datamodel.Controller]
	loader  *cachemanager.ReadThroughCache[datamodel.Controller]
	ttl     time.Duration
	depth   int
	// outer is handed to restored controllers so decorators stay in the path.
	outer datamodel.Store

	mu    sync.RWMutex
	types map[string]*datamodel.Type
}

var (
	_ datamodel.Store           = (*Store)(nil)
	_ datamodel.DispatchLimiter = (*Store)(nil)
)

// Options configures a Store.
type Options struct {
	IDs             IDGenerator
	Catalog         *datamodel.Catalog
	CacheTTL        time.Duration
	CleanupInterval time.Duration
	// SkipCache loads every controller from the repository.
	SkipCache bool
	// MaxDispatchDepth applies to types without their own limit.
	MaxDispatchDepth int
}

// New creates a Store over repo. Zero options fall back to uuid ids, a
// fresh catalog and the cachemanager defaults.
func New(repo ModelRepository, opts Options) *Store {
	if opts.IDs == nil {
		opts.IDs = UUIDGenerator{}
	}
	if opts.Catalog == nil {
		opts.Catalog = datamodel.NewCatalog()
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = cachemanager.DefaultExpiration
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = cachemanager.DefaultCleanupInterval
	}

	s := &Store{
		repo:    repo,
		ids:     opts.IDs,
		catalog: opts.Catalog,
		cache:   cachemanager.NewInMemoryCache[datamodel.Controller]("controllers", opts.CacheTTL, opts.CleanupInterval),
		ttl:     opts.CacheTTL,
		depth:   opts.MaxDispatchDepth,
		types:   make(map[string]*datamodel.Type),
	}
	s.outer = s
	s.cache.OnEvicted(func(key string, c datamodel.Controller) {
		log.Debug(log.CatCache, "controller evicted", "key", key)
	})
	s.loader = cachemanager.NewReadThroughCache(s.cache, s.restore, opts.SkipCache)
	return s
}

// Wrap makes restored controllers delegate to outer, a decorator of s.
func (s *Store) Wrap(outer datamodel.Store) {
	s.outer = outer
}

// MaxDispatchDepth returns the configured listener re-entry bound, zero
// when the engine default applies.
func (s *Store) MaxDispatchDepth() int { return s.depth }

// Catalog returns the catalog used to decode persisted rules.
func (s *Store) Catalog() *datamodel.Catalog { return s.catalog }

// Repository returns the underlying repository.
func (s *Store) Repository() ModelRepository { return s.repo }

// RegisterType makes kind loadable by Load without a prior call that
// carries its Type.
func (s *Store) RegisterType(t *datamodel.Type) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[t.Kind()] = t
}

// Type returns the registered Type for kind.
func (s *Store) Type(kind string) (*datamodel.Type, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.types[kind]
	return t, ok
}

// Kinds returns the registered kinds, sorted.
func (s *Store) Kinds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	kinds := make([]string, 0, len(s.types))
	for k := range s.types {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Load returns the controller for a registered kind.
func (s *Store) Load(ctx context.Context, kind, id string) (datamodel.Controller, error) {
	t, ok := s.Type(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return t.Load(ctx, s.outer, id)
}

// CachedKeys returns the "kind:id" keys of cached controllers.
func (s *Store) CachedKeys(ctx context.Context) []string {
	return s.cache.Keys(ctx)
}

func (s *Store) AllocateID(_ context.Context, t *datamodel.Type) (string, error) {
	s.RegisterType(t)
	id := s.ids.NewID()
	log.Debug(log.CatStore, "allocated id", "kind", t.Kind(), "id", id)
	return id, nil
}

func (s *Store) GetOrCreateController(ctx context.Context, t *datamodel.Type, id string) (datamodel.Controller, error) {
	s.RegisterType(t)
	return s.loader.GetWithRefresh(ctx, cachemanager.Key(t.Kind(), id), s.ttl)
}

func (s *Store) RegisterController(ctx context.Context, t *datamodel.Type, c datamodel.Controller) error {
	if c.ID() == "" {
		return &datamodel.InvalidOperationError{Op: "register " + t.Kind(), Reason: "controller has no id"}
	}
	s.RegisterType(t)
	s.cache.Set(ctx, cachemanager.Key(t.Kind(), c.ID()), c, s.ttl)
	log.Debug(log.CatStore, "registered controller", "kind", t.Kind(), "id", c.ID())
	return nil
}

func (s *Store) PersistModel(ctx context.Context, t *datamodel.Type, m *datamodel.Model) error {
	doc, err := datamodel.NewDocument(t.Kind(), m)
	if err != nil {
		return err
	}
	if doc.ID == "" {
		return &datamodel.InvalidOperationError{Op: "persist " + t.Kind(), Reason: "model has no uid"}
	}
	if err := s.repo.Save(ctx, doc); err != nil {
		log.ErrorErr(log.CatStore, "persist failed", err, "kind", doc.Kind, "id", doc.ID)
		return err
	}
	log.Debug(log.CatStore, "persisted model", "kind", doc.Kind, "id", doc.ID)
	return nil
}

func (s *Store) DeleteCachedController(ctx context.Context, t *datamodel.Type, id string) error {
	return s.cache.Delete(ctx, cachemanager.Key(t.Kind(), id))
}

func (s *Store) DeletePersistedModel(ctx context.Context, t *datamodel.Type, id string) error {
	if err := s.repo.Delete(ctx, t.Kind(), id); err != nil {
		return err
	}
	log.Debug(log.CatStore, "deleted model", "kind", t.Kind(), "id", id)
	return nil
}

// restore loads a persisted model and rebuilds its controller on cache miss.
func (s *Store) restore(ctx context.Context, key string) (datamodel.Controller, error) {
	kind, id, ok := cachemanager.SplitKey(key)
	if !ok {
		return nil, fmt.Errorf("malformed cache key %q", key)
	}
	t, ok := s.Type(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	doc, err := s.repo.Find(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	m, err := doc.Model(s.catalog)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatStore, "restoring controller", "kind", kind, "id", id)
	return t.Restore(ctx, s.outer, m, nil)
}
