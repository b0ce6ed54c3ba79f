package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/zimmed/zimmed-core/internal/config"
	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/flags"
	"github.com/zimmed/zimmed-core/internal/infrastructure/sqlite"
	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/paths"
	"github.com/zimmed/zimmed-core/internal/phonebook"
	"github.com/zimmed/zimmed-core/internal/store"
	"github.com/zimmed/zimmed-core/internal/tracing"
)

// env is what a command needs to reach persisted models.
type env struct {
	db       *sqlite.DB
	repo     sqlite.Repository
	base     *store.Store
	store    datamodel.Store
	tracing  *tracing.Provider
	flags    *flags.Registry
	cfg      config.Config
	dataPath string
}

// openEnv opens the database for cfg and builds a store that knows the
// built-in kinds.
func openEnv(cfg config.Config) (*env, error) {
	dbPath := paths.DBPath(cfg.DataDir)
	db, err := sqlite.NewDB(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", dbPath, err)
	}

	ids, err := store.NewIDGenerator(cfg.Store.IDStrategy)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	catalog := phonebook.Catalog()

	provider, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("starting tracing: %w", err)
	}

	repo := db.ModelRepository()
	base := store.New(repo, store.Options{
		IDs:              ids,
		Catalog:          catalog,
		CacheTTL:         cfg.Cache.Expiration,
		CleanupInterval:  cfg.Cache.CleanupInterval,
		SkipCache:        cfg.Cache.Disabled,
		MaxDispatchDepth: cfg.Engine.MaxDispatchDepth,
	})
	base.RegisterType(phonebook.RecordType)
	base.RegisterType(phonebook.BookType)

	var s datamodel.Store = base
	if provider.Enabled() {
		s = store.NewTraced(base, provider.Tracer())
	}

	log.Debug(log.CatStore, "environment ready", "db", dbPath, "tracing", provider.Enabled())
	return &env{
		db:       db,
		repo:     repo,
		base:     base,
		store:    s,
		tracing:  provider,
		flags:    flags.New(cfg.Flags),
		cfg:      cfg,
		dataPath: dbPath,
	}, nil
}

// Close flushes spans and closes the database.
func (e *env) Close(ctx context.Context) error {
	return errors.Join(e.tracing.Shutdown(ctx), e.db.Close())
}

// load restores a model of a registered kind through the store.
func (e *env) load(ctx context.Context, kind, id string) (datamodel.Controller, error) {
	t, ok := e.base.Type(kind)
	if !ok {
		return nil, fmt.Errorf("%w: %s (known: %v)", store.ErrUnknownKind, kind, e.base.Kinds())
	}
	return t.Load(ctx, e.store, id)
}
