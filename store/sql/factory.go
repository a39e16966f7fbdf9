package sqlstore

import (
	"fmt"

	"github.com/goliatone/go-donations/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db    *bun.DB
	cache repositorycache.CacheService

	transactionStore *TransactionStore
	userDirectory    *UserDirectory
	settingsStore    *SettingsStore
	statsStore       *StatsStore
	auditStore       *AuditStore

	cachedSettings *CachedSettingsStore
	cachedUsers    *CachedUserDirectory
}

type FactoryOption func(*RepositoryFactory)

// WithCacheService puts settings and member lookups behind the given cache.
func WithCacheService(cacheService repositorycache.CacheService) FactoryOption {
	return func(f *RepositoryFactory) {
		f.cache = cacheService
	}
}

func NewRepositoryFactory(opts ...FactoryOption) *RepositoryFactory {
	factory := &RepositoryFactory{}
	for _, opt := range opts {
		if opt != nil {
			opt(factory)
		}
	}
	return factory
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB, opts ...FactoryOption) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory(opts...)
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.transactionStore != nil && f.userDirectory != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) TransactionStore() core.TransactionStore {
	if f == nil || f.transactionStore == nil {
		return nil
	}
	return f.transactionStore
}

func (f *RepositoryFactory) UserDirectory() core.UserDirectory {
	if f == nil {
		return nil
	}
	if f.cachedUsers != nil {
		return f.cachedUsers
	}
	if f.userDirectory == nil {
		return nil
	}
	return f.userDirectory
}

// Users exposes the uncached member directory for administration.
func (f *RepositoryFactory) Users() *UserDirectory {
	if f == nil {
		return nil
	}
	return f.userDirectory
}

func (f *RepositoryFactory) SettingsStore() core.SettingsStore {
	if f == nil {
		return nil
	}
	if f.cachedSettings != nil {
		return f.cachedSettings
	}
	if f.settingsStore == nil {
		return nil
	}
	return f.settingsStore
}

func (f *RepositoryFactory) StatsStore() core.StatsStore {
	if f == nil || f.statsStore == nil {
		return nil
	}
	return f.statsStore
}

func (f *RepositoryFactory) AuditStore() core.AuditStore {
	if f == nil || f.auditStore == nil {
		return nil
	}
	return f.auditStore
}

func (f *RepositoryFactory) initStores() error {
	transactionStore, err := NewTransactionStore(f.db)
	if err != nil {
		return err
	}
	f.transactionStore = transactionStore
	userDirectory, err := NewUserDirectory(f.db)
	if err != nil {
		return err
	}
	f.userDirectory = userDirectory
	settingsStore, err := NewSettingsStore(f.db)
	if err != nil {
		return err
	}
	f.settingsStore = settingsStore
	statsStore, err := NewStatsStore(f.db)
	if err != nil {
		return err
	}
	f.statsStore = statsStore
	auditStore, err := NewAuditStore(f.db)
	if err != nil {
		return err
	}
	f.auditStore = auditStore

	if f.cache == nil {
		return nil
	}
	cachedSettings, err := NewCachedSettingsStore(settingsStore, f.cache)
	if err != nil {
		return err
	}
	f.cachedSettings = cachedSettings
	cachedUsers, err := NewCachedUserDirectory(userDirectory, f.cache)
	if err != nil {
		return err
	}
	f.cachedUsers = cachedUsers
	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
