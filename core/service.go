package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-donations/schema"
)

type Service struct {
	config            Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	sanitizer         *schema.Sanitizer
	transportSelector TransportSelector
	verifier          Verifier
	transactionStore  TransactionStore
	userDirectory     UserDirectory
	settings          *SettingsResolver
	statsStore        StatsStore
	auditLogger       AuditLogger
	notifier          Notifier
	completedHooks    []CompletedHook
	groupAddHooks     []GroupAddHook
	clock             func() time.Time
}

// ServiceDependencies exposes the resolved collaborators, mainly for wiring
// checks and tests.
type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	TransportSelector TransportSelector
	Verifier          Verifier
	TransactionStore  TransactionStore
	UserDirectory     UserDirectory
	StatsStore        StatsStore
	AuditLogger       AuditLogger
	Notifier          Notifier
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := defaultServiceBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("donations", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("donations"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.clock == nil {
		builder.clock = time.Now
	}
	if len(builder.fields) == 0 {
		builder.fields = schema.PayPalFields()
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	if builder.repositoryFactory != nil {
		stores, buildErr := resolveStoreProvider(builder.repositoryFactory, builder.persistenceClient)
		if buildErr != nil {
			return nil, mapBuildError(builder.errorMapper, buildErr)
		}
		if stores != nil {
			if builder.transactionStore == nil {
				builder.transactionStore = stores.TransactionStore()
			}
			if builder.userDirectory == nil {
				builder.userDirectory = stores.UserDirectory()
			}
			if builder.settingsStore == nil {
				builder.settingsStore = stores.SettingsStore()
			}
			if builder.statsStore == nil {
				builder.statsStore = stores.StatsStore()
			}
		}
	}

	return &Service{
		config:            finalConfig,
		logger:            logger,
		loggerProvider:    provider,
		metricsRecorder:   builder.metricsRecorder,
		errorFactory:      builder.errorFactory,
		errorMapper:       builder.errorMapper,
		persistenceClient: builder.persistenceClient,
		repositoryFactory: builder.repositoryFactory,
		configProvider:    builder.configProvider,
		optionsResolver:   builder.optionsResolver,
		sanitizer:         schema.NewSanitizer(builder.fields, builder.messages),
		transportSelector: builder.transportSelector,
		verifier:          builder.verifier,
		transactionStore:  builder.transactionStore,
		userDirectory:     builder.userDirectory,
		settings:          NewSettingsResolver(builder.settingsStore, finalConfig.Defaults),
		statsStore:        builder.statsStore,
		auditLogger:       builder.auditLogger,
		notifier:          builder.notifier,
		completedHooks:    append([]CompletedHook(nil), builder.completedHooks...),
		groupAddHooks:     append([]GroupAddHook(nil), builder.groupAddHooks...),
		clock:             builder.clock,
	}, nil
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func resolveStoreProvider(factory any, persistenceClient any) (StoreProvider, error) {
	switch typed := factory.(type) {
	case RepositoryStoreFactory:
		return typed.BuildStores(persistenceClient)
	case StoreProvider:
		return typed, nil
	default:
		return nil, fmt.Errorf("core: repository factory %T is not supported", factory)
	}
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	if mapped := mapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) Dependencies() ServiceDependencies {
	if s == nil {
		return ServiceDependencies{}
	}
	return ServiceDependencies{
		Logger:            s.logger,
		LoggerProvider:    s.loggerProvider,
		MetricsRecorder:   s.metricsRecorder,
		ErrorFactory:      s.errorFactory,
		ErrorMapper:       s.errorMapper,
		PersistenceClient: s.persistenceClient,
		RepositoryFactory: s.repositoryFactory,
		ConfigProvider:    s.configProvider,
		OptionsResolver:   s.optionsResolver,
		TransportSelector: s.transportSelector,
		Verifier:          s.verifier,
		TransactionStore:  s.transactionStore,
		UserDirectory:     s.userDirectory,
		StatsStore:        s.statsStore,
		AuditLogger:       s.auditLogger,
		Notifier:          s.notifier,
	}
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Logger() Logger {
	if s == nil {
		return glog.Nop()
	}
	return s.logger
}

// Settings returns the resolver used for runtime settings.
func (s *Service) Settings() *SettingsResolver {
	if s == nil {
		return nil
	}
	return s.settings
}

func (s *Service) Sanitizer() *schema.Sanitizer {
	if s == nil {
		return nil
	}
	return s.sanitizer
}

func (s *Service) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	startedAt := time.Now()
	fields := map[string]any{"transaction_id": strings.TrimSpace(id)}
	if s == nil || s.transactionStore == nil {
		return Transaction{}, fmt.Errorf("core: transaction store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		err := s.mapError(fmt.Errorf("core: transaction id is required"))
		s.observeOperation(ctx, startedAt, "get_transaction", err, fields)
		return Transaction{}, err
	}
	txn, err := s.transactionStore.GetTransaction(ctx, id)
	if err != nil {
		err = s.mapError(err)
	}
	s.observeOperation(ctx, startedAt, "get_transaction", err, fields)
	return txn, err
}

func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	startedAt := time.Now()
	if s == nil || s.transactionStore == nil {
		return nil, fmt.Errorf("core: transaction store is not configured")
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		err := s.mapError(fmt.Errorf("core: invalid pagination limit=%d offset=%d", filter.Limit, filter.Offset))
		s.observeOperation(ctx, startedAt, "list_transactions", err, nil)
		return nil, err
	}
	txns, err := s.transactionStore.ListTransactions(ctx, filter)
	if err != nil {
		err = s.mapError(err)
	}
	s.observeOperation(ctx, startedAt, "list_transactions", err, map[string]any{"count": len(txns)})
	return txns, err
}

func (s *Service) GetOverview(ctx context.Context, test bool) (OverviewStats, error) {
	if s == nil || s.statsStore == nil {
		return OverviewStats{}, fmt.Errorf("core: stats store is not configured")
	}
	stats, err := s.statsStore.GetOverview(ctx, test)
	if err != nil {
		return OverviewStats{}, s.mapError(err)
	}
	return stats, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.errorMapper == nil {
		return err
	}
	if mapped := s.errorMapper(err); mapped != nil {
		return mapped
	}
	return err
}

func (s *Service) now() time.Time {
	if s == nil || s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock().UTC()
}
