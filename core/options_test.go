package core

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

type fixedConfigProvider struct {
	cfg Config
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, nil
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

type fixedStoreFactory struct {
	provider StoreProvider
	client   any
}

func (f *fixedStoreFactory) BuildStores(persistenceClient any) (StoreProvider, error) {
	f.client = persistenceClient
	return f.provider, nil
}

type fixedStores struct {
	txns     TransactionStore
	users    UserDirectory
	settings SettingsStore
	stats    StatsStore
}

func (s fixedStores) TransactionStore() TransactionStore { return s.txns }
func (s fixedStores) UserDirectory() UserDirectory       { return s.users }
func (s fixedStores) SettingsStore() SettingsStore       { return s.settings }
func (s fixedStores) StatsStore() StatsStore             { return s.stats }
func (s fixedStores) AuditStore() AuditStore             { return nil }

func TestNewService_DefaultDependencies(t *testing.T) {
	svc, err := NewService(Config{})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	deps := svc.Dependencies()
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.LoggerProvider == nil {
		t.Fatalf("expected default logger provider")
	}
	if deps.ErrorFactory == nil {
		t.Fatalf("expected default error factory")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.ConfigProvider == nil {
		t.Fatalf("expected default config provider")
	}
	if deps.OptionsResolver == nil {
		t.Fatalf("expected default options resolver")
	}
	cfg := svc.Config()
	if cfg.ServiceName != "donations" {
		t.Fatalf("expected default service_name=donations, got %q", cfg.ServiceName)
	}
	if cfg.Verification.LiveURL != DefaultLiveVerificationURL {
		t.Fatalf("expected default live url, got %q", cfg.Verification.LiveURL)
	}
	if cfg.AnonymousUserID != 1 || cfg.CorrelationPrefix != "uid_" {
		t.Fatalf("unexpected identity defaults %d %q", cfg.AnonymousUserID, cfg.CorrelationPrefix)
	}
	if got := len(svc.Sanitizer().Fields()); got != 27 {
		t.Fatalf("expected the default field table, got %d fields", got)
	}
}

func TestNewService_WithXOverrides(t *testing.T) {
	customLogger := stubLogger{}
	customProvider := stubLoggerProvider{logger: customLogger}
	customFactory := func(message string, category ...goerrors.Category) *goerrors.Error {
		return goerrors.New("custom:"+message, category...)
	}
	sentinel := errors.New("sentinel")
	customMapper := func(error) *goerrors.Error {
		return goerrors.Wrap(sentinel, goerrors.CategoryOperation, "mapped")
	}
	persistenceClient := &struct{ Name string }{Name: "persistence"}
	stores := fixedStores{
		txns:     newMemTransactionStore(),
		users:    newMemUserDirectory(),
		settings: newMemSettingsStore(nil),
		stats:    newMemStatsStore(),
	}
	factory := &fixedStoreFactory{provider: stores}
	configProvider := &fixedConfigProvider{cfg: Config{ServiceName: "from-provider"}}
	optionsResolver := &fixedOptionsResolver{cfg: func() Config {
		cfg := DefaultConfig()
		cfg.ServiceName = "resolved"
		return cfg
	}()}

	svc, err := NewService(Config{ServiceName: "runtime"},
		WithLogger(customLogger),
		WithLoggerProvider(customProvider),
		WithErrorFactory(customFactory),
		WithErrorMapper(customMapper),
		WithPersistenceClient(persistenceClient),
		WithRepositoryFactory(factory),
		WithConfigProvider(configProvider),
		WithOptionsResolver(optionsResolver),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	deps := svc.Dependencies()
	if deps.Logger != customLogger {
		t.Fatalf("expected custom logger override")
	}
	if resolved := deps.LoggerProvider.GetLogger("donations.override"); resolved != customLogger {
		t.Fatalf("expected logger provider to resolve custom logger")
	}
	if deps.PersistenceClient != persistenceClient {
		t.Fatalf("expected custom persistence client override")
	}
	if factory.client != persistenceClient {
		t.Fatalf("expected store factory to receive the persistence client")
	}
	if deps.TransactionStore != stores.txns || deps.UserDirectory != stores.users || deps.StatsStore != stores.stats {
		t.Fatalf("expected stores from the repository factory")
	}
	if deps.ConfigProvider != configProvider {
		t.Fatalf("expected custom config provider override")
	}
	if deps.OptionsResolver != optionsResolver {
		t.Fatalf("expected custom options resolver override")
	}
	if got := svc.Config().ServiceName; got != "resolved" {
		t.Fatalf("expected options resolver output config, got %q", got)
	}
	if mapped := deps.ErrorMapper(errors.New("x")); mapped == nil || mapped.Message != "mapped" {
		t.Fatalf("expected custom error mapper")
	}
}

func TestNewService_ExplicitStoresWinOverFactory(t *testing.T) {
	explicit := newMemTransactionStore()
	factory := &fixedStoreFactory{provider: fixedStores{txns: newMemTransactionStore()}}
	svc, err := NewService(DefaultConfig(), WithRepositoryFactory(factory), WithTransactionStore(explicit))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.Dependencies().TransactionStore != explicit {
		t.Fatalf("expected explicit transaction store to win")
	}
}

func TestNewService_RejectsUnsupportedRepositoryFactory(t *testing.T) {
	_, err := NewService(DefaultConfig(), WithRepositoryFactory(&struct{}{}))
	if err == nil {
		t.Fatalf("expected unsupported factory error")
	}
}

func TestNewService_ConfigLayeringPrecedence(t *testing.T) {
	provider := NewCfgxConfigProvider(mapRawLoader{values: map[string]any{
		"service_name": "from-config",
		"defaults": map[string]any{
			"ipn_enable":       false,
			"account_id":       "shop@example.com",
			"min_before_group": 25.5,
		},
	}})

	svc, err := NewService(Config{ServiceName: "from-runtime"}, WithConfigProvider(provider))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	cfg := svc.Config()
	if cfg.ServiceName != "from-runtime" {
		t.Fatalf("expected runtime value to override config/default, got %q", cfg.ServiceName)
	}
	if cfg.Defaults.IPNEnable {
		t.Fatalf("expected config layer to switch ipn_enable off")
	}
	if cfg.Defaults.AccountID != "shop@example.com" || cfg.Defaults.MinBeforeGroup != 25.5 {
		t.Fatalf("expected config layer defaults, got %+v", cfg.Defaults)
	}
	if cfg.Verification.Timeout != DefaultVerificationTimeout {
		t.Fatalf("expected default timeout to survive layering, got %v", cfg.Verification.Timeout)
	}
}

func TestNewService_InvalidRuntimeConfigFails(t *testing.T) {
	_, err := NewService(Config{AnonymousUserID: -5})
	if err == nil {
		t.Fatalf("expected validation error for negative anonymous user id")
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	cfg.CorrelationPrefix = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected missing prefix to fail validation")
	}
	cfg = DefaultConfig()
	cfg.AnonymousUserID = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected non positive anonymous id to fail validation")
	}
	cfg = DefaultConfig()
	cfg.Verification.SandboxURL = "not a url"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid sandbox url to fail validation")
	}
}

func TestVerificationConfigEndpoint(t *testing.T) {
	cfg := DefaultConfig().Verification
	if cfg.Endpoint(false) != DefaultLiveVerificationURL {
		t.Fatalf("expected live endpoint, got %q", cfg.Endpoint(false))
	}
	if cfg.Endpoint(true) != DefaultSandboxVerificationURL {
		t.Fatalf("expected sandbox endpoint, got %q", cfg.Endpoint(true))
	}
}
