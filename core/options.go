package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"

	"github.com/goliatone/go-donations/schema"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	fields            []schema.Field
	messages          schema.Messages
	transportSelector TransportSelector
	verifier          Verifier
	transactionStore  TransactionStore
	userDirectory     UserDirectory
	settingsStore     SettingsStore
	statsStore        StatsStore
	auditLogger       AuditLogger
	notifier          Notifier
	completedHooks    []CompletedHook
	groupAddHooks     []GroupAddHook
	clock             func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

// WithRepositoryFactory accepts a StoreProvider or a RepositoryStoreFactory.
func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

// WithFields replaces the default PayPal field table.
func WithFields(fields []schema.Field) Option {
	return func(b *serviceBuilder) {
		b.fields = append([]schema.Field(nil), fields...)
	}
}

func WithMessages(messages schema.Messages) Option {
	return func(b *serviceBuilder) {
		b.messages = messages
	}
}

func WithTransportSelector(selector TransportSelector) Option {
	return func(b *serviceBuilder) {
		b.transportSelector = selector
	}
}

func WithVerifier(verifier Verifier) Option {
	return func(b *serviceBuilder) {
		b.verifier = verifier
	}
}

func WithTransactionStore(store TransactionStore) Option {
	return func(b *serviceBuilder) {
		b.transactionStore = store
	}
}

func WithUserDirectory(directory UserDirectory) Option {
	return func(b *serviceBuilder) {
		b.userDirectory = directory
	}
}

func WithSettingsStore(store SettingsStore) Option {
	return func(b *serviceBuilder) {
		b.settingsStore = store
	}
}

func WithStatsStore(store StatsStore) Option {
	return func(b *serviceBuilder) {
		b.statsStore = store
	}
}

func WithAuditLogger(logger AuditLogger) Option {
	return func(b *serviceBuilder) {
		b.auditLogger = logger
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(b *serviceBuilder) {
		b.notifier = notifier
	}
}

func WithCompletedHook(hook CompletedHook) Option {
	return func(b *serviceBuilder) {
		if hook != nil {
			b.completedHooks = append(b.completedHooks, hook)
		}
	}
}

func WithGroupAddHook(hook GroupAddHook) Option {
	return func(b *serviceBuilder) {
		if hook != nil {
			b.groupAddHooks = append(b.groupAddHooks, hook)
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.clock = clock
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("donations", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		clock:           time.Now,
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return donationErrorMapper(err)
}

// StaticRawConfigLoader serves a fixed map, typically decoded from a file.
type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver layers defaults < loaded config < runtime config. The
// loaded config already carries the defaults, so it is layered in full; zero
// values in the runtime layer do not override it.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, true),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}
	if includeZero || cfg.AnonymousUserID != 0 {
		layer["anonymous_user_id"] = cfg.AnonymousUserID
	}
	if includeZero || strings.TrimSpace(cfg.CorrelationPrefix) != "" {
		layer["correlation_prefix"] = cfg.CorrelationPrefix
	}

	verification := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Verification.LiveURL) != "" {
		verification["live_url"] = cfg.Verification.LiveURL
	}
	if includeZero || strings.TrimSpace(cfg.Verification.SandboxURL) != "" {
		verification["sandbox_url"] = cfg.Verification.SandboxURL
	}
	if includeZero || cfg.Verification.Timeout > 0 {
		verification["timeout"] = cfg.Verification.Timeout
	}
	if includeZero || strings.TrimSpace(cfg.Verification.UserAgent) != "" {
		verification["user_agent"] = cfg.Verification.UserAgent
	}
	if includeZero || cfg.Verification.DisableHTTPClient {
		verification["disable_http_client"] = cfg.Verification.DisableHTTPClient
	}
	if includeZero || cfg.Verification.DisableSocket {
		verification["disable_socket"] = cfg.Verification.DisableSocket
	}
	if len(verification) > 0 {
		layer["verification"] = verification
	}

	defaults := map[string]any{}
	if includeZero || cfg.Defaults.IPNEnable {
		defaults["ipn_enable"] = cfg.Defaults.IPNEnable
	}
	if includeZero || cfg.Defaults.IPNLogging {
		defaults["ipn_logging"] = cfg.Defaults.IPNLogging
	}
	if includeZero || cfg.Defaults.SandboxEnable {
		defaults["sandbox_enable"] = cfg.Defaults.SandboxEnable
	}
	if includeZero || strings.TrimSpace(cfg.Defaults.AccountID) != "" {
		defaults["account_id"] = cfg.Defaults.AccountID
	}
	if includeZero || strings.TrimSpace(cfg.Defaults.SandboxAddress) != "" {
		defaults["sandbox_address"] = cfg.Defaults.SandboxAddress
	}
	if includeZero || cfg.Defaults.AutogroupEnable {
		defaults["autogroup_enable"] = cfg.Defaults.AutogroupEnable
	}
	if includeZero || cfg.Defaults.GroupID != 0 {
		defaults["group_id"] = cfg.Defaults.GroupID
	}
	if includeZero || cfg.Defaults.GroupAsDefault {
		defaults["group_as_default"] = cfg.Defaults.GroupAsDefault
	}
	if includeZero || cfg.Defaults.MinBeforeGroup > 0 {
		defaults["min_before_group"] = cfg.Defaults.MinBeforeGroup
	}
	if len(defaults) > 0 {
		layer["defaults"] = defaults
	}
	return layer
}
