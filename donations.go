package donations

import "github.com/goliatone/go-donations/core"

type Config = core.Config

type VerificationConfig = core.VerificationConfig

type Option = core.Option

type Service = core.Service

type ServiceDependencies = core.ServiceDependencies
type TransactionStore = core.TransactionStore
type UserDirectory = core.UserDirectory
type SettingsStore = core.SettingsStore
type StatsStore = core.StatsStore
type AuditStore = core.AuditStore
type AuditLogger = core.AuditLogger
type Notifier = core.Notifier
type CompletedHook = core.CompletedHook
type GroupAddHook = core.GroupAddHook

type Outcome = core.Outcome
type Transaction = core.Transaction
type TransactionFilter = core.TransactionFilter
type OverviewStats = core.OverviewStats
type AuditEntry = core.AuditEntry
type Notification = core.Notification
type Verdict = core.Verdict

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithTransportSelector = core.WithTransportSelector
	WithVerifier          = core.WithVerifier
	WithTransactionStore  = core.WithTransactionStore
	WithUserDirectory     = core.WithUserDirectory
	WithSettingsStore     = core.WithSettingsStore
	WithStatsStore        = core.WithStatsStore
	WithAuditLogger       = core.WithAuditLogger
	WithNotifier          = core.WithNotifier
	WithCompletedHook     = core.WithCompletedHook
	WithGroupAddHook      = core.WithGroupAddHook
	WithClock             = core.WithClock
	WithMessages          = core.WithMessages
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	return core.NewService(cfg, opts...)
}

func Setup(cfg Config, opts ...Option) (*Service, error) {
	return core.Setup(cfg, opts...)
}
