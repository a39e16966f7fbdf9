package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/goliatone/go-command"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/segmentio/kafka-go"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/goliatone/go-donations/adapters/gocommand"
	"github.com/goliatone/go-donations/adapters/gojob"
	"github.com/goliatone/go-donations/adapters/gologger"
	"github.com/goliatone/go-donations/audit"
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/inbound"
	donationmigrations "github.com/goliatone/go-donations/migrations"
	"github.com/goliatone/go-donations/notify"
	"github.com/goliatone/go-donations/ratelimit"
	donationschema "github.com/goliatone/go-donations/schema"
	sqlstore "github.com/goliatone/go-donations/store/sql"
	"github.com/goliatone/go-donations/transport"
	"github.com/goliatone/go-donations/verifier"
)

type runtimeOptions struct {
	migrate    bool
	httpClient transport.HTTPDoer
}

// runtime owns every long-lived collaborator of the daemon.
type runtime struct {
	cfg      fileConfig
	logger   core.Logger
	client   *persistence.Client
	factory  *sqlstore.RepositoryFactory
	service  *core.Service
	audit    *audit.Logger
	queue    *gojob.MemoryQueue
	worker   *gojob.DeliveryWorker
	kafka    *kafka.Writer
	commands *gocommand.RegistryAdapter
	dispatch *gocommand.Registration
}

func openRuntime(ctx context.Context, cfg fileConfig, logger core.Logger, opts runtimeOptions) (*runtime, error) {
	provider, logger := gologger.ResolveService(nil, logger)
	rt := &runtime{cfg: cfg, logger: logger}

	serviceCfg, configProvider, err := resolveServiceConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := openPersistence(cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.client = client
	if opts.migrate {
		if err := migrate(ctx, client, cfg.Database.Driver); err != nil {
			_ = rt.Close()
			return nil, err
		}
	}

	factoryOpts := []sqlstore.FactoryOption{}
	if !cfg.Cache.Disabled {
		cacheService, err := newCacheService(cfg.Cache)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		factoryOpts = append(factoryOpts, sqlstore.WithCacheService(cacheService))
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client, factoryOpts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.factory = factory

	settings := core.NewSettingsResolver(factory.SettingsStore(), serviceCfg.Defaults)
	rt.audit = audit.New(factory.AuditStore(),
		audit.WithLogger(gologger.Component(provider, logger, gologger.ComponentAudit)),
		audit.WithSettings(settings),
	)

	notifier := rt.buildNotifier(provider)

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: serviceCfg.Verification.Timeout}
	}

	selector, err := newTransportSelector(serviceCfg.Verification, httpClient)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}

	service, err := core.NewService(serviceCfg,
		core.WithLogger(logger),
		core.WithLoggerProvider(provider),
		core.WithConfigProvider(configProvider),
		core.WithPersistenceClient(client),
		core.WithRepositoryFactory(factory),
		core.WithTransportSelector(selector),
		core.WithVerifier(verifier.New(serviceCfg.Verification, verifier.WithLogger(logger))),
		core.WithAuditLogger(rt.audit),
		core.WithNotifier(notifier),
		core.WithMessages(donationschema.Messages(cfg.Messages)),
	)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.service = service

	rt.commands = gocommand.NewRegistryAdapter(command.NewRegistry())
	registration, err := gocommand.RegisterDonations(rt.commands, gocommand.HandlersFromService(service, rt.audit))
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.dispatch = registration
	if err := rt.commands.Initialize(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

// buildNotifier queues notifications in memory and delivers them to the log
// and, when brokers are configured, to Kafka.
func (r *runtime) buildNotifier(provider core.LoggerProvider) core.Notifier {
	notifyLogger := gologger.Component(provider, r.logger, gologger.ComponentNotify)
	sinks := []core.Notifier{notify.NewLoggerSink(notifyLogger)}
	if r.cfg.Kafka.Enabled() {
		r.kafka = notify.NewKafkaWriter(r.cfg.Kafka.Brokers...)
		sinks = append(sinks, notify.NewKafkaSink(r.kafka, r.cfg.Kafka.Topic))
	}
	fanout := notify.NewFanout(notifyLogger, sinks...)

	r.queue = gojob.NewMemoryQueue(r.cfg.Notifications.QueueCapacity)
	workerLogger := gologger.Component(provider, r.logger, gologger.ComponentWorker)
	r.worker = gojob.NewDeliveryWorker(r.queue, fanout,
		gojob.WithHook(gojob.NewLoggingHook(workerLogger)),
		gojob.WithRetryDelay(r.cfg.Notifications.RetryDelay),
		gojob.WithRetryPolicy(gojob.RetryPolicy{
			MaxAttempts:     r.cfg.Notifications.MaxAttempts,
			MaxDelay:        r.cfg.Notifications.RetryDelay * 10,
			DeadLetterOnMax: true,
		}),
	)
	return gojob.NewNotificationEnqueuer(r.queue)
}

func (r *runtime) handler() *inbound.Handler {
	return inbound.NewHandler(r.service,
		inbound.WithLogger(gologger.Component(nil, r.logger, gologger.ComponentInbound)),
		inbound.WithPath(r.cfg.HTTP.Path),
		inbound.WithMaxBodyBytes(r.cfg.HTTP.MaxBodyBytes),
	)
}

func (r *runtime) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.dispatch != nil {
		r.dispatch.Unsubscribe()
	}
	if r.kafka != nil {
		errs = append(errs, r.kafka.Close())
	}
	if r.client != nil {
		errs = append(errs, r.client.Close())
	}
	return errors.Join(errs...)
}

func openPersistence(cfg databaseConfig) (*persistence.Client, error) {
	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("donationsd: open database: %w", err)
	}
	var dialect schema.Dialect
	switch cfg.Driver {
	case driverPostgres:
		dialect = pgdialect.New()
	default:
		sqlDB.SetMaxOpenConns(1)
		dialect = sqlitedialect.New()
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("donationsd: persistence client: %w", err)
	}
	return client, nil
}

func migrate(ctx context.Context, client *persistence.Client, driver string) error {
	_, err := donationmigrations.Register(ctx, driver, func(_ context.Context, source donationmigrations.Source) error {
		client.RegisterSQLMigrations(source.FS)
		return nil
	})
	if err != nil {
		return fmt.Errorf("donationsd: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("donationsd: migrate: %w", err)
	}
	return nil
}

// newTransportSelector guards every default mechanism with a shared backoff
// policy so a throttled endpoint is not hammered.
func newTransportSelector(cfg core.VerificationConfig, client transport.HTTPDoer) (*transport.Selector, error) {
	policy := ratelimit.NewAdaptivePolicy(ratelimit.NewMemoryStateStore())
	mechanisms := []core.TransportMechanism{}
	for _, mechanism := range transport.NewDefaultSelector(cfg, client).List() {
		mechanisms = append(mechanisms, ratelimit.NewGuard(mechanism, policy))
	}
	return transport.NewSelector(mechanisms...)
}

func newCacheService(cfg cacheConfig) (repositorycache.CacheService, error) {
	config := repositorycache.DefaultConfig()
	if cfg.TTL > 0 {
		config.TTL = cfg.TTL
	}
	return repositorycache.NewCacheService(config)
}
