package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"

	donationcommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

func (a *RegistryAdapter) RegisterQuery(qry any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(qry)
}

func (a *RegistryAdapter) AddResolver(key string, resolver command.Resolver) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), resolver)
}

func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.AddResolver(key, jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) HasResolver(key string) bool {
	if a == nil || a.registry == nil {
		return false
	}
	return a.registry.HasResolver(strings.TrimSpace(key))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func SubscribeCommand[T any](cmd command.Commander[T], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func RegisterAndSubscribeQuery[T any, R any](
	adapter *RegistryAdapter,
	qry command.Querier[T, R],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if qry == nil {
		return nil, fmt.Errorf("gocommand: query is required")
	}
	subscription := SubscribeQuery(qry, runnerOpts...)
	if err := adapter.RegisterQuery(qry); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

// Handlers collects the collaborators behind the donation commands and
// queries. Nil members are skipped at registration.
type Handlers struct {
	Notifications donationcommand.NotificationHandler
	Approver      donationcommand.TransactionApprover
	Settings      donationcommand.SettingsWriter
	Transactions  query.TransactionReader
	Overview      query.OverviewReader
	Audit         query.AuditReader
}

// HandlersFromService fills every handler the service can serve on its own.
func HandlersFromService(svc *core.Service, audit query.AuditReader) Handlers {
	if svc == nil {
		return Handlers{Audit: audit}
	}
	return Handlers{
		Notifications: svc,
		Approver:      svc,
		Settings:      svc.Settings(),
		Transactions:  svc,
		Overview:      svc,
		Audit:         audit,
	}
}

// Registration holds the dispatcher subscriptions created by RegisterDonations.
type Registration struct {
	subscriptions []commanddispatcher.Subscription
}

func (r *Registration) Len() int {
	if r == nil {
		return 0
	}
	return len(r.subscriptions)
}

func (r *Registration) Unsubscribe() {
	if r == nil {
		return
	}
	for _, subscription := range r.subscriptions {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
	r.subscriptions = nil
}

func (r *Registration) add(subscription commanddispatcher.Subscription, err error) error {
	if err != nil {
		return err
	}
	r.subscriptions = append(r.subscriptions, subscription)
	return nil
}

// RegisterDonations registers and subscribes the donation commands and queries.
// Subscriptions made before a failure are released.
func RegisterDonations(adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) (*Registration, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	reg := &Registration{}
	if err := registerDonations(reg, adapter, handlers, runnerOpts...); err != nil {
		reg.Unsubscribe()
		return nil, err
	}
	return reg, nil
}

func registerDonations(reg *Registration, adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) error {
	if handlers.Notifications != nil {
		cmd := donationcommand.NewHandleNotificationCommand(handlers.Notifications)
		if err := reg.add(RegisterAndSubscribe[donationcommand.HandleNotificationMessage](adapter, cmd, runnerOpts...)); err != nil {
			return err
		}
	}
	if handlers.Approver != nil {
		cmd := donationcommand.NewApproveTransactionCommand(handlers.Approver)
		if err := reg.add(RegisterAndSubscribe[donationcommand.ApproveTransactionMessage](adapter, cmd, runnerOpts...)); err != nil {
			return err
		}
	}
	if handlers.Settings != nil {
		cmd := donationcommand.NewUpdateSettingCommand(handlers.Settings)
		if err := reg.add(RegisterAndSubscribe[donationcommand.UpdateSettingMessage](adapter, cmd, runnerOpts...)); err != nil {
			return err
		}
	}
	if handlers.Transactions != nil {
		get := query.NewGetTransactionQuery(handlers.Transactions)
		if err := reg.add(RegisterAndSubscribeQuery[query.GetTransactionMessage, core.Transaction](adapter, get, runnerOpts...)); err != nil {
			return err
		}
		list := query.NewListTransactionsQuery(handlers.Transactions)
		if err := reg.add(RegisterAndSubscribeQuery[query.ListTransactionsMessage, []core.Transaction](adapter, list, runnerOpts...)); err != nil {
			return err
		}
	}
	if handlers.Overview != nil {
		qry := query.NewGetOverviewQuery(handlers.Overview)
		if err := reg.add(RegisterAndSubscribeQuery[query.GetOverviewMessage, core.OverviewStats](adapter, qry, runnerOpts...)); err != nil {
			return err
		}
	}
	if handlers.Audit != nil {
		qry := query.NewListAuditQuery(handlers.Audit)
		if err := reg.add(RegisterAndSubscribeQuery[query.ListAuditMessage, []core.AuditEntry](adapter, qry, runnerOpts...)); err != nil {
			return err
		}
	}
	return nil
}
