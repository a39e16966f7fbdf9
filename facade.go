package donations

import (
	"context"
	"fmt"

	donationcommand "github.com/goliatone/go-donations/command"
	"github.com/goliatone/go-donations/core"
	donationquery "github.com/goliatone/go-donations/query"
)

type CommandQueryService interface {
	donationcommand.NotificationHandler
	donationcommand.TransactionApprover
	donationquery.TransactionReader
	donationquery.OverviewReader
}

type Commands struct {
	HandleNotification *donationcommand.HandleNotificationCommand
	ApproveTransaction *donationcommand.ApproveTransactionCommand
	UpdateSetting      *donationcommand.UpdateSettingCommand
}

type Queries struct {
	GetTransaction   *donationquery.GetTransactionQuery
	ListTransactions *donationquery.ListTransactionsQuery
	GetOverview      *donationquery.GetOverviewQuery
	ListAudit        *donationquery.ListAuditQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	auditReader    donationquery.AuditReader
	settingsWriter donationcommand.SettingsWriter
}

func WithAuditReader(reader donationquery.AuditReader) FacadeOption {
	return func(options *facadeOptions) {
		options.auditReader = reader
	}
}

func WithSettingsWriter(writer donationcommand.SettingsWriter) FacadeOption {
	return func(options *facadeOptions) {
		options.settingsWriter = writer
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("donations: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.auditReader
	if reader == nil {
		reader = resolveAuditReader(service)
	}
	writer := cfg.settingsWriter
	if writer == nil {
		writer = resolveSettingsWriter(service)
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		HandleNotification: donationcommand.NewHandleNotificationCommand(service),
		ApproveTransaction: donationcommand.NewApproveTransactionCommand(service),
		UpdateSetting:      donationcommand.NewUpdateSettingCommand(writer),
	}
	facade.queries = Queries{
		GetTransaction:   donationquery.NewGetTransactionQuery(service),
		ListTransactions: donationquery.NewListTransactionsQuery(service),
		GetOverview:      donationquery.NewGetOverviewQuery(service),
		ListAudit:        donationquery.NewListAuditQuery(reader),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

// resolveAuditReader prefers the service's audit logger and falls back to
// the audit store of its repository factory.
func resolveAuditReader(service CommandQueryService) donationquery.AuditReader {
	if reader, ok := service.(donationquery.AuditReader); ok {
		return reader
	}
	provider, ok := service.(interface {
		Dependencies() core.ServiceDependencies
	})
	if !ok {
		return nil
	}
	deps := provider.Dependencies()
	if reader, ok := deps.AuditLogger.(donationquery.AuditReader); ok && reader != nil {
		return reader
	}
	stores, ok := deps.RepositoryFactory.(interface{ AuditStore() core.AuditStore })
	if !ok || stores == nil {
		return nil
	}
	store := stores.AuditStore()
	if store == nil {
		return nil
	}
	return auditStoreReader{store: store}
}

func resolveSettingsWriter(service CommandQueryService) donationcommand.SettingsWriter {
	if writer, ok := service.(donationcommand.SettingsWriter); ok {
		return writer
	}
	provider, ok := service.(interface {
		Settings() *core.SettingsResolver
	})
	if !ok {
		return nil
	}
	resolver := provider.Settings()
	if resolver == nil {
		return nil
	}
	return resolver
}

type auditStoreReader struct {
	store core.AuditStore
}

func (r auditStoreReader) Recent(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	return r.store.ListAudit(ctx, limit)
}
