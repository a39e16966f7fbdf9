package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-donations/core"
)

type NotificationHandler interface {
	HandleNotification(ctx context.Context, body []byte) (core.Outcome, error)
}

type TransactionApprover interface {
	ApproveTransaction(ctx context.Context, id string, approved bool) (core.Transaction, error)
}

type SettingsWriter interface {
	Set(ctx context.Context, key string, value string) error
}

type HandleNotificationCommand struct {
	service NotificationHandler
}

func NewHandleNotificationCommand(service NotificationHandler) *HandleNotificationCommand {
	return &HandleNotificationCommand{service: service}
}

// Execute runs the notification pipeline and stores the Outcome in the
// result collector when one is attached to ctx.
func (c *HandleNotificationCommand) Execute(ctx context.Context, msg HandleNotificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: notification service is required")
	}
	out, err := c.service.HandleNotification(ctx, msg.Body)
	storeResult(ctx, out)
	return err
}

type ApproveTransactionCommand struct {
	service TransactionApprover
}

func NewApproveTransactionCommand(service TransactionApprover) *ApproveTransactionCommand {
	return &ApproveTransactionCommand{service: service}
}

func (c *ApproveTransactionCommand) Execute(ctx context.Context, msg ApproveTransactionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: approval service is required")
	}
	out, err := c.service.ApproveTransaction(ctx, msg.TransactionID, msg.Approved)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateSettingCommand struct {
	settings SettingsWriter
}

func NewUpdateSettingCommand(settings SettingsWriter) *UpdateSettingCommand {
	return &UpdateSettingCommand{settings: settings}
}

func (c *UpdateSettingCommand) Execute(ctx context.Context, msg UpdateSettingMessage) error {
	if c == nil || c.settings == nil {
		return commandDependencyError("command: settings writer is required")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return c.settings.Set(ctx, msg.Key, msg.Value)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
