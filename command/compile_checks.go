package command

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-donations/core"
)

var (
	_ gocmd.Commander[HandleNotificationMessage] = (*HandleNotificationCommand)(nil)
	_ gocmd.Commander[ApproveTransactionMessage] = (*ApproveTransactionCommand)(nil)
	_ gocmd.Commander[UpdateSettingMessage]      = (*UpdateSettingCommand)(nil)

	_ NotificationHandler = (*core.Service)(nil)
	_ TransactionApprover = (*core.Service)(nil)
	_ SettingsWriter      = (*core.SettingsResolver)(nil)
)
