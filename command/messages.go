package command

import (
	"strings"
)

const (
	TypeHandleNotification = "donations.command.notification.handle"
	TypeApproveTransaction = "donations.command.transaction.approve"
	TypeUpdateSetting      = "donations.command.setting.update"
)

// HandleNotificationMessage carries one raw notification body as received.
type HandleNotificationMessage struct {
	Body []byte
}

func (HandleNotificationMessage) Type() string { return TypeHandleNotification }

func (m HandleNotificationMessage) Validate() error {
	if len(m.Body) == 0 {
		return commandValidationError("body", "notification body is required")
	}
	return nil
}

type ApproveTransactionMessage struct {
	TransactionID string
	Approved      bool
}

func (ApproveTransactionMessage) Type() string { return TypeApproveTransaction }

func (m ApproveTransactionMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return commandValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

type UpdateSettingMessage struct {
	Key   string
	Value string
}

func (UpdateSettingMessage) Type() string { return TypeUpdateSetting }

func (m UpdateSettingMessage) Validate() error {
	if strings.TrimSpace(m.Key) == "" {
		return commandValidationError("key", "setting key is required")
	}
	return nil
}
