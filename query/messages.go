package query

import (
	"strings"

	"github.com/goliatone/go-donations/core"
)

const (
	TypeGetTransaction   = "donations.query.transaction.get"
	TypeListTransactions = "donations.query.transaction.list"
	TypeGetOverview      = "donations.query.overview.get"
	TypeListAudit        = "donations.query.audit.list"
)

type GetTransactionMessage struct {
	TransactionID string
}

func (GetTransactionMessage) Type() string { return TypeGetTransaction }

func (m GetTransactionMessage) Validate() error {
	if strings.TrimSpace(m.TransactionID) == "" {
		return queryValidationError("transaction_id", "transaction id is required")
	}
	return nil
}

type ListTransactionsMessage struct {
	Filter core.TransactionFilter
}

func (ListTransactionsMessage) Type() string { return TypeListTransactions }

func (m ListTransactionsMessage) Validate() error {
	if m.Filter.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Filter.Offset < 0 {
		return queryValidationError("offset", "offset must be >= 0")
	}
	return nil
}

// GetOverviewMessage selects the live or the sandbox counters.
type GetOverviewMessage struct {
	Test bool
}

func (GetOverviewMessage) Type() string { return TypeGetOverview }

func (GetOverviewMessage) Validate() error { return nil }

type ListAuditMessage struct {
	Limit int
}

func (ListAuditMessage) Type() string { return TypeListAudit }

func (m ListAuditMessage) Validate() error {
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	return nil
}
