package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-donations/core"
)

var (
	_ gocmd.Querier[GetTransactionMessage, core.Transaction]     = (*GetTransactionQuery)(nil)
	_ gocmd.Querier[ListTransactionsMessage, []core.Transaction] = (*ListTransactionsQuery)(nil)
	_ gocmd.Querier[GetOverviewMessage, core.OverviewStats]      = (*GetOverviewQuery)(nil)
	_ gocmd.Querier[ListAuditMessage, []core.AuditEntry]         = (*ListAuditQuery)(nil)
	_ TransactionReader                                          = (*core.Service)(nil)
	_ OverviewReader                                             = (*core.Service)(nil)
)
