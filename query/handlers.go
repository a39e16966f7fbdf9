package query

import (
	"context"

	"github.com/goliatone/go-donations/core"
)

type TransactionReader interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error)
}

type OverviewReader interface {
	GetOverview(ctx context.Context, test bool) (core.OverviewStats, error)
}

type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]core.AuditEntry, error)
}

type GetTransactionQuery struct {
	reader TransactionReader
}

func NewGetTransactionQuery(reader TransactionReader) *GetTransactionQuery {
	return &GetTransactionQuery{reader: reader}
}

func (q *GetTransactionQuery) Query(ctx context.Context, msg GetTransactionMessage) (core.Transaction, error) {
	if q == nil || q.reader == nil {
		return core.Transaction{}, queryDependencyError("query: transaction reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.Transaction{}, err
	}
	return q.reader.GetTransaction(ctx, msg.TransactionID)
}

type ListTransactionsQuery struct {
	reader TransactionReader
}

func NewListTransactionsQuery(reader TransactionReader) *ListTransactionsQuery {
	return &ListTransactionsQuery{reader: reader}
}

func (q *ListTransactionsQuery) Query(ctx context.Context, msg ListTransactionsMessage) ([]core.Transaction, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: transaction reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.ListTransactions(ctx, msg.Filter)
}

type GetOverviewQuery struct {
	reader OverviewReader
}

func NewGetOverviewQuery(reader OverviewReader) *GetOverviewQuery {
	return &GetOverviewQuery{reader: reader}
}

func (q *GetOverviewQuery) Query(ctx context.Context, msg GetOverviewMessage) (core.OverviewStats, error) {
	if q == nil || q.reader == nil {
		return core.OverviewStats{}, queryDependencyError("query: overview reader is required")
	}
	return q.reader.GetOverview(ctx, msg.Test)
}

type ListAuditQuery struct {
	reader AuditReader
}

func NewListAuditQuery(reader AuditReader) *ListAuditQuery {
	return &ListAuditQuery{reader: reader}
}

func (q *ListAuditQuery) Query(ctx context.Context, msg ListAuditMessage) ([]core.AuditEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: audit reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.Recent(ctx, msg.Limit)
}
