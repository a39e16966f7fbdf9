package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-donations/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultTransactionListLimit = 50

type TransactionStore struct {
	db   *bun.DB
	repo repository.Repository[*transactionRecord]
}

func NewTransactionStore(db *bun.DB) (*TransactionStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*transactionRecord](db, transactionHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid transaction repository wiring: %w", err)
		}
	}
	return &TransactionStore{db: db, repo: repo}, nil
}

// UpsertTransaction inserts the record or overwrites the stored row with the
// same txn_id in a single statement. The approval flag of an existing row is
// kept as stored.
func (s *TransactionStore) UpsertTransaction(ctx context.Context, txn core.Transaction) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	txn.TxnID = strings.TrimSpace(txn.TxnID)
	if txn.TxnID == "" {
		return core.Transaction{}, fmt.Errorf("sqlstore: txn id is required")
	}
	now := time.Now().UTC()
	record := newTransactionRecord(txn, now)
	if strings.TrimSpace(record.ID) == "" {
		record.ID = uuid.NewString()
	}

	stored := &transactionRecord{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewInsert().
			Model(record).
			On("CONFLICT (txn_id) DO UPDATE")
		for _, column := range transactionUpsertColumns {
			query = query.Set(column + " = EXCLUDED." + column)
		}
		if _, err := query.Exec(ctx); err != nil {
			return err
		}
		return tx.NewSelect().
			Model(stored).
			Where("?TableAlias.txn_id = ?", record.TxnID).
			Limit(1).
			Scan(ctx)
	})
	if err != nil {
		return core.Transaction{}, err
	}
	s.attachUsernames(ctx, stored)
	return stored.toDomain(), nil
}

func (s *TransactionStore) FindTransactionByTxnID(ctx context.Context, txnID string) (core.Transaction, bool, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, false, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	record := &transactionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.txn_id = ?", strings.TrimSpace(txnID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Transaction{}, false, nil
		}
		return core.Transaction{}, false, err
	}
	s.attachUsernames(ctx, record)
	return record.toDomain(), true, nil
}

func (s *TransactionStore) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	record := &transactionRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Transaction{}, fmt.Errorf("%w: id %q", core.ErrTransactionNotFound, id)
		}
		return core.Transaction{}, err
	}
	s.attachUsernames(ctx, record)
	return record.toDomain(), nil
}

func (s *TransactionStore) ListTransactions(ctx context.Context, filter core.TransactionFilter) ([]core.Transaction, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultTransactionListLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	order := "created_at ASC"
	if filter.NewestFirst {
		order = "created_at DESC"
	}

	selectors := []repository.SelectCriteria{
		repository.OrderBy(order),
		repository.SelectPaginate(limit, offset),
	}
	if email := strings.TrimSpace(filter.PayerEmail); email != "" {
		selectors = append(selectors, repository.SelectBy("payer_email", "=", email))
	}
	selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
		if filter.UserID > 0 {
			q = q.Where("?TableAlias.user_id = ?", filter.UserID)
		}
		if filter.TestIPN != nil {
			q = q.Where("?TableAlias.test_ipn = ?", *filter.TestIPN)
		}
		if filter.OnlyErrors || filter.Unapproved {
			q = q.Where("?TableAlias.txn_errors <> ''")
		}
		if filter.Unapproved {
			q = q.Where("?TableAlias.txn_errors_approved = ?", false)
		}
		return q
	}))

	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	s.attachUsernames(ctx, records...)
	out := make([]core.Transaction, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *TransactionStore) SetErrorsApproved(ctx context.Context, id string, approved bool) (core.Transaction, error) {
	if s == nil || s.db == nil {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.Transaction{}, fmt.Errorf("sqlstore: transaction id is required")
	}
	res, err := s.db.NewUpdate().
		Model((*transactionRecord)(nil)).
		Set("txn_errors_approved = ?", approved).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return core.Transaction{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.Transaction{}, fmt.Errorf("%w: id %q", core.ErrTransactionNotFound, id)
	}
	return s.GetTransaction(ctx, id)
}

// attachUsernames fills the display name of known owners. Lookup failures
// leave the names empty.
func (s *TransactionStore) attachUsernames(ctx context.Context, records ...*transactionRecord) {
	ids := make([]int64, 0, len(records))
	seen := map[int64]struct{}{}
	for _, record := range records {
		if record == nil || record.UserID <= 0 {
			continue
		}
		if _, ok := seen[record.UserID]; ok {
			continue
		}
		seen[record.UserID] = struct{}{}
		ids = append(ids, record.UserID)
	}
	if len(ids) == 0 {
		return
	}
	var users []userRecord
	if err := s.db.NewSelect().
		Model(&users).
		Where("?TableAlias.user_id IN (?)", bun.In(ids)).
		Scan(ctx); err != nil {
		return
	}
	names := make(map[int64]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Username
	}
	for _, record := range records {
		if record == nil {
			continue
		}
		record.Username = names[record.UserID]
	}
}
