package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ApproveTransaction records an administrator decision on a transaction that
// carries validation errors. Approving refreshes the overview statistics,
// adds the net amount to the raised total and, for live transactions,
// notifies the donor. Revoking only refreshes the statistics. A record without
// errors already ran those effects when it was received, so approving it
// only refreshes the statistics.
func (s *Service) ApproveTransaction(ctx context.Context, id string, approved bool) (Transaction, error) {
	startedAt := time.Now()
	fields := map[string]any{"transaction_id": strings.TrimSpace(id), "approved": approved}
	if s == nil || s.transactionStore == nil {
		return Transaction{}, fmt.Errorf("core: transaction store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		err := s.mapError(fmt.Errorf("core: transaction id is required"))
		s.observeOperation(ctx, startedAt, "approve_transaction", err, fields)
		return Transaction{}, err
	}

	txn, err := s.transactionStore.SetErrorsApproved(ctx, id, approved)
	if err != nil {
		err = s.mapError(err)
		s.observeOperation(ctx, startedAt, "approve_transaction", err, fields)
		return Transaction{}, err
	}
	fields["txn_id"] = txn.TxnID
	fields["test_ipn"] = txn.TestIPN

	if err := s.refreshOverview(ctx, txn.TestIPN); err != nil {
		err = persistenceError(err, "refresh overview statistics failed", fields)
		s.observeOperation(ctx, startedAt, "approve_transaction", err, fields)
		return txn, err
	}
	if approved && txn.HasErrors() {
		if err := s.addRaisedAmount(ctx, txn); err != nil {
			err = persistenceError(err, "update raised amount failed", fields)
			s.observeOperation(ctx, startedAt, "approve_transaction", err, fields)
			return txn, err
		}
		if !txn.TestIPN {
			if err := s.notify(ctx, NotificationDonorDonationReceived, txn, map[string]any{"approved": true}); err != nil {
				s.logError(ctx, "approval donor notification failed", map[string]any{
					"transaction_id": txn.ID,
					"error":          err.Error(),
				})
			}
		}
	}

	s.audit(ctx, AuditEntry{
		Message: "Transaction approval updated",
		Persist: true,
		Context: fields,
	})
	s.observeOperation(ctx, startedAt, "approve_transaction", nil, fields)
	return txn, nil
}
