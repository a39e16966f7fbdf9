package core

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-donations/schema"
)

// record persists the notification whatever the verdict; unverified
// notifications are stored unconfirmed for review.
func (s *Service) record(ctx context.Context, state *callState) error {
	if s.transactionStore == nil {
		return persistenceError(fmt.Errorf("core: transaction store is not configured"), "persist transaction failed", nil)
	}

	txn := BuildTransaction(state.values, state.outcome.Violations.String())
	if strings.TrimSpace(txn.TxnID) == "" {
		s.audit(ctx, AuditEntry{
			Message: "Notification without a transaction id was not recorded",
			Persist: true,
			IsError: true,
			Context: formContext(state.form),
		})
		return goerrors.New("notification carries no transaction id", goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(DonationErrorBadInput).
			WithMetadata(map[string]any{"txn_type": txn.TxnType})
	}
	txn.Confirmed = state.outcome.Verdict.Verified()
	txn.UserID = ParseCorrelationToken(txn.ItemNumber, s.config.CorrelationPrefix, s.config.AnonymousUserID)
	txn.Username = s.lookupUsername(ctx, txn.UserID)

	prior, found, err := s.transactionStore.FindTransactionByTxnID(ctx, txn.TxnID)
	if err != nil {
		return persistenceError(err, "load stored transaction failed", map[string]any{"txn_id": txn.TxnID})
	}
	state.outcome.Redelivery = found && prior.Settled()

	saved, err := s.transactionStore.UpsertTransaction(ctx, txn)
	if err != nil {
		return persistenceError(err, "persist transaction failed", map[string]any{"txn_id": txn.TxnID})
	}
	state.outcome.Transaction = saved
	return nil
}

func (s *Service) lookupUsername(ctx context.Context, userID int64) string {
	if s.userDirectory == nil || userID <= 0 {
		return ""
	}
	user, found, err := s.userDirectory.FindUserByID(ctx, userID)
	if err != nil {
		s.logError(ctx, "lookup donor username failed", map[string]any{"user_id": userID, "error": err.Error()})
		return ""
	}
	if !found {
		return ""
	}
	return user.Username
}

// BuildTransaction maps sanitized values onto a transaction record. Identity,
// ownership and verdict fields are left to the caller.
func BuildTransaction(values schema.Values, violations string) Transaction {
	gross := values.Float("mc_gross")
	fee := values.Float("mc_fee")
	txn := Transaction{
		TxnID:            values.Text("txn_id"),
		ParentTxnID:      values.Text("parent_txn_id"),
		TxnType:          values.Text("txn_type"),
		Business:         values.Text("business"),
		ReceiverID:       values.Text("receiver_id"),
		ReceiverEmail:    values.Text("receiver_email"),
		ResidenceCountry: values.Text("residence_country"),
		ItemName:         values.Text("item_name"),
		ItemNumber:       values.Text("item_number"),
		Memo:             values.Text("memo"),
		PayerID:          values.Text("payer_id"),
		PayerEmail:       values.Text("payer_email"),
		PayerStatus:      values.Text("payer_status"),
		FirstName:        values.Text("first_name"),
		LastName:         values.Text("last_name"),
		PaymentStatus:    values.Text("payment_status"),
		PaymentType:      values.Text("payment_type"),
		Currency:         values.Text("mc_currency"),
		Gross:            gross,
		Fee:              fee,
		NetAmount:        NetAmount(gross, fee),
		SettleAmount:     values.Float("settle_amount"),
		SettleCurrency:   values.Text("settle_currency"),
		ExchangeRate:     values.Text("exchange_rate"),
		TestIPN:          values.Bool("test_ipn"),
		Errors:           strings.TrimSpace(violations),
	}
	if unix := values.Unix("payment_date"); unix > 0 {
		txn.PaymentDate = time.Unix(unix, 0).UTC()
	}
	return txn
}
