package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-donations/schema"
)

// orchestrate runs the gated side effects of a verified notification in a
// fixed order. Effect failures are recorded on the outcome and never abort
// the remaining steps, except that unapproved errors stop the call after the
// error notification. A redelivery of a settled record refreshes statistics
// and group membership only.
func (s *Service) orchestrate(ctx context.Context, state *callState) {
	outcome := &state.outcome
	if !outcome.Verdict.Verified() {
		return
	}

	txn := outcome.Transaction
	donor, member := s.resolveDonor(ctx, txn)
	gates := ComputeGates(txn, member)
	outcome.Gates = gates
	outcome.Donor = donor

	if gates.PaymentCompleted {
		txn = s.runCompletedHooks(ctx, state, txn, gates)
		s.runEffect(ctx, outcome, EffectOverviewStats, func() error {
			return s.refreshOverview(ctx, txn.TestIPN)
		})
	}

	if gates.UnapprovedErrors {
		s.runEffect(ctx, outcome, EffectNotifyErrors, func() error {
			return s.notify(ctx, NotificationDonationErrors, txn, map[string]any{"errors": txn.Errors})
		})
		return
	}

	if !gates.TestTransaction && !outcome.Redelivery {
		s.runEffect(ctx, outcome, EffectRaisedAmount, func() error {
			return s.addRaisedAmount(ctx, txn)
		})
		s.runEffect(ctx, outcome, EffectNotifyAdmin, func() error {
			return s.notify(ctx, NotificationAdminDonationReceived, txn, nil)
		})
	}

	if gates.DonorIsMember {
		donated := donor.DonatedAmount
		if !outcome.Redelivery {
			donated += txn.NetAmount
			s.runEffect(ctx, outcome, EffectDonorStats, func() error {
				if s.userDirectory == nil {
					return fmt.Errorf("core: user directory is not configured")
				}
				return s.userDirectory.UpdateDonatedAmount(ctx, donor.ID, donated)
			})
		}
		s.addToDonorsGroup(ctx, state, txn, donor, donated)
		if outcome.Redelivery {
			return
		}
		s.runEffect(ctx, outcome, EffectNotifyDonor, func() error {
			donorTxn := txn
			donorTxn.UserID = donor.ID
			donorTxn.Username = donor.Username
			return s.notify(ctx, NotificationDonorDonationReceived, donorTxn, map[string]any{
				"donated_amount": donated,
			})
		})
	}
}

// ComputeGates evaluates the four independent task gates of a verified call.
func ComputeGates(txn Transaction, donorIsMember bool) TaskGates {
	return TaskGates{
		PaymentCompleted: txn.PaymentCompleted(),
		DonorIsMember:    donorIsMember,
		UnapprovedErrors: txn.HasUnapprovedErrors(),
		TestTransaction:  txn.TestIPN,
	}
}

// resolveDonor looks the donor up by owning user id, then by payer email when
// the owner is anonymous or unknown.
func (s *Service) resolveDonor(ctx context.Context, txn Transaction) (UserInfo, bool) {
	if s.userDirectory == nil {
		return UserInfo{}, false
	}
	if txn.UserID > 0 && txn.UserID != s.config.AnonymousUserID {
		user, found, err := s.userDirectory.FindUserByID(ctx, txn.UserID)
		if err != nil {
			s.logError(ctx, "lookup donor by id failed", map[string]any{"user_id": txn.UserID, "error": err.Error()})
		} else if found && user.Known() {
			return user, true
		}
	}
	email := strings.TrimSpace(txn.PayerEmail)
	if email == "" {
		return UserInfo{}, false
	}
	user, found, err := s.userDirectory.FindUserByEmail(ctx, email)
	if err != nil {
		s.logError(ctx, "lookup donor by email failed", map[string]any{"txn_id": txn.TxnID, "error": err.Error()})
		return UserInfo{}, false
	}
	if !found || !user.Known() || user.ID == s.config.AnonymousUserID {
		return UserInfo{}, false
	}
	return user, true
}

func (s *Service) runCompletedHooks(ctx context.Context, state *callState, txn Transaction, gates TaskGates) Transaction {
	if len(s.completedHooks) == 0 {
		return txn
	}
	snapshot := CompletedSnapshot{Transaction: txn, Gates: gates, Values: cloneValues(state.values)}
	for _, hook := range s.completedHooks {
		next, err := hook.BeforeCompleted(ctx, snapshot)
		if err != nil {
			s.logError(ctx, "completed hook failed", map[string]any{"txn_id": txn.TxnID, "error": err.Error()})
			s.recordEffectError(ctx, &state.outcome, EffectCompletedHook, err)
			continue
		}
		snapshot = next
	}
	state.outcome.Effects = append(state.outcome.Effects, EffectCompletedHook)
	return snapshot.Transaction
}

// CanUseAutogroup reports whether a member donor qualifies for the donors
// group. A zero threshold always passes.
func CanUseAutogroup(verdict Verdict, settings Settings, member bool, txn Transaction, donated float64) bool {
	return verdict.Verified() &&
		settings.IPNEnable &&
		settings.AutogroupEnable &&
		member &&
		txn.PaymentCompleted() &&
		donated >= settings.MinBeforeGroup
}

func (s *Service) addToDonorsGroup(ctx context.Context, state *callState, txn Transaction, donor UserInfo, donated float64) {
	decision := GroupAddDecision{
		CanUseAutogroup: CanUseAutogroup(state.outcome.Verdict, state.settings, state.outcome.Gates.DonorIsMember, txn, donated),
		GroupID:         state.settings.GroupID,
		UserID:          donor.ID,
		Username:        donor.Username,
		MakeDefault:     state.settings.GroupAsDefault,
	}
	for _, hook := range s.groupAddHooks {
		next, err := hook.BeforeGroupAdd(ctx, decision)
		if err != nil {
			s.logError(ctx, "group add hook failed", map[string]any{"user_id": donor.ID, "error": err.Error()})
			continue
		}
		decision = next
	}
	if !decision.CanUseAutogroup {
		return
	}
	s.runEffect(ctx, &state.outcome, EffectGroupAdd, func() error {
		if s.userDirectory == nil {
			return fmt.Errorf("core: user directory is not configured")
		}
		if decision.GroupID <= 0 {
			return fmt.Errorf("core: donors group id is required")
		}
		return s.userDirectory.AddUserToGroup(ctx, decision.GroupID, decision.UserID, decision.MakeDefault)
	})
}

func (s *Service) refreshOverview(ctx context.Context, test bool) error {
	if s.statsStore == nil {
		return fmt.Errorf("core: stats store is not configured")
	}
	_, err := s.statsStore.RefreshOverview(ctx, test, s.config.AnonymousUserID)
	return err
}

func (s *Service) addRaisedAmount(ctx context.Context, txn Transaction) error {
	if s.statsStore == nil {
		return fmt.Errorf("core: stats store is not configured")
	}
	_, err := s.statsStore.AddRaisedAmount(ctx, txn.TestIPN, txn.NetAmount)
	return err
}

func (s *Service) notify(ctx context.Context, kind NotificationKind, txn Transaction, payload map[string]any) error {
	if s.notifier == nil {
		return nil
	}
	body := map[string]any{
		"txn_id":         txn.TxnID,
		"payment_status": txn.PaymentStatus,
		"currency":       txn.Currency,
		"gross":          txn.Gross,
		"net_amount":     txn.NetAmount,
		"payer_email":    txn.PayerEmail,
		"test_ipn":       txn.TestIPN,
	}
	for key, value := range payload {
		body[key] = value
	}
	return s.notifier.Notify(ctx, Notification{
		Kind:          kind,
		TransactionID: txn.ID,
		TxnID:         txn.TxnID,
		UserID:        txn.UserID,
		Username:      txn.Username,
		Payload:       body,
		CreatedAt:     s.now(),
	})
}

func (s *Service) runEffect(ctx context.Context, outcome *Outcome, effect Effect, fn func() error) {
	outcome.Effects = append(outcome.Effects, effect)
	if err := fn(); err != nil {
		s.recordEffectError(ctx, outcome, effect, err)
	}
}

func (s *Service) recordEffectError(ctx context.Context, outcome *Outcome, effect Effect, err error) {
	if outcome.EffectErrors == nil {
		outcome.EffectErrors = map[Effect]error{}
	}
	outcome.EffectErrors[effect] = err
	s.recordCounter(ctx, MetricEffectFailures, 1, map[string]string{"effect": string(effect)})
	s.audit(ctx, AuditEntry{
		Message: "Donation side effect failed: " + string(effect),
		Persist: true,
		IsError: true,
		Context: map[string]any{
			"effect":         string(effect),
			"transaction_id": outcome.Transaction.ID,
			"txn_id":         outcome.Transaction.TxnID,
			"error":          err.Error(),
		},
	})
}

func cloneValues(values schema.Values) schema.Values {
	copied := make(schema.Values, len(values))
	for key, value := range values {
		copied[key] = value
	}
	return copied
}
