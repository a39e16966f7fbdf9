package core

import (
	"context"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-donations/schema"
)

// Effect names the side effects run by the orchestrator, in execution order.
type Effect string

const (
	EffectCompletedHook Effect = "completed_hook"
	EffectOverviewStats Effect = "overview_stats"
	EffectNotifyErrors  Effect = "notify_donation_errors"
	EffectRaisedAmount  Effect = "raised_amount"
	EffectNotifyAdmin   Effect = "notify_admin_donation_received"
	EffectDonorStats    Effect = "donor_stats"
	EffectGroupAdd      Effect = "donors_group_add"
	EffectNotifyDonor   Effect = "notify_donor_donation_received"
)

// Outcome is the per-call result of HandleNotification.
type Outcome struct {
	Transaction Transaction
	Verdict     Verdict
	Report      VerificationReport
	Gates       TaskGates
	Violations  schema.Violations
	Donor       UserInfo
	Effects     []Effect
	// Redelivery is set when the record was already settled before this
	// call. Effects that accumulate or announce the donation are skipped.
	Redelivery bool
	// EffectErrors lists side effects that failed after the record was
	// persisted. They are logged and audited but do not fail the call.
	EffectErrors map[Effect]error
}

func (o Outcome) Ran(effect Effect) bool {
	for _, ran := range o.Effects {
		if ran == effect {
			return true
		}
	}
	return false
}

// callState is threaded through the pipeline stages of one notification.
type callState struct {
	settings  Settings
	form      schema.Form
	values    schema.Values
	mechanism TransportMechanism
	outcome   Outcome
}

// HandleNotification runs one inbound notification through sanitize, verify,
// persist and orchestrate. A missing transport or a persistence failure is
// fatal. A malformed body or a notification without txn_id returns a bad
// input error that IsFatal reports as safe to acknowledge.
func (s *Service) HandleNotification(ctx context.Context, body []byte) (Outcome, error) {
	startedAt := time.Now()
	if s == nil {
		return Outcome{}, fmt.Errorf("core: service is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	state, err := s.prepareCall(ctx, body)
	fields := map[string]any{}
	if err != nil {
		s.observeOperation(ctx, startedAt, "handle_notification", err, fields)
		return state.outcome, err
	}
	fields["txn_id"] = state.values.Text("txn_id")
	fields["mechanism"] = state.mechanism.Name()

	s.verify(ctx, &state)
	fields["verdict"] = string(state.outcome.Verdict)
	fields["status_code"] = state.outcome.Report.StatusCode

	if err := s.record(ctx, &state); err != nil {
		s.observeOperation(ctx, startedAt, "handle_notification", err, fields)
		return state.outcome, err
	}
	fields["transaction_id"] = state.outcome.Transaction.ID
	if state.outcome.Redelivery {
		fields["redelivery"] = true
	}

	s.orchestrate(ctx, &state)
	fields["effects"] = len(state.outcome.Effects)
	if len(state.outcome.EffectErrors) > 0 {
		fields["effect_errors"] = len(state.outcome.EffectErrors)
	}

	s.recordCounter(ctx, MetricVerdictTotal, 1, transactionTags(state.outcome.Transaction, state.outcome.Verdict))
	s.observeOperation(ctx, startedAt, "handle_notification", nil, fields)
	return state.outcome, nil
}

func (s *Service) prepareCall(ctx context.Context, body []byte) (callState, error) {
	state := callState{outcome: Outcome{Verdict: VerdictIndeterminate}}

	settings, err := s.settings.Load(ctx)
	if err != nil {
		return state, persistenceError(err, "load donation settings failed", nil)
	}
	state.settings = settings

	form, err := schema.ParseForm(body)
	if err != nil {
		s.audit(ctx, AuditEntry{
			Message: "Malformed notification body",
			Persist: true,
			IsError: true,
			Context: map[string]any{"error": err.Error()},
		})
		return state, goerrors.Wrap(err, goerrors.CategoryBadInput, "malformed notification body").
			WithCode(http.StatusBadRequest).
			WithTextCode(DonationErrorBadInput)
	}
	state.form = form

	mechanism, err := s.selectTransport(ctx)
	if err != nil {
		if setErr := s.settings.Set(ctx, SettingIPNEnable, FormatSettingBool(false)); setErr != nil {
			s.logError(ctx, "disable notifications failed", map[string]any{"error": setErr.Error()})
		}
		s.audit(ctx, AuditEntry{
			Message: "Verification requirements not satisfied: no outbound transport is available",
			Persist: true,
			IsError: true,
			Context: map[string]any{"error": err.Error()},
		})
		return state, goerrors.Wrap(err, goerrors.CategoryExternal, "no usable verification transport").
			WithCode(http.StatusServiceUnavailable).
			WithTextCode(DonationErrorTransportUnavailable)
	}
	state.mechanism = mechanism
	s.recordCounter(ctx, MetricTransportSelected, 1, map[string]string{"mechanism": mechanism.Name()})

	result := s.sanitizer.Sanitize(form)
	s.sanitizer.VerifyReceiver(&result, settings.MerchantIdentity())
	state.values = result.Values
	state.outcome.Violations = result.Errors
	if !result.Errors.Empty() {
		s.audit(ctx, AuditEntry{
			Message: "Invalid transaction:\n" + result.Errors.String(),
			Persist: true,
			Context: formContext(form),
		})
	}
	return state, nil
}

// formContext copies the received pairs into an audit context.
func formContext(form schema.Form) map[string]any {
	out := make(map[string]any, form.Len())
	for _, pair := range form.Pairs() {
		out[pair.Key] = pair.Value
	}
	return out
}

func (s *Service) selectTransport(ctx context.Context) (TransportMechanism, error) {
	if s.transportSelector == nil {
		return nil, ErrNoTransport
	}
	mechanism, err := s.transportSelector.Select(ctx)
	if err != nil {
		return nil, err
	}
	if mechanism == nil {
		return nil, ErrNoTransport
	}
	return mechanism, nil
}

func (s *Service) verify(ctx context.Context, state *callState) {
	report := VerificationReport{Verdict: VerdictIndeterminate, Mechanism: state.mechanism.Name()}
	if s.verifier != nil {
		report = s.verifier.Verify(ctx, VerificationRequest{
			Form:      state.form,
			Sandbox:   state.values.Bool("test_ipn"),
			Mechanism: state.mechanism,
		})
	} else {
		report.Err = fmt.Errorf("core: verifier is not configured")
	}
	state.outcome.Report = report
	state.outcome.Verdict = report.Verdict

	reportContext := map[string]any{
		"endpoint":    report.Endpoint,
		"mechanism":   report.Mechanism,
		"response":    report.Body,
		"status_code": report.StatusCode,
		"txn_id":      state.values.Text("txn_id"),
	}
	if report.Err != nil {
		reportContext["error"] = report.Err.Error()
	}
	if report.StatusCode != 0 && (report.StatusCode < 200 || report.StatusCode > 299) {
		s.audit(ctx, AuditEntry{
			Message: "Unexpected verification response status",
			Persist: true,
			IsError: true,
			Context: reportContext,
		})
	}

	switch report.Verdict {
	case VerdictVerified:
		s.audit(ctx, AuditEntry{Message: "DEBUG VERIFIED", Persist: true, Context: reportContext})
	case VerdictInvalid:
		s.audit(ctx, AuditEntry{Message: "DEBUG INVALID", Persist: true, IsError: true, Context: reportContext})
	default:
		s.audit(ctx, AuditEntry{Message: "DEBUG OTHER", Persist: true, Context: reportContext})
		s.audit(ctx, AuditEntry{Message: "Unexpected verification response", Persist: true, IsError: true, Context: reportContext})
	}
}
