package schema

import (
	"strings"
	"testing"
	"time"
)

func TestSanitize_ASCIIOnlyRejectsBytesOutsideRange(t *testing.T) {
	form := NewForm(Pair{Key: "txn_id", Value: "9XK-12"})
	result := Sanitize(form, PayPalFields(), nil)

	if result.Errors.Empty() {
		t.Fatalf("expected ascii violation for txn_id")
	}
	found := false
	for _, violation := range result.Errors {
		if violation.Field == "txn_id" && violation.Rule == string(ConditionASCIIOnly) {
			found = true
			if !strings.Contains(violation.Message, `"txn_id"`) {
				t.Fatalf("expected message naming the field, got %q", violation.Message)
			}
		}
	}
	if !found {
		t.Fatalf("expected ascii_only violation on txn_id, got %+v", result.Errors)
	}
}

func TestSanitize_NonEmptyRejectsMissingTransactionID(t *testing.T) {
	result := Sanitize(NewForm(), PayPalFields(), nil)

	var rules []string
	for _, violation := range result.Errors {
		if violation.Field == "txn_id" {
			rules = append(rules, violation.Rule)
		}
	}
	if len(rules) != 1 || rules[0] != string(ConditionNonEmpty) {
		t.Fatalf("expected a single non_empty violation on txn_id, got %v", rules)
	}
}

func TestSanitize_CollectsEveryViolationForAField(t *testing.T) {
	fields := []Field{{
		Name:    "payer_id",
		Default: StringDefault(""),
		Conditions: []Condition{
			ASCIIOnly{},
			MaxLength{Op: OpLessEqual, Bound: 3},
			OneOf{Values: []string{"abc"}},
		},
	}}
	result := Sanitize(NewForm(Pair{Key: "payer_id", Value: "a-b-c"}), fields, nil)

	if len(result.Errors) != 3 {
		t.Fatalf("expected 3 violations, got %d: %+v", len(result.Errors), result.Errors)
	}
	if got := strings.Count(result.Errors.String(), "\n"); got != 2 {
		t.Fatalf("expected messages joined by newlines, got %q", result.Errors.String())
	}
}

func TestSanitize_TruncatesEveryBoundedField(t *testing.T) {
	long := strings.Repeat("x", 400)
	var pairs []Pair
	for _, field := range PayPalFields() {
		pairs = append(pairs, Pair{Key: field.Name, Value: long})
	}
	result := Sanitize(NewForm(pairs...), PayPalFields(), nil)

	for _, field := range PayPalFields() {
		for _, normalizer := range field.Normalizers {
			truncate, ok := normalizer.(Truncate)
			if !ok {
				continue
			}
			value := result.Values[field.Name]
			if value.Kind != KindString {
				continue
			}
			if len(value.Text) > truncate.Length {
				t.Fatalf("expected %s bounded to %d bytes, got %d", field.Name, truncate.Length, len(value.Text))
			}
		}
	}
	if result.Errors.Empty() {
		t.Fatalf("expected length violations to be reported")
	}
}

func TestSanitize_TruncateKeepsRunesWhole(t *testing.T) {
	fields := []Field{{
		Name:        "first_name",
		Default:     TextDefault("", true),
		Normalizers: []Normalizer{Truncate{Length: 5}},
	}}
	result := Sanitize(NewForm(Pair{Key: "first_name", Value: "Zoé&eacute;é"}), fields, nil)

	got := result.Values.Text("first_name")
	if got != "Zoé" {
		t.Fatalf("expected rune-safe truncation to %q, got %q", "Zoé", got)
	}
}

func TestSanitize_AppliesDefaultsAndNormalizersInOrder(t *testing.T) {
	form := NewForm(
		Pair{Key: "receiver_email", Value: "  Shop@Example.COM "},
		Pair{Key: "mc_gross", Value: "100.00"},
		Pair{Key: "test_ipn", Value: "1"},
		Pair{Key: "payment_date", Value: "08:52:11 Jan 02, 2024 PST"},
	)
	result := Sanitize(form, PayPalFields(), nil)

	if got := result.Values.Text("receiver_email"); got != "shop@example.com" {
		t.Fatalf("expected lowercased receiver email, got %q", got)
	}
	if got := result.Values.Float("mc_gross"); got != 100 {
		t.Fatalf("expected gross 100, got %v", got)
	}
	if !result.Values.Bool("test_ipn") {
		t.Fatalf("expected test_ipn to be true")
	}
	if got := result.Values.Text("payer_status"); got != "unverified" {
		t.Fatalf("expected payer_status default, got %q", got)
	}
	want := time.Date(2024, time.January, 2, 16, 52, 11, 0, time.UTC).Unix()
	if got := result.Values.Unix("payment_date"); got != want {
		t.Fatalf("expected payment_date %d, got %d", want, got)
	}
}

func TestSanitize_OneOfRejectsUnknownPaymentType(t *testing.T) {
	result := Sanitize(NewForm(Pair{Key: "payment_type", Value: "wire"}), PayPalFields(), nil)
	for _, violation := range result.Errors {
		if violation.Field == "payment_type" && violation.Rule == string(ConditionOneOf) {
			return
		}
	}
	t.Fatalf("expected one_of violation on payment_type, got %+v", result.Errors)
}

func TestSanitize_ReplacesNonASCIIBytesInPlainStrings(t *testing.T) {
	result := Sanitize(NewForm(Pair{Key: "payer_email", Value: "jö@example.com"}), PayPalFields(), nil)
	if got := result.Values.Text("payer_email"); got != "j??@example.com" {
		t.Fatalf("expected non-ascii bytes replaced, got %q", got)
	}
}

func TestCheckReceiver_MatchesIDOrEmail(t *testing.T) {
	values := Values{
		"receiver_id":    StringValue("MERCHANT123"),
		"receiver_email": StringValue("shop@example.com"),
	}
	cases := []struct {
		identity string
		want     bool
	}{
		{identity: "MERCHANT123", want: true},
		{identity: "Shop@Example.com", want: true},
		{identity: "merchant123", want: false},
		{identity: "other@example.com", want: false},
		{identity: "", want: false},
	}
	for _, tc := range cases {
		if got := CheckReceiver(values, tc.identity); got != tc.want {
			t.Fatalf("identity %q: expected %v, got %v", tc.identity, tc.want, got)
		}
	}
}

func TestSanitizer_VerifyReceiverAppendsAccountViolation(t *testing.T) {
	sanitizer := NewSanitizer(PayPalFields(), Messages{MessageKeyAccountID: "wrong account"})
	result := sanitizer.Sanitize(NewForm(
		Pair{Key: "txn_id", Value: "ABC123"},
		Pair{Key: "receiver_email", Value: "someone@example.com"},
	))
	before := len(result.Errors)

	if sanitizer.VerifyReceiver(&result, "shop@example.com") {
		t.Fatalf("expected receiver mismatch")
	}
	if len(result.Errors) != before+1 {
		t.Fatalf("expected one additional violation")
	}
	last := result.Errors[len(result.Errors)-1]
	if last.Rule != MessageKeyAccountID || last.Message != "wrong account" {
		t.Fatalf("unexpected account violation: %+v", last)
	}
}
