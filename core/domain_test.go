package core

import (
	"testing"
)

func TestParseCorrelationToken(t *testing.T) {
	tests := []struct {
		name string
		item string
		want int64
	}{
		{name: "member token", item: "uid_482_1704214331", want: 482},
		{name: "empty suffix", item: "uid_482_", want: 482},
		{name: "surrounding space", item: "  uid_17_abc ", want: 17},
		{name: "missing suffix separator", item: "uid_482", want: 1},
		{name: "non numeric id", item: "uid_abc_1704214331", want: 1},
		{name: "signed id", item: "uid_-4_x", want: 1},
		{name: "zero id", item: "uid_0_x", want: 1},
		{name: "other prefix", item: "donation_482_x", want: 1},
		{name: "empty", item: "", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseCorrelationToken(tt.item, "uid_", 1); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestParseCorrelationToken_EmptyPrefixIsAnonymous(t *testing.T) {
	if got := ParseCorrelationToken("482_x", "", 1); got != 1 {
		t.Fatalf("expected anonymous without prefix, got %d", got)
	}
}

func TestNetAmount(t *testing.T) {
	if got := NetAmount(100, 3.20); got != 96.8 {
		t.Fatalf("expected 96.80, got %v", got)
	}
	if got := NetAmount(10.10, 0.59); got != 9.51 {
		t.Fatalf("expected 9.51, got %v", got)
	}
	if got := NetAmount(0, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := NetAmount(0.3, 0.1); got != 0.2 {
		t.Fatalf("expected float noise to be removed, got %v", got)
	}
	if got := NetAmount(10.005, 0.001); got != 10.004 {
		t.Fatalf("expected three decimal input to keep its precision, got %v", got)
	}
	if got := NetAmount(1500, 45); got != 1455 {
		t.Fatalf("expected 1455, got %v", got)
	}
}

func TestEmailHash(t *testing.T) {
	if EmailHash("") != "" {
		t.Fatalf("expected empty hash for empty email")
	}
	lower := EmailHash("donor@example.com")
	if lower == "" {
		t.Fatalf("expected hash")
	}
	if got := EmailHash("  Donor@Example.COM "); got != lower {
		t.Fatalf("expected case-insensitive hash %q, got %q", lower, got)
	}
	if got := lower[len(lower)-2:]; got != "17" {
		t.Fatalf("expected hash to end with address length 17, got %q", got)
	}
}

func TestTransactionFlags(t *testing.T) {
	txn := Transaction{PaymentStatus: "Completed", Errors: "  "}
	if txn.HasErrors() {
		t.Fatalf("expected blank errors to be ignored")
	}
	txn.Errors = "receiver mismatch"
	if !txn.HasUnapprovedErrors() {
		t.Fatalf("expected unapproved errors")
	}
	txn.ErrorsApproved = true
	if txn.HasUnapprovedErrors() {
		t.Fatalf("expected approved errors to clear the flag")
	}
	if !txn.PaymentCompleted() {
		t.Fatalf("expected completed payment")
	}
	if (Transaction{PaymentStatus: "completed"}).PaymentCompleted() {
		t.Fatalf("expected status match to be case-sensitive")
	}
}

func TestStatsSuffix(t *testing.T) {
	if StatsSuffix(true) != "_ipn" || StatsSuffix(false) != "" {
		t.Fatalf("unexpected stats suffixes %q %q", StatsSuffix(true), StatsSuffix(false))
	}
}
