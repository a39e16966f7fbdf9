package query

import (
	"context"
	"testing"

	"github.com/goliatone/go-donations/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestListAuditMessage_ValidateReturnsRichError(t *testing.T) {
	err := (ListAuditMessage{Limit: -1}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.DonationErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.DonationErrorBadInput, rich.TextCode)
	}
}

func TestGetOverviewQuery_NilReaderReturnsRichError(t *testing.T) {
	var qry *GetOverviewQuery
	_, err := qry.Query(context.Background(), GetOverviewMessage{})
	if err == nil {
		t.Fatalf("expected dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.DonationErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.DonationErrorInternal, rich.TextCode)
	}
}
