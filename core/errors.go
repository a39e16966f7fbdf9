package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DonationErrorBadInput             = "DONATIONS_BAD_INPUT"
	DonationErrorNotFound             = "DONATIONS_NOT_FOUND"
	DonationErrorTransportUnavailable = "DONATIONS_TRANSPORT_UNAVAILABLE"
	DonationErrorVerificationFailed   = "DONATIONS_VERIFICATION_FAILED"
	DonationErrorPersistenceFailed    = "DONATIONS_PERSISTENCE_FAILED"
	DonationErrorRateLimited          = "DONATIONS_RATE_LIMITED"
	DonationErrorInternal             = "DONATIONS_INTERNAL_ERROR"
)

var (
	ErrTransactionNotFound = errors.New("core: transaction not found")
	ErrNoTransport         = errors.New("core: no usable verification transport")
)

func donationErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureDonationErrorEnvelope(richErr)
	}

	switch {
	case errors.Is(err, ErrTransactionNotFound):
		return newDonationError(err.Error(), goerrors.CategoryNotFound, DonationErrorNotFound)
	case errors.Is(err, ErrNoTransport):
		return newDonationError(err.Error(), goerrors.CategoryExternal, DonationErrorTransportUnavailable)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newDonationError(err.Error(), goerrors.CategoryNotFound, DonationErrorNotFound)
	case strings.Contains(msg, "transport"), strings.Contains(msg, "mechanism"):
		return newDonationError(err.Error(), goerrors.CategoryExternal, DonationErrorTransportUnavailable)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "malformed"):
		return newDonationError(err.Error(), goerrors.CategoryBadInput, DonationErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureDonationErrorEnvelope(mapped)
}

func newDonationError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureDonationErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

// persistenceError wraps a store failure. Persistence failures are fatal for
// the call so the provider redelivers.
func persistenceError(source error, message string, metadata map[string]any) error {
	err := goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(DonationErrorPersistenceFailed)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func ensureDonationErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = donationHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = DefaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

// DefaultTextCode maps an error category onto the donation text codes.
func DefaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return DonationErrorBadInput
	case goerrors.CategoryNotFound:
		return DonationErrorNotFound
	case goerrors.CategoryExternal:
		return DonationErrorTransportUnavailable
	case goerrors.CategoryOperation:
		return DonationErrorVerificationFailed
	case goerrors.CategoryRateLimit:
		return DonationErrorRateLimited
	default:
		return DonationErrorInternal
	}
}

func donationHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsFatal reports whether err must fail the notification call. Fatal calls are
// acknowledged with a non-200 status so the provider redelivers.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.TextCode {
		case DonationErrorBadInput, DonationErrorNotFound:
			return false
		}
	}
	return true
}
