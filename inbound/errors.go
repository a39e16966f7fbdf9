package inbound

import (
	"net/http"

	"github.com/goliatone/go-donations/core"
	goerrors "github.com/goliatone/go-errors"
)

func inboundError(
	message string,
	category goerrors.Category,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundWrapError(
	source error,
	category goerrors.Category,
	message string,
	code int,
	textCode string,
	metadata map[string]any,
) error {
	if source == nil {
		return inboundError(message, category, code, textCode, metadata)
	}
	err := goerrors.Wrap(source, category, message).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func inboundBodyTooLarge(limit int64) error {
	return inboundError(
		"inbound: notification body exceeds limit",
		goerrors.CategoryBadInput,
		http.StatusRequestEntityTooLarge,
		core.DonationErrorBadInput,
		map[string]any{"limit_bytes": limit},
	)
}

func inboundReadFailed(source error) error {
	return inboundWrapError(
		source,
		goerrors.CategoryBadInput,
		"inbound: read notification body",
		http.StatusBadRequest,
		core.DonationErrorBadInput,
		nil,
	)
}

func inboundInternal(message string, metadata map[string]any) error {
	return inboundError(
		message,
		goerrors.CategoryInternal,
		http.StatusInternalServerError,
		core.DonationErrorInternal,
		metadata,
	)
}

// StatusCode maps a notification call result to the HTTP status returned to
// the provider.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code == http.StatusRequestEntityTooLarge {
		return rich.Code
	}
	if core.IsFatal(err) {
		return http.StatusInternalServerError
	}
	return http.StatusOK
}
