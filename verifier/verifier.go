// Package verifier replays a payment notification to the provider and turns
// the reply into a verdict.
package verifier

import (
	"context"
	"fmt"
	"strings"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/schema"
)

const (
	validateCommand = "cmd=_notify-validate"
	replyVerified   = "VERIFIED"
	replyInvalid    = "INVALID"
)

type Verifier struct {
	config core.VerificationConfig
	logger core.Logger
}

type Option func(*Verifier)

func WithLogger(logger core.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func New(cfg core.VerificationConfig, opts ...Option) *Verifier {
	verifier := &Verifier{config: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	verifier.logger = glog.Ensure(verifier.logger)
	return verifier
}

// Verify posts the validate command followed by the received fields, in the
// order they were received, to the live or sandbox endpoint.
func (v *Verifier) Verify(ctx context.Context, req core.VerificationRequest) core.VerificationReport {
	report := core.VerificationReport{Verdict: core.VerdictIndeterminate}
	if v == nil {
		report.Err = fmt.Errorf("verifier: verifier is not configured")
		return report
	}
	if req.Mechanism == nil {
		report.Err = fmt.Errorf("verifier: transport mechanism is required")
		return report
	}
	if ctx == nil {
		ctx = context.Background()
	}

	report.Mechanism = req.Mechanism.Name()
	report.Endpoint = v.config.Endpoint(req.Sandbox)
	res, err := req.Mechanism.Post(ctx, core.TransportRequest{
		Endpoint:    report.Endpoint,
		Body:        []byte(Body(req.Form)),
		ContentType: "application/x-www-form-urlencoded",
		UserAgent:   v.config.UserAgent,
		Timeout:     v.config.Timeout,
	})
	if err != nil {
		report.Err = err
		v.logger.Error("verification postback failed",
			"mechanism", report.Mechanism,
			"endpoint", report.Endpoint,
			"error", err.Error(),
		)
		return report
	}

	report.StatusCode = res.StatusCode
	report.Body = string(res.Body)
	report.Verdict = Classify(report.Body)
	return report
}

// Body is the postback payload for form.
func Body(form schema.Form) string {
	encoded := form.Encode()
	if encoded == "" {
		return validateCommand
	}
	return validateCommand + "&" + encoded
}

// Classify maps the provider reply onto a verdict. Surrounding whitespace is
// ignored; anything other than an exact keyword is indeterminate.
func Classify(body string) core.Verdict {
	switch strings.TrimSpace(body) {
	case replyVerified:
		return core.VerdictVerified
	case replyInvalid:
		return core.VerdictInvalid
	default:
		return core.VerdictIndeterminate
	}
}

var _ core.Verifier = (*Verifier)(nil)
