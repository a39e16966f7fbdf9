package core

import (
	"context"
	"strconv"
)

const (
	MetricVerdictTotal      = "donations.verdict.total"
	MetricEffectFailures    = "donations.effect.failures"
	MetricTransportSelected = "donations.transport.selected"
)

// NopMetricsRecorder discards every observation.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// transactionTags are the low-cardinality tags attached to per-transaction
// metrics.
func transactionTags(txn Transaction, verdict Verdict) map[string]string {
	tags := map[string]string{
		"verdict": string(verdict),
		"test":    strconv.FormatBool(txn.TestIPN),
	}
	if status := txn.PaymentStatus; status != "" {
		tags["payment_status"] = status
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
