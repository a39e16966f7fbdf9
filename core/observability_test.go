package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func TestServiceObservability_HandleNotificationSuccess(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	h, err := newHarness(withServiceOptions(
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	))
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}

	if _, err := h.svc.HandleNotification(context.Background(), ipnBody(nil)); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	if !hasCounter(metrics.counters, "donations.handle_notification.total", "success") {
		t.Fatalf("expected donations.handle_notification.total success counter")
	}
	if !hasHistogram(metrics.histograms, "donations.handle_notification.duration_ms", "success") {
		t.Fatalf("expected duration histogram")
	}
	verdict := findCounter(metrics.counters, MetricVerdictTotal)
	if verdict == nil || verdict.tags["verdict"] != "verified" || verdict.tags["test"] != "false" {
		t.Fatalf("expected verified verdict counter, got %+v", verdict)
	}
	if selected := findCounter(metrics.counters, MetricTransportSelected); selected == nil || selected.tags["mechanism"] != "http_client" {
		t.Fatalf("expected transport selection counter, got %+v", selected)
	}

	found := false
	for _, record := range logger.snapshot() {
		if record.msg == "handle_notification succeeded" {
			found = true
			if record.fields["txn_id"] != "9XK12345AB6789012" || record.fields["verdict"] != "verified" {
				t.Fatalf("expected txn_id and verdict fields, got %+v", record.fields)
			}
		}
	}
	if !found {
		t.Fatalf("expected success log record")
	}
}

func TestServiceObservability_EffectFailureCounted(t *testing.T) {
	metrics := &captureMetricsRecorder{}
	h, err := newHarness(withServiceOptions(WithMetricsRecorder(metrics)))
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	h.stats.raiseErr = errors.New("stats down")
	if _, err := h.svc.HandleNotification(context.Background(), ipnBody(nil)); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	failure := findCounter(metrics.counters, MetricEffectFailures)
	if failure == nil || failure.tags["effect"] != string(EffectRaisedAmount) {
		t.Fatalf("expected effect failure counter, got %+v", failure)
	}
}

func TestServiceObservability_FailureLogsError(t *testing.T) {
	logger := newCaptureLogger()
	metrics := &captureMetricsRecorder{}
	h, err := newHarness(
		withSelectError(ErrNoTransport),
		withServiceOptions(WithMetricsRecorder(metrics), WithLogger(logger), WithLoggerProvider(stubLoggerProvider{logger: logger})),
	)
	if err != nil {
		t.Fatalf("new harness: %v", err)
	}
	if _, err := h.svc.HandleNotification(context.Background(), ipnBody(nil)); err == nil {
		t.Fatalf("expected failure")
	}
	if !hasCounter(metrics.counters, "donations.handle_notification.total", "failure") {
		t.Fatalf("expected failure counter")
	}
	for _, record := range logger.snapshot() {
		if record.level == "error" && record.msg == "handle_notification failed" {
			return
		}
	}
	t.Fatalf("expected error log record")
}

func TestServiceAudit_FallsBackToLogger(t *testing.T) {
	logger := newCaptureLogger()
	svc, err := NewService(DefaultConfig(), WithLogger(logger), WithLoggerProvider(stubLoggerProvider{logger: logger}))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.audit(context.Background(), AuditEntry{Message: "DEBUG INVALID", IsError: true, Context: map[string]any{"txn_id": "T1"}})
	records := logger.snapshot()
	if len(records) != 1 || records[0].level != "error" || records[0].fields["audit"] != true {
		t.Fatalf("expected audit entry on the service logger, got %+v", records)
	}
}

func TestFlattenFields_SortsKeys(t *testing.T) {
	args := FlattenFields(map[string]any{"b": 2, "a": 1})
	if len(args) != 4 || args[0] != "a" || args[2] != "b" {
		t.Fatalf("expected sorted key/value pairs, got %v", args)
	}
	if FlattenFields(nil) != nil {
		t.Fatalf("expected nil for empty fields")
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func findCounter(items []capturedCounter, name string) *capturedCounter {
	for index := range items {
		if items[index].name == name {
			return &items[index]
		}
	}
	return nil
}
