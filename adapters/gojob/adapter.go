package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-donations/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDNotificationDeliver = "donations.notification.deliver"

	dedupPolicyDrop = "drop"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// ToExecutionMessage maps a notification into a go-job message. The
// idempotency key pairs the kind with the transaction so a redelivered
// notification for the same record is dropped by deduplicating queues.
func ToExecutionMessage(notification core.Notification) *job.ExecutionMessage {
	params := map[string]any{
		"kind":           string(notification.Kind),
		"transaction_id": strings.TrimSpace(notification.TransactionID),
		"txn_id":         strings.TrimSpace(notification.TxnID),
		"user_id":        notification.UserID,
		"username":       notification.Username,
		"payload":        copyAnyMap(notification.Payload),
	}
	if !notification.CreatedAt.IsZero() {
		params["created_at"] = notification.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return &job.ExecutionMessage{
		JobID:          JobIDNotificationDeliver,
		ScriptPath:     JobIDNotificationDeliver,
		Parameters:     params,
		IdempotencyKey: idempotencyKey(notification),
		DedupPolicy:    job.DeduplicationPolicy(dedupPolicyDrop),
	}
}

// FromExecutionMessage maps a go-job message back into a notification.
func FromExecutionMessage(msg *job.ExecutionMessage) (core.Notification, error) {
	if msg == nil {
		return core.Notification{}, fmt.Errorf("gojob: execution message is required")
	}
	if strings.TrimSpace(msg.JobID) != JobIDNotificationDeliver {
		return core.Notification{}, fmt.Errorf("gojob: unsupported job id %q", msg.JobID)
	}
	params := msg.Parameters
	kind := stringParam(params, "kind")
	if kind == "" {
		return core.Notification{}, fmt.Errorf("gojob: notification kind is required")
	}
	out := core.Notification{
		Kind:          core.NotificationKind(kind),
		TransactionID: stringParam(params, "transaction_id"),
		TxnID:         stringParam(params, "txn_id"),
		UserID:        int64Param(params, "user_id"),
		Username:      stringParam(params, "username"),
	}
	if payload, ok := params["payload"].(map[string]any); ok {
		out.Payload = copyAnyMap(payload)
	}
	if raw := stringParam(params, "created_at"); raw != "" {
		if createdAt, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			out.CreatedAt = createdAt
		}
	}
	return out, nil
}

// NotificationEnqueuer is a core.Notifier that defers delivery to a job queue.
type NotificationEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewNotificationEnqueuer(enqueuer queue.Enqueuer) *NotificationEnqueuer {
	return &NotificationEnqueuer{enqueuer: enqueuer}
}

func (a *NotificationEnqueuer) Notify(ctx context.Context, notification core.Notification) error {
	if a == nil || a.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return a.enqueuer.Enqueue(ctx, ToExecutionMessage(notification))
}

// DeliveryWorker drains queued notifications into a sink.
type DeliveryWorker struct {
	dequeuer queue.Dequeuer
	sink     core.Notifier
	policy   RetryPolicy
	hook     worker.Hook
	retry    time.Duration

	mu       sync.Mutex
	attempts map[string]int
}

type WorkerOption func(*DeliveryWorker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *DeliveryWorker) {
		w.policy = policy
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *DeliveryWorker) {
		w.hook = hook
	}
}

// WithRetryDelay sets the delay requested when a delivery is nacked.
func WithRetryDelay(delay time.Duration) WorkerOption {
	return func(w *DeliveryWorker) {
		w.retry = delay
	}
}

func NewDeliveryWorker(dequeuer queue.Dequeuer, sink core.Notifier, opts ...WorkerOption) *DeliveryWorker {
	w := &DeliveryWorker{
		dequeuer: dequeuer,
		sink:     sink,
		policy:   RetryPolicy{MaxAttempts: 5, MaxDelay: time.Minute, DeadLetterOnMax: true},
		retry:    5 * time.Second,
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// ProcessNext dequeues one delivery and hands it to the sink. Sink failures
// are nacked under the retry policy and are not returned; only queue errors
// are.
func (w *DeliveryWorker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.sink == nil {
		return fmt.Errorf("gojob: delivery worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	event := worker.Event{Message: msg, Delivery: delivery, Attempt: attempt, StartedAt: time.Now().UTC()}
	w.onStart(ctx, event)

	notification, err := FromExecutionMessage(msg)
	if err != nil {
		event.Err = err
		event.Duration = time.Since(event.StartedAt)
		w.onFailure(ctx, event)
		w.forget(key)
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: err.Error()})
	}

	if err := w.sink.Notify(ctx, notification); err != nil {
		opts := w.policy.NormalizeAttempt(queue.NackOptions{
			Delay:   w.retry,
			Requeue: true,
			Reason:  err.Error(),
		}, attempt)
		event.Err = err
		event.Delay = opts.Delay
		event.Duration = time.Since(event.StartedAt)
		if opts.Requeue {
			w.onRetry(ctx, event)
		} else {
			w.onFailure(ctx, event)
			w.forget(key)
		}
		return delivery.Nack(ctx, opts)
	}

	event.Duration = time.Since(event.StartedAt)
	w.onSuccess(ctx, event)
	w.forget(key)
	return delivery.Ack(ctx)
}

// Run processes deliveries until ctx is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	for {
		if err := w.ProcessNext(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (w *DeliveryWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *DeliveryWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *DeliveryWorker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *DeliveryWorker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *DeliveryWorker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *DeliveryWorker) onRetry(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

// LoggingHook reports worker events through glog.
type LoggingHook struct {
	logger core.Logger
}

func NewLoggingHook(logger core.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx, "debug", "notification delivery started", event)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx, "info", "notification delivered", event)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx, "error", "notification delivery failed", event)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx, "warn", "notification delivery will retry", event)
}

func (h *LoggingHook) log(ctx context.Context, level string, msg string, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	logger := h.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if event.Message != nil {
		args = append(args, "job_id", event.Message.JobID, "idempotency_key", event.Message.IdempotencyKey)
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	switch level {
	case "error":
		logger.Error(msg, args...)
	case "warn":
		logger.Warn(msg, args...)
	case "info":
		logger.Info(msg, args...)
	default:
		logger.Debug(msg, args...)
	}
}

// MemoryQueue is an in-process queue for single-node deployments.
type MemoryQueue struct {
	items chan *job.ExecutionMessage

	mu         sync.Mutex
	seen       map[string]struct{}
	deadLetter []*job.ExecutionMessage
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryQueue{
		items: make(chan *job.ExecutionMessage, capacity),
		seen:  map[string]struct{}{},
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("gojob: memory queue is nil")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key != "" && string(msg.DedupPolicy) == dedupPolicyDrop {
		q.mu.Lock()
		if _, ok := q.seen[key]; ok {
			q.mu.Unlock()
			return nil
		}
		q.seen[key] = struct{}{}
		q.mu.Unlock()
	}
	select {
	case q.items <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("gojob: memory queue is nil")
	}
	select {
	case msg := <-q.items:
		return &memoryDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DeadLetters returns the messages that exhausted their retries.
func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.deadLetter...)
}

func (q *MemoryQueue) requeue(msg *job.ExecutionMessage, delay time.Duration) {
	if delay <= 0 {
		go func() { q.items <- msg }()
		return
	}
	time.AfterFunc(delay, func() {
		q.items <- msg
	})
}

func (q *MemoryQueue) bury(msg *job.ExecutionMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetter = append(q.deadLetter, msg)
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
	done  bool
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	if d.done {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.done = true
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	if d.done {
		return fmt.Errorf("gojob: delivery already settled")
	}
	d.done = true
	if opts.DeadLetter {
		d.queue.bury(d.msg)
		return nil
	}
	if opts.Requeue {
		d.queue.requeue(d.msg, opts.Delay)
	}
	return nil
}

func idempotencyKey(notification core.Notification) string {
	ref := strings.TrimSpace(notification.TransactionID)
	if ref == "" {
		ref = strings.TrimSpace(notification.TxnID)
	}
	if ref == "" {
		return ""
	}
	return string(notification.Kind) + ":" + ref
}

func attemptKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return fmt.Sprintf("%p", msg)
}

func stringParam(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if typed, ok := value.(string); ok {
		return strings.TrimSpace(typed)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func int64Param(params map[string]any, key string) int64 {
	switch typed := params[key].(type) {
	case int64:
		return typed
	case int:
		return int64(typed)
	case float64:
		return int64(typed)
	case string:
		parsed, _ := strconv.ParseInt(strings.TrimSpace(typed), 10, 64)
		return parsed
	default:
		return 0
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ core.Notifier  = (*NotificationEnqueuer)(nil)
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
	_ worker.Hook    = (*LoggingHook)(nil)
)
