// Package audit records pipeline events in the service log and, when
// enabled, in the audit store.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-donations/core"
)

// Gate decides per entry whether persistence is enabled.
type Gate func(ctx context.Context) bool

type Logger struct {
	store  core.AuditStore
	gate   Gate
	logger core.Logger
	clock  func() time.Time
}

type Option func(*Logger)

func WithLogger(logger core.Logger) Option {
	return func(l *Logger) {
		l.logger = logger
	}
}

func WithGate(gate Gate) Option {
	return func(l *Logger) {
		l.gate = gate
	}
}

// WithSettings gates persistence on the ipn_logging setting.
func WithSettings(settings *core.SettingsResolver) Option {
	return func(l *Logger) {
		if settings == nil {
			return
		}
		l.gate = func(ctx context.Context) bool {
			return settings.Bool(ctx, core.SettingIPNLogging)
		}
	}
}

func WithClock(clock func() time.Time) Option {
	return func(l *Logger) {
		l.clock = clock
	}
}

func New(store core.AuditStore, opts ...Option) *Logger {
	logger := &Logger{store: store, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(logger)
		}
	}
	logger.logger = glog.Ensure(logger.logger)
	if logger.clock == nil {
		logger.clock = time.Now
	}
	return logger
}

// Log writes entry to the service log. Entries flagged Persist are also
// appended to the store while the gate allows it.
func (l *Logger) Log(ctx context.Context, entry core.AuditEntry) {
	if l == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.clock().UTC()
	}

	args := core.FlattenFields(entry.Context)
	if entry.IsError {
		l.logger.Error(entry.Message, args...)
	} else {
		l.logger.Info(entry.Message, args...)
	}

	if !entry.Persist || l.store == nil {
		return
	}
	if l.gate != nil && !l.gate(ctx) {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := l.store.AppendAudit(ctx, entry); err != nil {
		l.logger.Error("persist audit entry failed", "message", entry.Message, "error", err.Error())
	}
}

// Recent returns the newest stored entries first.
func (l *Logger) Recent(ctx context.Context, limit int) ([]core.AuditEntry, error) {
	if l == nil || l.store == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return l.store.ListAudit(ctx, limit)
}

var _ core.AuditLogger = (*Logger)(nil)
