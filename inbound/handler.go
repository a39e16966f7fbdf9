package inbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-donations/core"
)

const (
	DefaultPath         = "/ipn"
	DefaultMaxBodyBytes = 64 << 10
)

type NotificationHandler interface {
	HandleNotification(ctx context.Context, body []byte) (core.Outcome, error)
}

type Handler struct {
	service  NotificationHandler
	logger   core.Logger
	path     string
	maxBytes int64
}

type Option func(*Handler)

func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		h.logger = glog.Ensure(logger)
	}
}

func WithPath(path string) Option {
	return func(h *Handler) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		h.path = path
	}
}

func WithMaxBodyBytes(limit int64) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBytes = limit
		}
	}
}

func NewHandler(service NotificationHandler, opts ...Option) *Handler {
	h := &Handler{
		service:  service,
		logger:   glog.Nop(),
		path:     DefaultPath,
		maxBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Handler) Path() string {
	if h == nil {
		return DefaultPath
	}
	return h.path
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post(h.Path(), h.ServeNotification)
	r.Get("/healthz", h.health)
	return r
}

// ServeNotification reads one notification and acknowledges it.
func (h *Handler) ServeNotification(w http.ResponseWriter, r *http.Request) {
	startedAt := time.Now()
	ctx := r.Context()
	logger := h.requestLogger(ctx)

	if h == nil || h.service == nil {
		err := inboundInternal("inbound: notification service is not configured", nil)
		logger.Error("notification endpoint unavailable", "error", err.Error())
		w.WriteHeader(StatusCode(err))
		return
	}

	body, err := h.readBody(w, r)
	if err != nil {
		status := StatusCode(err)
		logger.Warn("notification body rejected",
			"remote_addr", r.RemoteAddr,
			"status_code", status,
			"error", err.Error(),
		)
		w.WriteHeader(status)
		return
	}

	out, err := h.service.HandleNotification(ctx, body)
	status := StatusCode(err)
	args := []any{
		"remote_addr", r.RemoteAddr,
		"body_bytes", len(body),
		"status_code", status,
		"duration_ms", time.Since(startedAt).Milliseconds(),
	}
	if out.Transaction.TxnID != "" {
		args = append(args, "txn_id", out.Transaction.TxnID)
	}
	if out.Verdict != "" {
		args = append(args, "verdict", string(out.Verdict))
	}
	switch {
	case err == nil:
		logger.Info("notification processed", args...)
	case status == http.StatusOK:
		logger.Warn("notification discarded", append(args, "error", err.Error())...)
	default:
		logger.Error("notification failed", append(args, "error", err.Error())...)
	}
	w.WriteHeader(status)
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer func() { _ = r.Body.Close() }()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, inboundBodyTooLarge(h.maxBytes)
		}
		return nil, inboundReadFailed(err)
	}
	return body, nil
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) requestLogger(ctx context.Context) core.Logger {
	logger := glog.Nop()
	if h != nil && h.logger != nil {
		logger = h.logger
	}
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	return logger
}

var _ NotificationHandler = (*core.Service)(nil)
