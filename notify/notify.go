// Package notify delivers donation notifications to the configured sinks.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/segmentio/kafka-go"

	"github.com/goliatone/go-donations/core"
)

// Message is the wire form of a notification.
type Message struct {
	Kind          string         `json:"kind"`
	TransactionID string         `json:"transaction_id,omitempty"`
	TxnID         string         `json:"txn_id"`
	UserID        int64          `json:"user_id,omitempty"`
	Username      string         `json:"username,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

func NewMessage(notification core.Notification) Message {
	return Message{
		Kind:          string(notification.Kind),
		TransactionID: notification.TransactionID,
		TxnID:         notification.TxnID,
		UserID:        notification.UserID,
		Username:      notification.Username,
		Payload:       notification.Payload,
		CreatedAt:     notification.CreatedAt.UTC(),
	}
}

// LoggerSink writes notifications to the service log.
type LoggerSink struct {
	logger core.Logger
}

func NewLoggerSink(logger core.Logger) *LoggerSink {
	return &LoggerSink{logger: glog.Ensure(logger)}
}

func (s *LoggerSink) Notify(ctx context.Context, notification core.Notification) error {
	if s == nil {
		return fmt.Errorf("notify: logger sink is not configured")
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	fields := map[string]any{
		"kind":           string(notification.Kind),
		"transaction_id": notification.TransactionID,
		"txn_id":         notification.TxnID,
		"user_id":        notification.UserID,
	}
	for key, value := range notification.Payload {
		fields["payload."+key] = value
	}
	logger.Info("donation notification", core.FlattenFields(fields)...)
	return nil
}

// Producer is the subset of *kafka.Writer used by KafkaSink.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes notifications as JSON keyed by provider transaction id.
type KafkaSink struct {
	producer Producer
	topic    string
}

func NewKafkaSink(producer Producer, topic string) *KafkaSink {
	return &KafkaSink{producer: producer, topic: strings.TrimSpace(topic)}
}

// NewKafkaWriter builds a writer for brokers. The topic is set per message.
func NewKafkaWriter(brokers ...string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
	}
}

func (s *KafkaSink) Notify(ctx context.Context, notification core.Notification) error {
	if s == nil || s.producer == nil {
		return fmt.Errorf("notify: kafka sink is not configured")
	}
	if s.topic == "" {
		return fmt.Errorf("notify: kafka topic is required")
	}
	value, err := json.Marshal(NewMessage(notification))
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}
	msg := kafka.Message{
		Topic: s.topic,
		Key:   []byte(notification.TxnID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(notification.Kind)},
		},
	}
	if err := s.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("notify: publish %s: %w", notification.Kind, err)
	}
	return nil
}

// Fanout delivers to every sink and joins their failures.
type Fanout struct {
	sinks  []core.Notifier
	logger core.Logger
}

func NewFanout(logger core.Logger, sinks ...core.Notifier) *Fanout {
	filtered := make([]core.Notifier, 0, len(sinks))
	for _, sink := range sinks {
		if sink != nil {
			filtered = append(filtered, sink)
		}
	}
	return &Fanout{sinks: filtered, logger: glog.Ensure(logger)}
}

func (f *Fanout) Notify(ctx context.Context, notification core.Notification) error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, sink := range f.sinks {
		if err := sink.Notify(ctx, notification); err != nil {
			f.logger.Error("notification sink failed", "kind", string(notification.Kind), "txn_id", notification.TxnID, "error", err.Error())
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ core.Notifier = (*LoggerSink)(nil)
	_ core.Notifier = (*KafkaSink)(nil)
	_ core.Notifier = (*Fanout)(nil)
	_ Producer      = (*kafka.Writer)(nil)
)
