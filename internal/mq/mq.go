package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cafe-inventory/server/config"
	"github.com/cafe-inventory/server/types"
)

// EventTransactionRecorded is the event type attribute of stock events.
const EventTransactionRecorded = "stock.transaction.recorded"

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// MQ binds a backend to the configured stock events topic.
type MQ struct {
	backend Backend
	topic   string
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend, topic string) *MQ {
	return &MQ{backend: backend, topic: topic}
}

// Open builds the backend selected by cfg.Backend. It returns nil, nil
// when event publishing is disabled.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	var (
		backend Backend
		err     error
	)
	switch cfg.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err = NewRabbitMQClient(cfg.RabbitMQ)
	case "pubsub":
		backend, err = NewPubSubClient(ctx, cfg.PubSub)
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Topic == "" {
		_ = backend.Close()
		return nil, errors.New("mq topic is required")
	}
	return New(backend, cfg.Topic), nil
}

// TransactionEvent is the JSON body of a stock event.
type TransactionEvent struct {
	LogID      int          `json:"log_id"`
	ProductID  int          `json:"product_id"`
	UserID     int          `json:"user_id"`
	Action     types.Action `json:"action"`
	Change     int          `json:"change"`
	Quantity   *int         `json:"quantity,omitempty"`
	Outcome    string       `json:"outcome"`
	RecordedAt time.Time    `json:"recorded_at"`
}

// PublishTransaction announces a committed stock transaction.
func (m *MQ) PublishTransaction(ctx context.Context, result types.TransactionResult) (string, error) {
	event := TransactionEvent{
		LogID:      result.Log.ID,
		ProductID:  result.Log.ProductID,
		UserID:     result.Log.UserID,
		Action:     result.Log.Action,
		Change:     result.Log.Change,
		Outcome:    result.Outcome(),
		RecordedAt: result.Log.Timestamp,
	}
	if result.Stock != nil {
		qty := result.Stock.Quantity
		event.Quantity = &qty
	}

	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	attrs := map[string]string{
		"event":      EventTransactionRecorded,
		"product_id": strconv.Itoa(event.ProductID),
	}
	return m.backend.Publish(ctx, m.topic, data, attrs)
}

// Watch consumes stock events until ctx is cancelled.
func (m *MQ) Watch(ctx context.Context, handler func(ctx context.Context, event TransactionEvent) error) error {
	return m.backend.Subscribe(ctx, m.topic, func(ctx context.Context, msg Message) error {
		var event TransactionEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			// Malformed payloads would be redelivered forever; drop them.
			return nil
		}
		return handler(ctx, event)
	})
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
