package mq

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cafe-inventory/server/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQClient publishes stock events to a topic exchange named after the
// MQ topic. The "event" attribute is the routing key.
type RabbitMQClient struct {
	conn      *amqp.Connection
	durable   bool
	queue     string
	prefetch  int
	mu        sync.Mutex
	publisher *amqp.Channel
	declared  map[string]bool
}

func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("RABBITMQ_URL is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}

	return &RabbitMQClient{
		conn:      conn,
		durable:   cfg.Durable,
		queue:     strings.TrimSpace(cfg.Queue),
		prefetch:  cfg.PrefetchCount,
		publisher: ch,
		declared:  map[string]bool{},
	}, nil
}

// Publish sends one persistent JSON message. Calls are serialized because
// every request handler shares the publishing channel.
func (r *RabbitMQClient) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("rabbitmq topic is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.declared[topic] {
		if err := r.declareExchange(r.publisher, topic); err != nil {
			return "", err
		}
		r.declared[topic] = true
	}

	headers := make(amqp.Table, len(attrs))
	for key, value := range attrs {
		headers[key] = value
	}

	id := newMessageID()
	err := r.publisher.PublishWithContext(ctx, topic, routingKey(attrs), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		MessageId:    id,
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// Subscribe binds a queue to every event on topic and consumes it on its own
// channel until ctx is done. Without RABBITMQ_QUEUE each watcher gets an
// exclusive queue that disappears with it.
func (r *RabbitMQClient) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("rabbitmq topic is required")
	}

	ch, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	defer ch.Close()

	if r.prefetch > 0 {
		if err := ch.Qos(r.prefetch, 0, false); err != nil {
			return err
		}
	}
	if err := r.declareExchange(ch, topic); err != nil {
		return err
	}

	exclusive := r.queue == ""
	q, err := ch.QueueDeclare(r.queue, r.durable && !exclusive, exclusive, exclusive, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(q.Name, "#", topic, false, nil); err != nil {
		return err
	}

	tag := "cafe-watch-" + newMessageID()
	deliveries, err := ch.ConsumeWithContext(ctx, q.Name, tag, false, exclusive, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("rabbitmq delivery channel closed")
			}
			msg := Message{ID: d.MessageId, Data: d.Body, Attributes: headersToAttributes(d.Headers)}
			if err := handler(ctx, msg); err != nil {
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	_ = r.publisher.Close()
	return r.conn.Close()
}

func (r *RabbitMQClient) declareExchange(ch *amqp.Channel, name string) error {
	return ch.ExchangeDeclare(name, amqp.ExchangeTopic, r.durable, !r.durable, false, false, nil)
}

func routingKey(attrs map[string]string) string {
	if event := attrs["event"]; event != "" {
		return event
	}
	return "unknown"
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch v := value.(type) {
		case string:
			attrs[key] = v
		case []byte:
			attrs[key] = string(v)
		default:
			attrs[key] = fmt.Sprint(v)
		}
	}
	return attrs
}

func newMessageID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return ""
	}
	return hex.EncodeToString(buf[:])
}
