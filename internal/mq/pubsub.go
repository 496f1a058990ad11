package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/cafe-inventory/server/config"
	"google.golang.org/api/option"
)

// PubSubClient publishes stock events to a Google Cloud Pub/Sub topic.
// Events of one product share an ordering key so subscribers see them in
// commit order.
type PubSubClient struct {
	client *pubsub.Client
	suffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID is required")
	}

	var opts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		opts = append(opts, option.WithCredentialsFile(path))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{client: client, suffix: suffix, topics: map[string]*pubsub.Topic{}}, nil
}

func (p *PubSubClient) Publish(ctx context.Context, topic string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(topic) == "" {
		return "", errors.New("pubsub topic is required")
	}

	t, err := p.topic(ctx, topic)
	if err != nil {
		return "", err
	}

	key := attrs["product_id"]
	id, err := t.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs, OrderingKey: key}).Get(ctx)
	if err != nil && key != "" {
		// A failed ordered publish pauses the key until resumed.
		t.ResumePublish(key)
	}
	return id, err
}

// Subscribe receives events through the subscription named topic+suffix,
// creating it with ordering enabled on first use.
func (p *PubSubClient) Subscribe(ctx context.Context, topic string, handler Handler) error {
	if strings.TrimSpace(topic) == "" {
		return errors.New("pubsub topic is required")
	}

	t, err := p.topic(ctx, topic)
	if err != nil {
		return err
	}

	sub := p.client.Subscription(topic + p.suffix)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		sub, err = p.client.CreateSubscription(ctx, topic+p.suffix, pubsub.SubscriptionConfig{
			Topic:                 t,
			EnableMessageOrdering: true,
		})
		if err != nil {
			return err
		}
	}

	return sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		if err := handler(ctx, Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes}); err != nil {
			m.Nack()
			return
		}
		m.Ack()
	})
}

func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.mu.Unlock()
	return p.client.Close()
}

// topic returns the cached handle for name, creating the topic if needed.
func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.topics[name]; ok {
		return t, nil
	}

	t := p.client.Topic(name)
	exists, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if t, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	t.EnableMessageOrdering = true
	p.topics[name] = t
	return t, nil
}
