package rabbitmq

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

type channelSource interface {
	Channel() (Channel, error)
}

// Publisher writes JSON events to the shared exchange. It does not wait for broker
// confirms: a nil error only means the client accepted the frame.
type Publisher struct {
	src      channelSource
	exchange string

	// Все публикации идут через один канал процесса.
	mu        sync.Mutex
	published atomic.Int64
}

func NewPublisher(src channelSource, exchange string) *Publisher {
	return &Publisher{src: src, exchange: exchange}
}

// Publish serializes message and publishes it persistently under routingKey.
// Before the channel exists it fails with ErrChannelNotInitialized without touching
// the network.
func (p *Publisher) Publish(ctx context.Context, routingKey string, message any) error {
	ch, err := p.src.Channel()
	if err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrapf(err, "marshal %s event", routingKey)
	}

	p.mu.Lock()
	err = ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	p.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, "rabbitmq publish")
	}

	p.published.Add(1)
	slog.Info("event published", "exchange", p.exchange, "routing_key", routingKey, "payload", string(body))
	return nil
}

func (p *Publisher) Published() int64 {
	return p.published.Load()
}
