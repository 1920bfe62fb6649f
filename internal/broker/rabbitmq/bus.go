package rabbitmq

import (
	"context"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
)

const DefaultReconnectDelay = 5 * time.Second

type Config struct {
	URI                string
	Exchange           string
	DeadLetterExchange string
	// Fixed pause between reconnect attempts; attempts are unbounded.
	ReconnectDelay time.Duration
	Retry          RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.Exchange == "" {
		c.Exchange = messages.Exchange
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	c.Retry = c.Retry.withDefaults()
	return c
}

// EventBus is what services depend on: publish events, subscribe queues.
type EventBus interface {
	Publish(ctx context.Context, routingKey string, message any) error
	Subscribe(queue, routingKey string, h HandlerFunc) error
}

type busOptions struct {
	dial Dialer
	sink DeadLetterSink
}

type Option func(*busOptions)

func WithDialer(d Dialer) Option {
	return func(o *busOptions) { o.dial = d }
}

// WithDeadLetterSink archives exhausted messages before they are nacked.
func WithDeadLetterSink(s DeadLetterSink) Option {
	return func(o *busOptions) { o.sink = s }
}

// Bus is the process-wide EventBus backed by one RabbitMQ connection and channel.
type Bus struct {
	cfg  Config
	mgr  *Manager
	pub  *Publisher
	cons *Consumer
}

var _ EventBus = (*Bus)(nil)

func NewBus(cfg Config, opts ...Option) *Bus {
	cfg = cfg.withDefaults()
	var o busOptions
	for _, opt := range opts {
		opt(&o)
	}

	mgr := NewManager(cfg, o.dial)
	return &Bus{
		cfg:  cfg,
		mgr:  mgr,
		pub:  NewPublisher(mgr, cfg.Exchange),
		cons: NewConsumer(mgr, cfg.Retry, o.sink),
	}
}

// Configured is false when no broker URI was given (messaging disabled).
func (b *Bus) Configured() bool {
	return b.cfg.URI != ""
}

// Connect opens the connection now and fails if the broker is unreachable.
func (b *Bus) Connect(ctx context.Context) error {
	_, err := b.mgr.Connect(ctx)
	return err
}

// Start is like Connect but keeps retrying in the background on failure.
func (b *Bus) Start(ctx context.Context) error {
	return b.mgr.Start(ctx)
}

func (b *Bus) Publish(ctx context.Context, routingKey string, message any) error {
	return b.pub.Publish(ctx, routingKey, message)
}

func (b *Bus) Subscribe(queue, routingKey string, h HandlerFunc) error {
	return b.cons.Subscribe(queue, routingKey, h)
}

// SubscribeKind binds queue to kind's routing key and dispatches decoded events to h.
func (b *Bus) SubscribeKind(queue string, kind messages.Kind, h messages.Handler) error {
	return b.Subscribe(queue, kind.RoutingKey(), func(ctx context.Context, routingKey string, body []byte) error {
		return messages.Dispatch(ctx, routingKey, body, h)
	})
}

func (b *Bus) Close() error {
	return b.mgr.Close()
}

type Stats struct {
	Enabled    bool            `json:"enabled"`
	Exchange   string          `json:"exchange"`
	Connection ConnectionStats `json:"connection"`
	Published  int64           `json:"published"`
	Consumer   ConsumerStats   `json:"consumer"`
}

func (b *Bus) Stats() Stats {
	return Stats{
		Enabled:    b.Configured(),
		Exchange:   b.cfg.Exchange,
		Connection: b.mgr.Stats(),
		Published:  b.pub.Published(),
		Consumer:   b.cons.Stats(),
	}
}
