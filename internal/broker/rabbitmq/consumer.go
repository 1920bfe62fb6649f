package rabbitmq

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// HandlerFunc processes one message body. A non-nil error triggers the retry policy.
type HandlerFunc func(ctx context.Context, routingKey string, body []byte) error

// DeadLetterSink archives messages whose retries are exhausted.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, letter messages.DeadLetter) error
}

type registrar interface {
	Register(name string, fn Setup) error
	QueueArgs() amqp.Table
	HasDeadLetterExchange() bool
	Exchange() string
}

// Consumer binds durable queues to the exchange and processes each queue strictly
// one message at a time.
type Consumer struct {
	reg    registrar
	policy RetryPolicy
	sink   DeadLetterSink
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time

	consumed     atomic.Int64
	acked        atomic.Int64
	nacked       atomic.Int64
	retries      atomic.Int64
	deadLettered atomic.Int64
	dropped      atomic.Int64
}

func NewConsumer(reg registrar, policy RetryPolicy, sink DeadLetterSink) *Consumer {
	return &Consumer{
		reg:    reg,
		policy: policy.withDefaults(),
		sink:   sink,
		sleep:  sleepCtx,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe declares queue (durable), binds it with routingKey and starts consuming on
// every (re)connect.
func (c *Consumer) Subscribe(queue, routingKey string, h HandlerFunc) error {
	return c.reg.Register(queue, func(ctx context.Context, ch Channel) error {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, c.reg.QueueArgs()); err != nil {
			return errors.Wrapf(err, "declare queue %s", queue)
		}
		if err := ch.QueueBind(queue, routingKey, c.reg.Exchange(), false, nil); err != nil {
			return errors.Wrapf(err, "bind queue %s to %s", queue, routingKey)
		}
		// prefetch 1: следующий message не придёт, пока текущий не ack/nack.
		if err := ch.Qos(1, 0, false); err != nil {
			return errors.Wrap(err, "set qos")
		}
		deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
		if err != nil {
			return errors.Wrapf(err, "consume %s", queue)
		}

		slog.Info("consumer started", "queue", queue, "routing_key", routingKey)
		go c.run(ctx, queue, deliveries, h)
		return nil
	})
}

func (c *Consumer) run(ctx context.Context, queue string, deliveries <-chan amqp.Delivery, h HandlerFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				slog.Warn("consumer stopped: deliveries channel closed", "queue", queue)
				return
			}
			c.process(ctx, queue, d, h)
		}
	}
}

// process runs the handler with bounded retries. The queue is blocked for the whole
// backoff: ordering within a queue is kept at the cost of throughput.
func (c *Consumer) process(ctx context.Context, queue string, d amqp.Delivery, h HandlerFunc) {
	c.consumed.Add(1)

	retries := 0
	for {
		err := h(ctx, d.RoutingKey, d.Body)
		if err == nil {
			if ackErr := d.Ack(false); ackErr != nil {
				slog.Error("ack failed", "queue", queue, "routing_key", d.RoutingKey, "error", ackErr.Error())
				return
			}
			c.acked.Add(1)
			return
		}

		retries++
		herr := &HandlerError{Queue: queue, RoutingKey: d.RoutingKey, Attempt: retries, Err: err}

		if !c.policy.ShouldRetry(retries) {
			c.giveUp(ctx, queue, d, herr)
			return
		}

		delay := c.policy.Delay(retries)
		c.retries.Add(1)
		slog.Warn("handler failed, retrying", "queue", queue, "routing_key", d.RoutingKey,
			"attempt", retries, "retry_in", delay.String(), "error", err.Error())

		if err := c.sleep(ctx, delay); err != nil {
			// Останавливаемся: сообщение остаётся unacked, брокер отдаст его снова.
			slog.Warn("retry interrupted by shutdown", "queue", queue, "routing_key", d.RoutingKey)
			return
		}
	}
}

func (c *Consumer) giveUp(ctx context.Context, queue string, d amqp.Delivery, herr *HandlerError) {
	archived := false
	if c.sink != nil {
		err := c.sink.DeadLetter(ctx, messages.DeadLetter{
			Queue:      queue,
			RoutingKey: d.RoutingKey,
			Body:       d.Body,
			Error:      herr.Err.Error(),
			Attempts:   herr.Attempt,
			FailedAt:   c.now(),
		})
		if err != nil {
			slog.Error("dead-letter archive failed", "queue", queue, "routing_key", d.RoutingKey, "error", err.Error())
		} else {
			archived = true
		}
	}

	if err := d.Nack(false, false); err != nil {
		slog.Error("nack failed", "queue", queue, "routing_key", d.RoutingKey, "error", err.Error())
		return
	}
	c.nacked.Add(1)

	if archived || c.reg.HasDeadLetterExchange() {
		c.deadLettered.Add(1)
		slog.Error("message dead-lettered", "queue", queue, "routing_key", d.RoutingKey,
			"attempts", herr.Attempt, "error", herr.Error())
		return
	}

	// Ни DLX, ни архива: брокер выбросит сообщение. Это потеря данных, логируем явно.
	c.dropped.Add(1)
	slog.Error("message dropped: retries exhausted and no dead-letter destination configured",
		"queue", queue, "routing_key", d.RoutingKey, "attempts", herr.Attempt,
		"payload", string(d.Body), "error", herr.Error())
}

type ConsumerStats struct {
	Consumed     int64 `json:"consumed"`
	Acked        int64 `json:"acked"`
	Nacked       int64 `json:"nacked"`
	Retries      int64 `json:"retries"`
	DeadLettered int64 `json:"deadLettered"`
	Dropped      int64 `json:"dropped"`
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Consumed:     c.consumed.Load(),
		Acked:        c.acked.Load(),
		Nacked:       c.nacked.Load(),
		Retries:      c.retries.Load(),
		DeadLettered: c.deadLettered.Load(),
		Dropped:      c.dropped.Load(),
	}
}
