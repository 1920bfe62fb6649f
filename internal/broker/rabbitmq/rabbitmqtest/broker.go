// Package rabbitmqtest is an in-memory topic broker for tests that need a connected
// rabbitmq.Bus without a real server.
package rabbitmqtest

import (
	"context"
	"sync"

	"github.com/BearBump/Packaroo/internal/broker/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Published struct {
	Exchange   string
	RoutingKey string
	Body       []byte
}

type binding struct {
	queue    string
	key      string
	exchange string
}

// Broker routes by exact routing key, or by "#" which matches everything.
type Broker struct {
	mu        sync.Mutex
	exchanges map[string]string
	queues    map[string]*queue
	bindings  []binding
	published []Published
	conns     []*connection
	dials     int
	dialErr   error
}

func NewBroker() *Broker {
	return &Broker{
		exchanges: map[string]string{},
		queues:    map[string]*queue{},
	}
}

// Dial is a rabbitmq.Dialer.
func (b *Broker) Dial(string) (rabbitmq.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.dialErr != nil {
		return nil, b.dialErr
	}
	c := &connection{b: b}
	b.conns = append(b.conns, c)
	return c, nil
}

// FailDials makes every following Dial return err; nil restores it.
func (b *Broker) FailDials(err error) {
	b.mu.Lock()
	b.dialErr = err
	b.mu.Unlock()
}

func (b *Broker) Dials() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

// DropConnections simulates the server closing every open connection.
func (b *Broker) DropConnections() {
	b.mu.Lock()
	conns := b.conns
	b.conns = nil
	b.mu.Unlock()
	for _, c := range conns {
		c.drop()
	}
}

func (b *Broker) Published() []Published {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Published, len(b.published))
	copy(out, b.published)
	return out
}

// PublishedWith returns published messages having routingKey.
func (b *Broker) PublishedWith(routingKey string) []Published {
	var out []Published
	for _, p := range b.Published() {
		if p.RoutingKey == routingKey {
			out = append(out, p)
		}
	}
	return out
}

func (b *Broker) HasQueue(name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.queues[name]
	return ok
}

// Acks returns how many messages on the queue were acked and nacked.
func (b *Broker) Acks(name string) (acked, nacked int) {
	b.mu.Lock()
	q, ok := b.queues[name]
	b.mu.Unlock()
	if !ok {
		return 0, 0
	}
	return q.counts()
}

func (b *Broker) publish(exchange, key string, msg amqp.Publishing) {
	b.mu.Lock()
	b.published = append(b.published, Published{Exchange: exchange, RoutingKey: key, Body: msg.Body})
	var targets []*queue
	for _, bd := range b.bindings {
		if bd.exchange == exchange && (bd.key == key || bd.key == "#") {
			targets = append(targets, b.queues[bd.queue])
		}
	}
	b.mu.Unlock()

	for _, q := range targets {
		q.push(amqp.Delivery{
			Exchange:     exchange,
			RoutingKey:   key,
			ContentType:  msg.ContentType,
			DeliveryMode: msg.DeliveryMode,
			Body:         msg.Body,
		})
	}
}

type queue struct {
	name string
	msgs chan amqp.Delivery

	mu     sync.Mutex
	tag    uint64
	acked  int
	nacked int
}

func (q *queue) push(d amqp.Delivery) {
	q.mu.Lock()
	q.tag++
	d.DeliveryTag = q.tag
	q.mu.Unlock()
	d.Acknowledger = q
	q.msgs <- d
}

func (q *queue) Ack(uint64, bool) error {
	q.mu.Lock()
	q.acked++
	q.mu.Unlock()
	return nil
}

func (q *queue) Nack(uint64, bool, bool) error {
	q.mu.Lock()
	q.nacked++
	q.mu.Unlock()
	return nil
}

func (q *queue) Reject(tag uint64, requeue bool) error {
	return q.Nack(tag, false, requeue)
}

func (q *queue) counts() (int, int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked, q.nacked
}

type connection struct {
	b *Broker

	mu     sync.Mutex
	ch     *channel
	notify []chan *amqp.Error
	closed bool
}

func (c *connection) Channel() (rabbitmq.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, amqp.ErrClosed
	}
	c.ch = &channel{b: c.b, done: make(chan struct{})}
	return c.ch, nil
}

func (c *connection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *connection) drop() {
	c.shutdown(amqp.ErrClosed)
}

func (c *connection) Close() error {
	if !c.shutdown(nil) {
		return amqp.ErrClosed
	}
	return nil
}

func (c *connection) shutdown(reason *amqp.Error) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.closed = true
	notify := c.notify
	c.notify = nil
	ch := c.ch
	c.mu.Unlock()

	if ch != nil {
		ch.shutdown(reason)
	}
	for _, n := range notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
	return true
}

type channel struct {
	b    *Broker
	done chan struct{}

	mu     sync.Mutex
	notify []chan *amqp.Error
	closed bool
}

var _ rabbitmq.Channel = (*channel)(nil)

func (c *channel) ExchangeDeclare(name, kind string, _, _, _, _ bool, _ amqp.Table) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	c.b.exchanges[name] = kind
	return nil
}

func (c *channel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	if _, ok := c.b.queues[name]; !ok {
		c.b.queues[name] = &queue{name: name, msgs: make(chan amqp.Delivery, 256)}
	}
	return amqp.Queue{Name: name}, nil
}

func (c *channel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	for _, bd := range c.b.bindings {
		if bd == (binding{queue: name, key: key, exchange: exchange}) {
			return nil
		}
	}
	c.b.bindings = append(c.b.bindings, binding{queue: name, key: key, exchange: exchange})
	return nil
}

func (c *channel) Qos(int, int, bool) error {
	return nil
}

func (c *channel) Consume(name, _ string, _, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.b.mu.Lock()
	q, ok := c.b.queues[name]
	c.b.mu.Unlock()
	if !ok {
		return nil, &amqp.Error{Code: amqp.NotFound, Reason: "no queue " + name}
	}

	// Доставки закрываются вместе с каналом; неподтверждённое сообщение возвращается в очередь.
	out := make(chan amqp.Delivery)
	go func() {
		defer close(out)
		for {
			select {
			case <-c.done:
				return
			case d := <-q.msgs:
				select {
				case out <- d:
				case <-c.done:
					q.msgs <- d
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *channel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return amqp.ErrClosed
	}
	c.b.publish(exchange, key, msg)
	return nil
}

func (c *channel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *channel) Close() error {
	c.shutdown(nil)
	return nil
}

func (c *channel) shutdown(reason *amqp.Error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	notify := c.notify
	c.notify = nil
	c.mu.Unlock()

	close(c.done)
	for _, n := range notify {
		if reason != nil {
			n <- reason
		}
		close(n)
	}
}
