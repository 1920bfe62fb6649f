package rabbitmq

import (
	"context"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

type declaredExchange struct {
	name    string
	kind    string
	durable bool
}

type declaredQueue struct {
	name    string
	durable bool
	args    amqp.Table
}

type binding struct {
	queue, key, exchange string
}

type fakeChannel struct {
	mu         sync.Mutex
	exchanges  []declaredExchange
	queues     []declaredQueue
	bindings   []binding
	qos        []int
	consumes   []string
	autoAck    []bool
	published  []amqp.Publishing
	keys       []string
	publishErr error
	deliveries chan amqp.Delivery
	notify     []chan *amqp.Error
	closed     bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exchanges = append(c.exchanges, declaredExchange{name: name, kind: kind, durable: durable})
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queues = append(c.queues, declaredQueue{name: name, durable: durable, args: args})
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings = append(c.bindings, binding{queue: name, key: key, exchange: exchange})
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = append(c.qos, prefetchCount)
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumes = append(c.consumes, queue)
	c.autoAck = append(c.autoAck, autoAck)
	return c.deliveries, nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.keys = append(c.keys, exchange+"/"+key)
	c.published = append(c.published, msg)
	return nil
}

func (c *fakeChannel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for _, n := range c.notify {
		close(n)
	}
	c.notify = nil
	close(c.deliveries)
	return nil
}

// fail simulates a broker-side channel exception.
func (c *fakeChannel) fail(err *amqp.Error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	notify := c.notify
	c.notify = nil
	c.mu.Unlock()

	for _, n := range notify {
		n <- err
		close(n)
	}
	close(c.deliveries)
}

func (c *fakeChannel) exchangeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.exchanges)
}

type fakeConnection struct {
	mu     sync.Mutex
	ch     *fakeChannel
	notify []chan *amqp.Error
	closed bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	return c.ch, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = append(c.notify, receiver)
	return receiver
}

// drop simulates the broker killing the connection.
func (c *fakeConnection) drop() {
	c.mu.Lock()
	notify := c.notify
	c.notify = nil
	c.closed = true
	c.mu.Unlock()

	c.ch.fail(amqp.ErrClosed)
	for _, n := range notify {
		n <- amqp.ErrClosed
		close(n)
	}
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return amqp.ErrClosed
	}
	c.closed = true
	notify := c.notify
	c.notify = nil
	c.mu.Unlock()

	for _, n := range notify {
		close(n)
	}
	return c.ch.Close()
}

type fakeDialer struct {
	mu      sync.Mutex
	failFor int
	dials   int
	conns   []*fakeConnection

	// gate, when set, holds every dial until it is closed; entered gets a value per held dial.
	gate    chan struct{}
	entered chan struct{}
}

func (d *fakeDialer) hold() {
	d.mu.Lock()
	d.gate = make(chan struct{})
	d.entered = make(chan struct{}, 16)
	d.mu.Unlock()
}

func (d *fakeDialer) Dial(uri string) (Connection, error) {
	d.mu.Lock()
	gate, entered := d.gate, d.entered
	d.mu.Unlock()
	if gate != nil {
		entered <- struct{}{}
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.dials <= d.failFor {
		return nil, errors.New("connection refused")
	}
	conn := &fakeConnection{ch: newFakeChannel()}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) connCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

type fakeAcker struct {
	mu       sync.Mutex
	acks     int
	nacks    int
	requeues []bool
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks++
	return nil
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks++
	a.requeues = append(a.requeues, requeue)
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcker) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.acks, a.nacks
}
