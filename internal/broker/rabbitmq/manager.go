package rabbitmq

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Setup declares topology (queues, bindings, consumers) on a freshly opened channel.
// Registered setups run after the exchange is declared, on every (re)connect.
type Setup func(ctx context.Context, ch Channel) error

type namedSetup struct {
	name string
	fn   Setup
}

// Manager owns the single connection + channel of the process and keeps it alive.
//
// The context passed to the first Connect (or Start) bounds the manager's lifetime:
// consumers registered through Register run under it, and when it is cancelled the
// connection is closed and reconnects stop.
type Manager struct {
	uri                string
	exchange           string
	deadLetterExchange string
	reconnectDelay     time.Duration
	dial               Dialer

	mu           sync.Mutex
	ctx          context.Context
	conn         Connection
	ch           Channel
	setups       []namedSetup
	closed       bool
	reconnecting bool
	dialing      *connectAttempt
	lastError    string

	connects          atomic.Int64
	reconnectAttempts atomic.Int64
}

// connectAttempt is a dial in flight; concurrent Connect calls wait on done and share
// its result.
type connectAttempt struct {
	done chan struct{}
	ch   Channel
	err  error
}

func NewManager(cfg Config, dial Dialer) *Manager {
	cfg = cfg.withDefaults()
	if dial == nil {
		dial = DialAMQP
	}
	return &Manager{
		uri:                cfg.URI,
		exchange:           cfg.Exchange,
		deadLetterExchange: cfg.DeadLetterExchange,
		reconnectDelay:     cfg.ReconnectDelay,
		dial:               dial,
	}
}

// Connect returns the shared channel, opening the connection on first use.
// The dial runs without holding the manager lock, so Channel, Publish and Stats
// keep answering while the broker is slow to respond.
func (m *Manager) Connect(ctx context.Context) (Channel, error) {
	if m.uri == "" {
		return nil, ErrNotConfigured
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.ctx == nil {
		m.ctx = ctx
		if ctx.Done() != nil {
			go func() {
				<-ctx.Done()
				_ = m.Close()
			}()
		}
	}
	if m.ch != nil {
		ch := m.ch
		m.mu.Unlock()
		return ch, nil
	}
	if a := m.dialing; a != nil {
		m.mu.Unlock()
		select {
		case <-a.done:
			return a.ch, a.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	a := &connectAttempt{done: make(chan struct{})}
	m.dialing = a
	lifetime := m.lifetimeLocked()
	m.mu.Unlock()

	a.ch, a.err = m.connect(lifetime)
	close(a.done)
	return a.ch, a.err
}

// Start connects, and if the broker is unavailable keeps retrying in the background
// instead of failing.
func (m *Manager) Start(ctx context.Context) error {
	if m.uri == "" {
		return ErrNotConfigured
	}
	if _, err := m.Connect(ctx); err != nil {
		if errors.Is(err, ErrClosed) {
			return err
		}
		slog.Error("rabbitmq unavailable at startup, retrying in background",
			"error", err.Error(), "retry_in", m.reconnectDelay.String())
		m.scheduleReconnect()
	}
	return nil
}

// connect dials and prepares a channel outside the lock, then installs it. Setups
// registered while the dial was in flight are applied before the install.
func (m *Manager) connect(lifetime context.Context) (Channel, error) {
	conn, err := m.dial(m.uri)
	if err != nil {
		return nil, m.failConnect(nil, err.Error(), errors.Wrapf(ErrConnection, "dial: %v", err))
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, m.failConnect(conn, err.Error(), errors.Wrapf(ErrConnection, "open channel: %v", err))
	}

	if err := m.declareTopology(ch); err != nil {
		return nil, m.failConnect(conn, err.Error(), err)
	}

	connNotify := conn.NotifyClose(make(chan *amqp.Error, 1))
	chNotify := ch.NotifyClose(make(chan *amqp.Error, 1))

	applied := 0
	for {
		m.mu.Lock()
		if m.closed {
			m.dialing = nil
			m.mu.Unlock()
			_ = conn.Close()
			return nil, ErrClosed
		}
		pending := append([]namedSetup(nil), m.setups[applied:]...)
		if len(pending) == 0 {
			break
		}
		m.mu.Unlock()

		for _, st := range pending {
			if err := st.fn(lifetime, ch); err != nil {
				return nil, m.failConnect(conn, err.Error(), errors.Wrapf(err, "setup %s", st.name))
			}
		}
		applied += len(pending)
	}

	m.conn = conn
	m.ch = ch
	m.dialing = nil
	m.lastError = ""
	m.connects.Add(1)
	m.mu.Unlock()

	go m.watch(conn, connNotify, chNotify)

	slog.Info("rabbitmq connected", "exchange", m.exchange, "setups", applied)
	return ch, nil
}

func (m *Manager) failConnect(conn Connection, reason string, err error) error {
	if conn != nil {
		_ = conn.Close()
	}
	m.mu.Lock()
	m.dialing = nil
	m.lastError = reason
	m.mu.Unlock()
	return err
}

func (m *Manager) declareTopology(ch Channel) error {
	if err := ch.ExchangeDeclare(m.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return errors.Wrapf(ErrConnection, "declare exchange %s: %v", m.exchange, err)
	}
	if m.deadLetterExchange == "" {
		return nil
	}

	dlq := m.deadLetterExchange + ".queue"
	if err := ch.ExchangeDeclare(m.deadLetterExchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return errors.Wrapf(ErrConnection, "declare dead-letter exchange %s: %v", m.deadLetterExchange, err)
	}
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return errors.Wrapf(ErrConnection, "declare dead-letter queue %s: %v", dlq, err)
	}
	if err := ch.QueueBind(dlq, "#", m.deadLetterExchange, false, nil); err != nil {
		return errors.Wrapf(ErrConnection, "bind dead-letter queue %s: %v", dlq, err)
	}
	return nil
}

// watch waits for the connection or the channel to die. A nil error means we closed
// it ourselves.
func (m *Manager) watch(conn Connection, connNotify, chNotify chan *amqp.Error) {
	var amqpErr *amqp.Error
	select {
	case amqpErr = <-connNotify:
	case amqpErr = <-chNotify:
		if amqpErr == nil {
			amqpErr = <-connNotify
		}
	}
	if amqpErr == nil {
		return
	}

	slog.Error("rabbitmq connection lost", "error", amqpErr.Error(), "reconnect_in", m.reconnectDelay.String())

	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
		m.ch = nil
		m.lastError = amqpErr.Error()
	}
	m.mu.Unlock()

	_ = conn.Close()
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closed || m.reconnecting {
		m.mu.Unlock()
		return
	}
	m.reconnecting = true
	m.mu.Unlock()

	go m.reconnectLoop()
}

// reconnectLoop retries forever at a fixed interval; there is no backoff growth here.
func (m *Manager) reconnectLoop() {
	m.mu.Lock()
	ctx := m.lifetimeLocked()
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			m.stopReconnecting()
			return
		case <-time.After(m.reconnectDelay):
		}

		m.reconnectAttempts.Add(1)
		if _, err := m.Connect(ctx); err != nil {
			if errors.Is(err, ErrClosed) {
				m.stopReconnecting()
				return
			}
			slog.Error("rabbitmq reconnect failed", "error", err.Error(), "retry_in", m.reconnectDelay.String())
			continue
		}

		m.mu.Lock()
		// Соединение могло снова упасть, пока мы держали флаг: тогда крутимся дальше.
		if m.ch != nil || m.closed {
			m.reconnecting = false
			m.mu.Unlock()
			slog.Info("rabbitmq reconnected", "attempts", m.reconnectAttempts.Load())
			return
		}
		m.mu.Unlock()
	}
}

func (m *Manager) stopReconnecting() {
	m.mu.Lock()
	m.reconnecting = false
	m.mu.Unlock()
}

func (m *Manager) lifetimeLocked() context.Context {
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}

// Register adds a setup that runs on every (re)connect. If the manager is already
// connected, the setup also runs right away on the current channel.
func (m *Manager) Register(name string, fn Setup) error {
	m.mu.Lock()
	m.setups = append(m.setups, namedSetup{name: name, fn: fn})
	ch := m.ch
	lifetime := m.lifetimeLocked()
	m.mu.Unlock()

	// Без канала setup подхватит ближайший (пере)коннект, в том числе уже идущий.
	if ch == nil {
		return nil
	}
	if err := fn(lifetime, ch); err != nil {
		return errors.Wrapf(err, "setup %s", name)
	}
	return nil
}

// Channel returns the current channel or ErrChannelNotInitialized. It never dials.
func (m *Manager) Channel() (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ch == nil {
		return nil, ErrChannelNotInitialized
	}
	return m.ch, nil
}

// QueueArgs returns the arguments consumer queues are declared with.
func (m *Manager) QueueArgs() amqp.Table {
	if m.deadLetterExchange == "" {
		return nil
	}
	return amqp.Table{"x-dead-letter-exchange": m.deadLetterExchange}
}

func (m *Manager) HasDeadLetterExchange() bool {
	return m.deadLetterExchange != ""
}

func (m *Manager) Exchange() string {
	return m.exchange
}

// Close stops reconnects and closes the channel and connection.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	ch, conn := m.ch, m.conn
	m.ch, m.conn = nil, nil
	m.mu.Unlock()

	if ch != nil {
		_ = ch.Close()
	}
	if conn != nil {
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			return errors.Wrap(err, "close rabbitmq connection")
		}
	}
	return nil
}

type ConnectionStats struct {
	Connected         bool   `json:"connected"`
	Connects          int64  `json:"connects"`
	ReconnectAttempts int64  `json:"reconnectAttempts"`
	LastError         string `json:"lastError,omitempty"`
}

func (m *Manager) Stats() ConnectionStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ConnectionStats{
		Connected:         m.ch != nil,
		Connects:          m.connects.Load(),
		ReconnectAttempts: m.reconnectAttempts.Load(),
		LastError:         m.lastError,
	}
}
