package rabbitmq

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type staticSource struct {
	ch  Channel
	err error
}

func (s staticSource) Channel() (Channel, error) { return s.ch, s.err }

func TestPublisher_NoChannel(t *testing.T) {
	p := NewPublisher(staticSource{err: ErrChannelNotInitialized}, messages.Exchange)

	err := p.Publish(context.Background(), "user.created", messages.UserCreated{ID: "u1"})
	require.ErrorIs(t, err, ErrChannelNotInitialized)
	require.Zero(t, p.Published())
}

func TestPublisher_PublishesPersistentJSON(t *testing.T) {
	ch := newFakeChannel()
	p := NewPublisher(staticSource{ch: ch}, messages.Exchange)

	ev := messages.UserCreated{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: "customer"}
	require.NoError(t, p.Publish(context.Background(), messages.KindUserCreated.RoutingKey(), ev))

	require.Equal(t, []string{"packaroo.events/user.created"}, ch.keys)
	require.Len(t, ch.published, 1)
	msg := ch.published[0]
	require.Equal(t, "application/json", msg.ContentType)
	require.Equal(t, amqp.Persistent, msg.DeliveryMode)
	require.False(t, msg.Timestamp.IsZero())

	var got messages.UserCreated
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	require.Equal(t, ev.ID, got.ID)
	require.Equal(t, ev.Email, got.Email)
	require.Equal(t, int64(1), p.Published())
}

func TestPublisher_WrapsChannelError(t *testing.T) {
	ch := newFakeChannel()
	ch.publishErr = errors.New("channel/connection is not open")
	p := NewPublisher(staticSource{ch: ch}, messages.Exchange)

	err := p.Publish(context.Background(), "package.created", map[string]string{"id": "p1"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "rabbitmq publish")
	require.Zero(t, p.Published())
}

func TestPublisher_MarshalError(t *testing.T) {
	ch := newFakeChannel()
	p := NewPublisher(staticSource{ch: ch}, messages.Exchange)

	err := p.Publish(context.Background(), "package.created", make(chan int))
	require.Error(t, err)
	require.Empty(t, ch.published)
}
