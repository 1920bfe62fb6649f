package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

type createdRecorder struct {
	messages.Unhandled
	got chan messages.PackageCreated
}

func (r *createdRecorder) HandlePackageCreated(_ context.Context, m messages.PackageCreated) error {
	r.got <- m
	return nil
}

func TestBus_PublishBeforeConnect(t *testing.T) {
	d := &fakeDialer{}
	b := NewBus(Config{URI: "amqp://x"}, WithDialer(d.Dial))

	err := b.Publish(context.Background(), "user.created", messages.UserCreated{ID: "u1"})
	require.ErrorIs(t, err, ErrChannelNotInitialized)
	require.Zero(t, d.dialCount())
}

func TestBus_SubscribeKindDispatches(t *testing.T) {
	d := &fakeDialer{}
	b := NewBus(Config{URI: "amqp://x", ReconnectDelay: 10 * time.Millisecond}, WithDialer(d.Dial))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer func() { _ = b.Close() }()

	rec := &createdRecorder{got: make(chan messages.PackageCreated, 1)}
	require.NoError(t, b.SubscribeKind(messages.QueueDeliveryPackageCreated, messages.KindPackageCreated, rec))
	require.NoError(t, b.Connect(ctx))

	body := []byte(`{"id":"p1","ownerId":"o1","trackingId":"PKG1A2B3C4D"}`)
	acker := &fakeAcker{}
	d.last().ch.deliveries <- amqp.Delivery{Acknowledger: acker, RoutingKey: "package.created", Body: body}

	select {
	case m := <-rec.got:
		require.Equal(t, "p1", m.ID)
		require.Equal(t, "o1", m.OwnerID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not called")
	}
	require.Eventually(t, func() bool {
		acks, _ := acker.counts()
		return acks == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, b.Publish(ctx, "delivery.created", messages.DeliveryCreated{ID: "d1", PackageID: "p1"}))
	st := b.Stats()
	require.True(t, st.Enabled)
	require.True(t, st.Connection.Connected)
	require.Equal(t, int64(1), st.Published)
	require.Equal(t, int64(1), st.Consumer.Acked)
}

func TestBus_NotConfigured(t *testing.T) {
	b := NewBus(Config{})
	require.False(t, b.Configured())
	require.ErrorIs(t, b.Connect(context.Background()), ErrNotConfigured)
	require.False(t, b.Stats().Enabled)
	require.Equal(t, messages.Exchange, b.Stats().Exchange)
}
