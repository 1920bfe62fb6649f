package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	last []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.last = append([]kafka.Message{}, msgs...)
	return w.err
}

func (w *fakeWriter) Close() error { return nil }

func TestDeadLetterArchive_RoundTrip(t *testing.T) {
	fw := &fakeWriter{}
	a := NewDeadLetterArchive(newProducerWithWriter(fw), "")
	require.Equal(t, DefaultDeadLetterTopic, a.Topic())

	failedAt := time.Date(2024, 5, 1, 12, 30, 0, 123, time.UTC)
	in := messages.DeadLetter{
		Queue:      messages.QueueDeliveryPackageCreated,
		RoutingKey: "package.created",
		Body:       []byte(`{"id":"p1"}`),
		Error:      "db down",
		Attempts:   3,
		FailedAt:   failedAt,
	}
	require.NoError(t, a.DeadLetter(context.Background(), in))

	require.Len(t, fw.last, 1)
	msg := fw.last[0]
	require.Equal(t, DefaultDeadLetterTopic, msg.Topic)
	require.Equal(t, "package.created", string(msg.Key))
	require.Equal(t, `{"id":"p1"}`, string(msg.Value))

	out, err := DecodeDeadLetter(msg)
	require.NoError(t, err)
	require.Equal(t, in.Queue, out.Queue)
	require.Equal(t, in.RoutingKey, out.RoutingKey)
	require.Equal(t, in.Body, out.Body)
	require.Equal(t, in.Error, out.Error)
	require.Equal(t, in.Attempts, out.Attempts)
	require.True(t, in.FailedAt.Equal(out.FailedAt))
}

func TestDeadLetterArchive_WriteError(t *testing.T) {
	fw := &fakeWriter{err: context.DeadlineExceeded}
	a := NewDeadLetterArchive(newProducerWithWriter(fw), "dl")

	err := a.DeadLetter(context.Background(), messages.DeadLetter{RoutingKey: "user.created", Queue: "q"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "archive user.created from q")
}

func TestDecodeDeadLetter_Rejects(t *testing.T) {
	_, err := DecodeDeadLetter(kafka.Message{Value: []byte("{}")})
	require.Error(t, err)

	_, err = DecodeDeadLetter(kafka.Message{
		Key:     []byte("package.created"),
		Headers: []kafka.Header{{Key: "attempts", Value: []byte("x")}},
	})
	require.Error(t, err)

	l, err := DecodeDeadLetter(kafka.Message{
		Key:     []byte("package.created"),
		Headers: []kafka.Header{{Key: "trace", Value: []byte("abc")}},
	})
	require.NoError(t, err)
	require.Equal(t, "package.created", l.RoutingKey)
}
