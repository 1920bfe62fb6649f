package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

const (
	DefaultDeadLetterTopic = "packaroo.deadletter"

	headerQueue    = "queue"
	headerError    = "error"
	headerAttempts = "attempts"
	headerFailedAt = "failed_at"
)

type publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error
}

// DeadLetterArchive keeps bus messages whose retries ran out. The key is the routing
// key, the value the original body untouched; failure details travel in headers.
type DeadLetterArchive struct {
	p     publisher
	topic string
}

func NewDeadLetterArchive(p *Producer, topic string) *DeadLetterArchive {
	if topic == "" {
		topic = DefaultDeadLetterTopic
	}
	return &DeadLetterArchive{p: p, topic: topic}
}

func (a *DeadLetterArchive) Topic() string {
	return a.topic
}

func (a *DeadLetterArchive) DeadLetter(ctx context.Context, l messages.DeadLetter) error {
	err := a.p.Publish(ctx, a.topic, []byte(l.RoutingKey), l.Body,
		kafka.Header{Key: headerQueue, Value: []byte(l.Queue)},
		kafka.Header{Key: headerError, Value: []byte(l.Error)},
		kafka.Header{Key: headerAttempts, Value: []byte(strconv.Itoa(l.Attempts))},
		kafka.Header{Key: headerFailedAt, Value: []byte(l.FailedAt.UTC().Format(time.RFC3339Nano))},
	)
	return errors.Wrapf(err, "archive %s from %s", l.RoutingKey, l.Queue)
}

// DecodeDeadLetter restores a letter written by DeadLetterArchive. Unknown headers are
// ignored; a message without a key is rejected.
func DecodeDeadLetter(msg kafka.Message) (messages.DeadLetter, error) {
	if len(msg.Key) == 0 {
		return messages.DeadLetter{}, errors.Errorf("dead letter at offset %d has no routing key", msg.Offset)
	}
	l := messages.DeadLetter{
		RoutingKey: string(msg.Key),
		Body:       msg.Value,
	}
	for _, h := range msg.Headers {
		switch h.Key {
		case headerQueue:
			l.Queue = string(h.Value)
		case headerError:
			l.Error = string(h.Value)
		case headerAttempts:
			n, err := strconv.Atoi(string(h.Value))
			if err != nil {
				return messages.DeadLetter{}, errors.Wrap(err, "parse attempts header")
			}
			l.Attempts = n
		case headerFailedAt:
			ts, err := time.Parse(time.RFC3339Nano, string(h.Value))
			if err != nil {
				return messages.DeadLetter{}, errors.Wrap(err, "parse failed_at header")
			}
			l.FailedAt = ts
		}
	}
	return l, nil
}
