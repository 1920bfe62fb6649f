package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/Packaroo/config"
	"github.com/BearBump/Packaroo/internal/broker/kafka"
	"github.com/BearBump/Packaroo/internal/broker/rabbitmq"
	"github.com/pkg/errors"
	kafkago "github.com/segmentio/kafka-go"
)

const defaultConsumerGroup = "deadletter-replay"

type archiveConsumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, msg kafkago.Message) error) error
	Close() error
}

type publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type factories struct {
	newConsumer func(brokers []string, topic, group string) archiveConsumer
	dial        rabbitmq.Dialer
}

func defaultFactories() factories {
	return factories{
		newConsumer: func(brokers []string, topic, group string) archiveConsumer {
			return kafka.NewConsumer(brokers, topic, group)
		},
	}
}

func runReplay(ctx context.Context, cfg *config.Config, f factories) error {
	brokers := cfg.Kafka.Brokers()
	if len(brokers) == 0 {
		return errors.New("kafka host is not configured")
	}
	topic := cfg.Kafka.DeadLetterTopicName
	if topic == "" {
		topic = kafka.DefaultDeadLetterTopic
	}
	group := cfg.Kafka.DeadLetterConsumerGroup
	if group == "" {
		group = defaultConsumerGroup
	}

	var busOpts []rabbitmq.Option
	if f.dial != nil {
		busOpts = append(busOpts, rabbitmq.WithDialer(f.dial))
	}
	bus := rabbitmq.NewBus(rabbitmq.Config{
		URI:            cfg.RabbitMQ.URI,
		Exchange:       cfg.RabbitMQ.Exchange,
		ReconnectDelay: 5 * time.Second,
	}, busOpts...)
	defer func() { _ = bus.Close() }()
	if err := bus.Connect(ctx); err != nil {
		return errors.Wrap(err, "connect to rabbitmq")
	}

	consumer := f.newConsumer(brokers, topic, group)
	defer func() { _ = consumer.Close() }()

	slog.Info("dead-letter replay started", "topic", topic, "group", group)
	return consumer.Consume(ctx, replayHandler(bus))
}

// replayHandler republishes an archived message under its original routing key. A
// record that cannot be decoded is skipped so it does not block the partition.
func replayHandler(pub publisher) func(ctx context.Context, msg kafkago.Message) error {
	return func(ctx context.Context, msg kafkago.Message) error {
		letter, err := kafka.DecodeDeadLetter(msg)
		if err != nil {
			slog.Error("skip undecodable dead letter", "partition", msg.Partition, "offset", msg.Offset, "error", err.Error())
			return nil
		}
		if !json.Valid(letter.Body) {
			slog.Error("skip dead letter with invalid JSON body", "routing_key", letter.RoutingKey, "offset", msg.Offset)
			return nil
		}

		if err := pub.Publish(ctx, letter.RoutingKey, json.RawMessage(letter.Body)); err != nil {
			return errors.Wrapf(err, "replay %s from %s", letter.RoutingKey, letter.Queue)
		}
		slog.Info("dead letter replayed",
			"routing_key", letter.RoutingKey,
			"queue", letter.Queue,
			"attempts", letter.Attempts,
			"failed_at", letter.FailedAt.Format(time.RFC3339Nano),
		)
		return nil
	}
}
