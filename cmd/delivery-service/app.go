package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/Packaroo/config"
	"github.com/BearBump/Packaroo/internal/api/deliveries_api"
	"github.com/BearBump/Packaroo/internal/api/ops"
	"github.com/BearBump/Packaroo/internal/broker/kafka"
	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/BearBump/Packaroo/internal/broker/rabbitmq"
	"github.com/BearBump/Packaroo/internal/cache"
	"github.com/BearBump/Packaroo/internal/cache/rediscache"
	"github.com/BearBump/Packaroo/internal/services/deliveries"
	"github.com/BearBump/Packaroo/internal/storage/pgstore"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type repository interface {
	deliveries.Repository
	Ping(ctx context.Context) error
}

// currentCache holds delivery:<id>:current; Redis trouble is reported in /stats only,
// reads and writes fall back to Postgres.
type currentCache interface {
	cache.BytesCache
	Ping(ctx context.Context) error
	Close() error
}

type appOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)
}

type factories struct {
	newStorage func(cfg *config.Config) (repo repository, closeFn func(), err error)
	newCache   func(cfg *config.Config) (c currentCache, rl cache.RateLimiter)
	// nil sink: kafka is not configured, exhausted messages are only nacked.
	newArchive func(cfg *config.Config) (sink rabbitmq.DeadLetterSink, closeFn func())
	dial       rabbitmq.Dialer
}

func defaultFactories() factories {
	return factories{
		newStorage: func(cfg *config.Config) (repository, func(), error) {
			st, err := pgstore.New(cfg.Database.PostgresConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) (currentCache, cache.RateLimiter) {
			client := rediscache.NewClient(cfg.Redis.Addr())
			return rediscache.NewFromClient(client), rediscache.NewRateLimiterFromClient(client)
		},
		newArchive: func(cfg *config.Config) (rabbitmq.DeadLetterSink, func()) {
			brokers := cfg.Kafka.Brokers()
			if len(brokers) == 0 {
				return nil, func() {}
			}
			producer := kafka.NewProducer(brokers)
			return kafka.NewDeadLetterArchive(producer, cfg.Kafka.DeadLetterTopicName), func() { _ = producer.Close() }
		},
	}
}

func runDeliveryService(ctx context.Context, cfg *config.Config, f factories, opts appOpts) error {
	httpAddr := opts.httpAddr
	if httpAddr == "" {
		httpAddr = cfg.DeliveryService.HTTPAddr
	}
	if httpAddr == "" {
		httpAddr = ":3003"
	}
	cacheTTL := time.Duration(cfg.DeliveryService.CurrentStatusTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	rlPerMin := int64(cfg.DeliveryService.DriverRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 60
	}
	reconnectDelay := time.Duration(cfg.DeliveryService.ReconnectDelaySeconds) * time.Second
	if reconnectDelay <= 0 {
		reconnectDelay = 5 * time.Second
	}

	repo, closeStorage, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeStorage != nil {
		defer closeStorage()
	}

	c, rl := f.newCache(cfg)
	defer func() { _ = c.Close() }()

	var busOpts []rabbitmq.Option
	if f.dial != nil {
		busOpts = append(busOpts, rabbitmq.WithDialer(f.dial))
	}
	if f.newArchive != nil {
		sink, closeArchive := f.newArchive(cfg)
		if closeArchive != nil {
			defer closeArchive()
		}
		if sink != nil {
			busOpts = append(busOpts, rabbitmq.WithDeadLetterSink(sink))
		}
	}
	bus := rabbitmq.NewBus(rabbitmq.Config{
		URI:                cfg.RabbitMQ.URI,
		Exchange:           cfg.RabbitMQ.Exchange,
		DeadLetterExchange: cfg.RabbitMQ.DeadLetterExchange,
		ReconnectDelay:     reconnectDelay,
		Retry: rabbitmq.RetryPolicy{
			MaxRetries: cfg.RabbitMQ.MaxRetries,
			BaseDelay:  time.Duration(cfg.RabbitMQ.RetryBaseDelayMs) * time.Millisecond,
		},
	}, busOpts...)
	defer func() { _ = bus.Close() }()

	svc := deliveries.New(repo, bus, c, cacheTTL)
	h := deliveries.NewEventHandler(svc)
	if err := bus.SubscribeKind(messages.QueueDeliveryPackageCreated, messages.KindPackageCreated, h); err != nil {
		return err
	}
	if err := bus.SubscribeKind(messages.QueueDeliveryPackageUpdates, messages.KindPackageUpdated, h); err != nil {
		return err
	}

	// Без брокера сервис продолжает обслуживать HTTP.
	if bus.Configured() {
		if err := bus.Start(ctx); err != nil {
			return err
		}
	} else {
		slog.Warn("RABBITMQ_URI is not set, delivery-service runs without messaging")
	}

	lis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := newRouter(svc, bus, repo, c, rl, rlPerMin, opts.swaggerPath)
	if err := ops.Serve(ctx, lis, r); err != nil {
		return err
	}
	return ctx.Err()
}

func newRouter(svc *deliveries.Service, bus *rabbitmq.Bus, repo repository, c currentCache, rl cache.RateLimiter, rlPerMin int64, swaggerPath string) http.Handler {
	r := chi.NewRouter()
	ops.Mount(r, ops.Options{
		Ready: func(ctx context.Context) error {
			if bus.Configured() && !bus.Stats().Connection.Connected {
				return rabbitmq.ErrChannelNotInitialized
			}
			if err := repo.Ping(ctx); err != nil {
				return errors.Wrap(err, "postgres")
			}
			return nil
		},
		Stats: func() any {
			return map[string]any{
				"service": "delivery-service",
				"bus":     bus.Stats(),
				"cache":   cacheStatus(c),
			}
		},
		SwaggerPath: swaggerPath,
	})
	deliveries_api.New(svc, rl, rlPerMin).Routes(r)
	return r
}

func cacheStatus(c currentCache) map[string]any {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		return map[string]any{"ok": false, "error": err.Error()}
	}
	return map[string]any{"ok": true}
}
