package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/Packaroo/config"
	"github.com/BearBump/Packaroo/internal/api/ops"
	"github.com/BearBump/Packaroo/internal/api/packages_api"
	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/BearBump/Packaroo/internal/broker/rabbitmq"
	"github.com/BearBump/Packaroo/internal/services/packages"
	"github.com/BearBump/Packaroo/internal/storage/pgstore"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type repository interface {
	packages.Repository
	Ping(ctx context.Context) error
}

type appOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)
}

type factories struct {
	newStorage func(cfg *config.Config) (repo repository, closeFn func(), err error)
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
	}
}

func runPackageService(ctx context.Context, cfg *config.Config, f factories, opts appOpts) error {
	httpAddr := opts.httpAddr
	if httpAddr == "" {
		httpAddr = cfg.PackageService.HTTPAddr
	}
	if httpAddr == "" {
		httpAddr = ":3002"
	}
	reconnectDelay := time.Duration(cfg.PackageService.ReconnectDelaySeconds) * time.Second
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

	var busOpts []rabbitmq.Option
	if f.dial != nil {
		busOpts = append(busOpts, rabbitmq.WithDialer(f.dial))
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

	svc := packages.New(repo, bus)
	if err := bus.SubscribeKind(messages.QueuePackageDeliveryUpdates, messages.KindDeliveryUpdated, packages.NewEventHandler(svc)); err != nil {
		return err
	}
	// Без брокера package-service не стартует: события о посылках терять нельзя.
	if err := bus.Connect(ctx); err != nil {
		return errors.Wrap(err, "connect to rabbitmq")
	}

	lis, err := net.Listen("tcp", httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	if err := ops.Serve(ctx, lis, newRouter(svc, bus, repo, opts.swaggerPath)); err != nil {
		return err
	}
	return ctx.Err()
}

func newRouter(svc *packages.Service, bus *rabbitmq.Bus, repo repository, swaggerPath string) http.Handler {
	r := chi.NewRouter()
	ops.Mount(r, ops.Options{
		Ready: func(ctx context.Context) error {
			if !bus.Stats().Connection.Connected {
				return rabbitmq.ErrChannelNotInitialized
			}
			if err := repo.Ping(ctx); err != nil {
				return errors.Wrap(err, "postgres")
			}
			return nil
		},
		Stats: func() any {
			return map[string]any{
				"service": "package-service",
				"bus":     bus.Stats(),
			}
		},
		SwaggerPath: swaggerPath,
	})
	packages_api.New(svc).Routes(r)
	return r
}
