package messages

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

// Handler has one method per Kind, so adding a kind breaks every implementation
// until it decides what to do with it.
type Handler interface {
	HandlePackageCreated(ctx context.Context, m PackageCreated) error
	HandlePackageUpdated(ctx context.Context, m PackageUpdated) error
	HandleDeliveryCreated(ctx context.Context, m DeliveryCreated) error
	HandleDeliveryUpdated(ctx context.Context, m DeliveryUpdated) error
	HandleUserCreated(ctx context.Context, m UserCreated) error
}

// Unhandled is embedded by services for kinds they do not consume. A message of such
// a kind reaching the service is an error, not a silent ack.
type Unhandled struct{}

func (Unhandled) HandlePackageCreated(context.Context, PackageCreated) error {
	return errors.Wrap(ErrUnhandledKind, KindPackageCreated.String())
}

func (Unhandled) HandlePackageUpdated(context.Context, PackageUpdated) error {
	return errors.Wrap(ErrUnhandledKind, KindPackageUpdated.String())
}

func (Unhandled) HandleDeliveryCreated(context.Context, DeliveryCreated) error {
	return errors.Wrap(ErrUnhandledKind, KindDeliveryCreated.String())
}

func (Unhandled) HandleDeliveryUpdated(context.Context, DeliveryUpdated) error {
	return errors.Wrap(ErrUnhandledKind, KindDeliveryUpdated.String())
}

func (Unhandled) HandleUserCreated(context.Context, UserCreated) error {
	return errors.Wrap(ErrUnhandledKind, KindUserCreated.String())
}

// Dispatch decodes body according to routingKey, validates it and calls the matching
// Handler method. Decode and validation failures wrap ErrInvalidPayload.
func Dispatch(ctx context.Context, routingKey string, body []byte, h Handler) error {
	kind, err := ParseKind(routingKey)
	if err != nil {
		return err
	}

	switch kind {
	case KindPackageCreated:
		var m PackageCreated
		if err := Decode(body, &m); err != nil {
			return err
		}
		return h.HandlePackageCreated(ctx, m)
	case KindPackageUpdated:
		var m PackageUpdated
		if err := Decode(body, &m); err != nil {
			return err
		}
		return h.HandlePackageUpdated(ctx, m)
	case KindDeliveryCreated:
		var m DeliveryCreated
		if err := Decode(body, &m); err != nil {
			return err
		}
		return h.HandleDeliveryCreated(ctx, m)
	case KindDeliveryUpdated:
		var m DeliveryUpdated
		if err := Decode(body, &m); err != nil {
			return err
		}
		return h.HandleDeliveryUpdated(ctx, m)
	case KindUserCreated:
		var m UserCreated
		if err := Decode(body, &m); err != nil {
			return err
		}
		return h.HandleUserCreated(ctx, m)
	default:
		return errors.Wrapf(ErrUnknownKind, "routing key %q", routingKey)
	}
}

// Decode unmarshals and validates a payload.
func Decode(body []byte, m Message) error {
	if err := json.Unmarshal(body, m); err != nil {
		return errors.Wrapf(ErrInvalidPayload, "%s: %v", m.Kind(), err)
	}
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, m.Kind().String())
	}
	return nil
}
