package messages

import "github.com/pkg/errors"

// Exchange is the shared durable topic exchange every service publishes to.
const Exchange = "packaroo.events"

// Durable queues, one consumer each.
const (
	QueueDeliveryPackageUpdates = "delivery-service.package-updates"
	QueueDeliveryPackageCreated = "delivery-service.package-created"
	QueuePackageDeliveryUpdates = "package-service.delivery-updates"
)

var (
	ErrUnknownKind    = errors.New("unknown event kind")
	ErrUnhandledKind  = errors.New("event kind is not handled by this service")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Kind is the closed set of events that travel over the bus.
type Kind int

const (
	KindUnknown Kind = iota
	KindPackageCreated
	KindPackageUpdated
	KindDeliveryCreated
	KindDeliveryUpdated
	KindUserCreated
)

// Kinds lists every known kind, in declaration order.
func Kinds() []Kind {
	return []Kind{KindPackageCreated, KindPackageUpdated, KindDeliveryCreated, KindDeliveryUpdated, KindUserCreated}
}

// RoutingKey returns the <entity>.<verb> key the kind is published under.
func (k Kind) RoutingKey() string {
	switch k {
	case KindPackageCreated:
		return "package.created"
	case KindPackageUpdated:
		return "package.updated"
	case KindDeliveryCreated:
		return "delivery.created"
	case KindDeliveryUpdated:
		return "delivery.updated"
	case KindUserCreated:
		return "user.created"
	default:
		return ""
	}
}

func (k Kind) String() string {
	if rk := k.RoutingKey(); rk != "" {
		return rk
	}
	return "unknown"
}

// ParseKind maps an exact routing key back to its kind. Wildcards are not accepted.
func ParseKind(routingKey string) (Kind, error) {
	for _, k := range Kinds() {
		if k.RoutingKey() == routingKey {
			return k, nil
		}
	}
	return KindUnknown, errors.Wrapf(ErrUnknownKind, "routing key %q", routingKey)
}
