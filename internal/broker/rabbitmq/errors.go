package rabbitmq

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrConnection: the broker could not be reached or the channel could not be opened.
	ErrConnection = errors.New("rabbitmq connection error")
	// ErrChannelNotInitialized: publish was attempted before a channel exists.
	ErrChannelNotInitialized = errors.New("rabbitmq channel not initialized")
	// ErrNotConfigured: no broker URI was given.
	ErrNotConfigured = errors.New("rabbitmq uri is not configured")
	ErrClosed        = errors.New("rabbitmq manager is closed")
)

// HandlerError wraps a failure returned by a message handler.
type HandlerError struct {
	Queue      string
	RoutingKey string
	Attempt    int
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler failed (queue=%s routing_key=%s attempt=%d): %v", e.Queue, e.RoutingKey, e.Attempt, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
