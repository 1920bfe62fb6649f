package packages

import (
	"context"
	"log/slog"

	"github.com/BearBump/Packaroo/internal/broker/messages"
)

// EventHandler consumes delivery events on behalf of the package service.
type EventHandler struct {
	messages.Unhandled
	svc *Service
}

var _ messages.Handler = (*EventHandler)(nil)

func NewEventHandler(svc *Service) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) HandleDeliveryUpdated(ctx context.Context, m messages.DeliveryUpdated) error {
	p, err := h.svc.ApplyDeliveryUpdate(ctx, m)
	if err != nil {
		return err
	}
	slog.Info("package status projected", "package_id", p.ID, "delivery_id", m.ID, "status", p.Status)
	return nil
}
