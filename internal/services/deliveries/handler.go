package deliveries

import (
	"context"
	"log/slog"

	"github.com/BearBump/Packaroo/internal/broker/messages"
)

// EventHandler consumes package events on behalf of the delivery service.
type EventHandler struct {
	messages.Unhandled
	svc *Service
}

var _ messages.Handler = (*EventHandler)(nil)

func NewEventHandler(svc *Service) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) HandlePackageCreated(ctx context.Context, m messages.PackageCreated) error {
	d, err := h.svc.CreateFromPackage(ctx, m)
	if err != nil {
		return err
	}
	slog.Info("delivery created from package", "package_id", m.ID, "delivery_id", d.ID, "tracking_id", d.TrackingID)
	return nil
}

// HandlePackageUpdated only records the event. Package edits do not change a delivery
// yet; this is where address or ETA changes would be applied.
func (h *EventHandler) HandlePackageUpdated(_ context.Context, m messages.PackageUpdated) error {
	slog.Info("package updated", "package_id", m.ID, "status", m.Status, "tracking_id", m.TrackingID)
	return nil
}
