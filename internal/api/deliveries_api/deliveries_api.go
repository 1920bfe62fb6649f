package deliveries_api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BearBump/Packaroo/internal/api/ops"
	"github.com/BearBump/Packaroo/internal/cache"
	"github.com/BearBump/Packaroo/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type Service interface {
	Get(ctx context.Context, id string) (*models.Delivery, error)
	GetByPackage(ctx context.Context, packageID string) (*models.Delivery, error)
	ListByDriver(ctx context.Context, driverID string) ([]*models.Delivery, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Delivery, error)
	ListPending(ctx context.Context) ([]*models.Delivery, error)
	Transition(ctx context.Context, id string, in models.TransitionInput) (*models.Delivery, error)
	ReportIssue(ctx context.Context, id, issue string) (*models.Delivery, error)
}

type DeliveriesAPI struct {
	svc Service
	rl  cache.RateLimiter
	// Status changes per driver per minute; 0 disables the limit.
	perMinute int64
}

func New(svc Service, rl cache.RateLimiter, perMinute int64) *DeliveriesAPI {
	return &DeliveriesAPI{svc: svc, rl: rl, perMinute: perMinute}
}

func (a *DeliveriesAPI) Routes(r chi.Router) {
	r.Get("/deliveries", a.list)
	r.Get("/deliveries/pending", a.pending)
	r.Get("/deliveries/{id}", a.get)
	r.Patch("/deliveries/{id}/status", a.updateStatus)
	r.Post("/deliveries/{id}/issue", a.reportIssue)
	r.Get("/packages/{packageId}/delivery", a.byPackage)
}

func (a *DeliveriesAPI) get(w http.ResponseWriter, r *http.Request) {
	d, err := a.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, d)
}

func (a *DeliveriesAPI) list(w http.ResponseWriter, r *http.Request) {
	driverID := r.URL.Query().Get("driverId")
	ownerID := r.URL.Query().Get("ownerId")

	var (
		out []*models.Delivery
		err error
	)
	switch {
	case driverID != "" && ownerID != "":
		err = errors.Wrap(models.ErrInvalidInput, "use either driverId or ownerId, not both")
	case driverID != "":
		out, err = a.svc.ListByDriver(r.Context(), driverID)
	case ownerID != "":
		out, err = a.svc.ListByOwner(r.Context(), ownerID)
	default:
		err = errors.Wrap(models.ErrInvalidInput, "driverId or ownerId is required")
	}
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, map[string]any{"deliveries": out})
}

func (a *DeliveriesAPI) pending(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.ListPending(r.Context())
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, map[string]any{"deliveries": out})
}

func (a *DeliveriesAPI) byPackage(w http.ResponseWriter, r *http.Request) {
	d, err := a.svc.GetByPackage(r.Context(), chi.URLParam(r, "packageId"))
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, d)
}

type statusRequest struct {
	Status   string `json:"status"`
	DriverID string `json:"driverId"`
	Issue    string `json:"issue"`
}

func (a *DeliveriesAPI) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := ops.DecodeJSON(r, &req); err != nil {
		ops.WriteError(w, r, err)
		return
	}
	status, ok := models.ParseDeliveryStatus(req.Status)
	if !ok {
		ops.WriteError(w, r, errors.Wrapf(models.ErrInvalidInput, "unknown status %q", req.Status))
		return
	}
	if err := a.allow(r.Context(), req.DriverID); err != nil {
		ops.WriteError(w, r, err)
		return
	}

	d, err := a.svc.Transition(r.Context(), chi.URLParam(r, "id"), models.TransitionInput{
		Status:   status,
		DriverID: req.DriverID,
		Issue:    req.Issue,
	})
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, d)
}

type issueRequest struct {
	Issue string `json:"issue"`
}

func (a *DeliveriesAPI) reportIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := ops.DecodeJSON(r, &req); err != nil {
		ops.WriteError(w, r, err)
		return
	}
	d, err := a.svc.ReportIssue(r.Context(), chi.URLParam(r, "id"), req.Issue)
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, d)
}

// allow enforces the per-driver limit. Redis being down does not block drivers.
func (a *DeliveriesAPI) allow(ctx context.Context, driverID string) error {
	if a.rl == nil || a.perMinute <= 0 || driverID == "" {
		return nil
	}
	ok, n, err := a.rl.AllowPerMinute(ctx, "driver:"+driverID, a.perMinute)
	if err != nil {
		slog.Warn("driver rate limit check failed", "driver_id", driverID, "error", err.Error())
		return nil
	}
	if !ok {
		return errors.Wrapf(ops.ErrRateLimited, "driver %s made %d status changes this minute", driverID, n)
	}
	return nil
}
