package packages_api

import (
	"context"
	"net/http"
	"time"

	"github.com/BearBump/Packaroo/internal/api/ops"
	"github.com/BearBump/Packaroo/internal/models"
	"github.com/go-chi/chi/v5"
)

type Service interface {
	Create(ctx context.Context, in models.PackageCreateInput) (*models.Package, error)
	Update(ctx context.Context, id string, patch models.PackagePatch) (*models.Package, error)
	Get(ctx context.Context, id string) (*models.Package, error)
}

type PackagesAPI struct {
	svc Service
}

func New(svc Service) *PackagesAPI {
	return &PackagesAPI{svc: svc}
}

func (a *PackagesAPI) Routes(r chi.Router) {
	r.Post("/packages", a.create)
	r.Get("/packages/{id}", a.get)
	r.Patch("/packages/{id}", a.update)
}

type createRequest struct {
	OwnerID               string            `json:"ownerId"`
	Name                  string            `json:"name"`
	Description           string            `json:"description"`
	Weight                float64           `json:"weight"`
	Dimensions            models.Dimensions `json:"dimensions"`
	RecipientName         string            `json:"recipientName"`
	RecipientAddress      string            `json:"recipientAddress"`
	RecipientContact      string            `json:"recipientContact"`
	EstimatedDeliveryTime *time.Time        `json:"estimatedDeliveryTime"`
	Images                []string          `json:"images"`
}

func (a *PackagesAPI) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := ops.DecodeJSON(r, &req); err != nil {
		ops.WriteError(w, r, err)
		return
	}

	p, err := a.svc.Create(r.Context(), models.PackageCreateInput(req))
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusCreated, p)
}

func (a *PackagesAPI) get(w http.ResponseWriter, r *http.Request) {
	p, err := a.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, p)
}

type updateRequest struct {
	Name                  *string            `json:"name"`
	Description           *string            `json:"description"`
	Weight                *float64           `json:"weight"`
	Dimensions            *models.Dimensions `json:"dimensions"`
	RecipientName         *string            `json:"recipientName"`
	RecipientAddress      *string            `json:"recipientAddress"`
	RecipientContact      *string            `json:"recipientContact"`
	EstimatedDeliveryTime *time.Time         `json:"estimatedDeliveryTime"`
	Images                []string           `json:"images"`
}

func (a *PackagesAPI) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := ops.DecodeJSON(r, &req); err != nil {
		ops.WriteError(w, r, err)
		return
	}

	p, err := a.svc.Update(r.Context(), chi.URLParam(r, "id"), models.PackagePatch{
		Name:                  req.Name,
		Description:           req.Description,
		Weight:                req.Weight,
		Dimensions:            req.Dimensions,
		RecipientName:         req.RecipientName,
		RecipientAddress:      req.RecipientAddress,
		RecipientContact:      req.RecipientContact,
		EstimatedDeliveryTime: req.EstimatedDeliveryTime,
		Images:                req.Images,
	})
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, p)
}
