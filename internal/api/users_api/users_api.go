package users_api

import (
	"context"
	"net/http"

	"github.com/BearBump/Packaroo/internal/api/ops"
	"github.com/BearBump/Packaroo/internal/models"
	"github.com/go-chi/chi/v5"
)

type Service interface {
	Register(ctx context.Context, name, email, role string) (*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
}

type UsersAPI struct {
	svc Service
}

func New(svc Service) *UsersAPI {
	return &UsersAPI{svc: svc}
}

func (a *UsersAPI) Routes(r chi.Router) {
	r.Post("/users", a.register)
	r.Get("/users/{id}", a.get)
}

type registerRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (a *UsersAPI) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := ops.DecodeJSON(r, &req); err != nil {
		ops.WriteError(w, r, err)
		return
	}
	u, err := a.svc.Register(r.Context(), req.Name, req.Email, req.Role)
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusCreated, u)
}

func (a *UsersAPI) get(w http.ResponseWriter, r *http.Request) {
	u, err := a.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ops.WriteError(w, r, err)
		return
	}
	ops.WriteJSON(w, http.StatusOK, u)
}
