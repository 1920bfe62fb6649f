package packages_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/Packaroo/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	created []models.PackageCreateInput
	patches []models.PackagePatch
	byID    map[string]models.Package
}

func (f *fakeService) Create(ctx context.Context, in models.PackageCreateInput) (*models.Package, error) {
	if in.OwnerID == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "ownerId is required")
	}
	f.created = append(f.created, in)
	p := models.Package{
		ID:         "P1",
		OwnerID:    in.OwnerID,
		Status:     "pending",
		TrackingID: "PKG0000ABCD",
		Name:       in.Name,
		Weight:     in.Weight,
		Dimensions: in.Dimensions,
		Images:     in.Images,
	}
	f.byID[p.ID] = p
	return &p, nil
}

func (f *fakeService) Update(ctx context.Context, id string, patch models.PackagePatch) (*models.Package, error) {
	f.patches = append(f.patches, patch)
	p, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	f.byID[id] = p
	return &p, nil
}

func (f *fakeService) Get(ctx context.Context, id string) (*models.Package, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func newServer(t *testing.T) (*httptest.Server, *fakeService) {
	t.Helper()
	svc := &fakeService{byID: map[string]models.Package{}}
	r := chi.NewRouter()
	New(svc).Routes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCreatePackage(t *testing.T) {
	srv, svc := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/packages", `{
		"ownerId": "U1",
		"name": "Books",
		"weight": 2.5,
		"dimensions": {"length": 30, "width": 20, "height": 10},
		"recipientName": "Ann",
		"recipientAddress": "Main st 1",
		"estimatedDeliveryTime": "2024-05-03T10:00:00Z",
		"images": ["a.png"]
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got models.Package
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "P1", got.ID)
	require.Equal(t, "pending", got.Status)

	require.Len(t, svc.created, 1)
	in := svc.created[0]
	require.Equal(t, "Ann", in.RecipientName)
	require.Equal(t, models.Dimensions{Length: 30, Width: 20, Height: 10}, in.Dimensions)
	require.NotNil(t, in.EstimatedDeliveryTime)
	require.True(t, in.EstimatedDeliveryTime.Equal(time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC)))
	require.Equal(t, []string{"a.png"}, in.Images)
}

func TestCreatePackage_BadInput(t *testing.T) {
	srv, _ := newServer(t)

	resp := do(t, http.MethodPost, srv.URL+"/packages", `{"name": "x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/packages", `{"ownerId": "U1", "unknown": 1}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/packages", `{`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateAndGetPackage(t *testing.T) {
	srv, svc := newServer(t)
	svc.byID["P1"] = models.Package{ID: "P1", Name: "old", Status: "pending"}

	resp := do(t, http.MethodPatch, srv.URL+"/packages/P1", `{"name": "new"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, svc.patches, 1)
	require.NotNil(t, svc.patches[0].Name)
	require.Nil(t, svc.patches[0].Weight)
	// поля доставки через API не меняются
	require.Nil(t, svc.patches[0].Status)

	resp = do(t, http.MethodGet, srv.URL+"/packages/P1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Package
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, "new", got.Name)

	resp = do(t, http.MethodGet, srv.URL+"/packages/missing", "")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPatch, srv.URL+"/packages/P1", `{"status": "delivered"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
