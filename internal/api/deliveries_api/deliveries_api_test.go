package deliveries_api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BearBump/Packaroo/internal/cache/rediscache"
	"github.com/BearBump/Packaroo/internal/models"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	byID        map[string]models.Delivery
	transitions []models.TransitionInput
	issues      []string
}

func newFakeService() *fakeService {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &fakeService{byID: map[string]models.Delivery{
		"D1": models.NewPendingDelivery("D1", "P1", "U1", "PKG12345678", now),
	}}
}

func (f *fakeService) Get(ctx context.Context, id string) (*models.Delivery, error) {
	d, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &d, nil
}

func (f *fakeService) GetByPackage(ctx context.Context, packageID string) (*models.Delivery, error) {
	for _, d := range f.byID {
		if d.PackageID == packageID {
			return &d, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeService) ListByDriver(ctx context.Context, driverID string) ([]*models.Delivery, error) {
	return []*models.Delivery{}, nil
}

func (f *fakeService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Delivery, error) {
	d := f.byID["D1"]
	return []*models.Delivery{&d}, nil
}

func (f *fakeService) ListPending(ctx context.Context) ([]*models.Delivery, error) {
	d := f.byID["D1"]
	return []*models.Delivery{&d}, nil
}

func (f *fakeService) Transition(ctx context.Context, id string, in models.TransitionInput) (*models.Delivery, error) {
	f.transitions = append(f.transitions, in)
	d, ok := f.byID[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	next, err := d.Transition(in, d.UpdatedAt.Add(time.Minute))
	if err != nil {
		return nil, err
	}
	f.byID[id] = next
	return &next, nil
}

func (f *fakeService) ReportIssue(ctx context.Context, id, issue string) (*models.Delivery, error) {
	f.issues = append(f.issues, issue)
	d := f.byID[id]
	next, err := d.ReportIssue(issue, d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &next, nil
}

func newRouter(t *testing.T, svc Service, perMinute int64) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	r := chi.NewRouter()
	New(svc, rediscache.NewRateLimiterFromClient(rediscache.NewClient(mr.Addr())), perMinute).Routes(r)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestDeliveriesAPI_Queries(t *testing.T) {
	h := newRouter(t, newFakeService(), 0)

	rec := do(h, http.MethodGet, "/deliveries/D1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d models.Delivery
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	require.Equal(t, "P1", d.PackageID)
	require.Equal(t, models.DeliveryStatusPending, d.Status)

	require.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/deliveries/nope", "").Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/packages/P1/delivery", "").Code)

	rec = do(h, http.MethodGet, "/deliveries/pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"deliveries":[`)

	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/deliveries?ownerId=U1", "").Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodGet, "/deliveries?driverId=drv", "").Code)
	require.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/deliveries", "").Code)
	require.Equal(t, http.StatusBadRequest, do(h, http.MethodGet, "/deliveries?ownerId=U1&driverId=drv", "").Code)
}

func TestDeliveriesAPI_StatusTransitions(t *testing.T) {
	svc := newFakeService()
	h := newRouter(t, svc, 0)

	rec := do(h, http.MethodPatch, "/deliveries/D1/status", `{"status":"delivered"}`)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(h, http.MethodPatch, "/deliveries/D1/status", `{"status":"assigned"}`)
	require.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = do(h, http.MethodPatch, "/deliveries/D1/status", `{"status":"in_transit","driverId":"drv1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"in transit"`)
	require.Equal(t, models.DeliveryStatusInTransit, svc.transitions[len(svc.transitions)-1].Status)

	rec = do(h, http.MethodPatch, "/deliveries/D1/status", `{"status":"lost"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodPost, "/deliveries/D1/issue", `{"issue":"flat tire"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"failed"`)
	require.Equal(t, []string{"flat tire"}, svc.issues)
}

func TestDeliveriesAPI_DriverRateLimit(t *testing.T) {
	svc := newFakeService()
	h := newRouter(t, svc, 2)

	body := `{"status":"assigned","driverId":"drv1"}`
	require.Equal(t, http.StatusOK, do(h, http.MethodPatch, "/deliveries/D1/status", body).Code)
	require.Equal(t, http.StatusOK, do(h, http.MethodPatch, "/deliveries/D1/status", body).Code)
	require.Equal(t, http.StatusTooManyRequests, do(h, http.MethodPatch, "/deliveries/D1/status", body).Code)
	require.Len(t, svc.transitions, 2)

	other := `{"status":"assigned","driverId":"drv2"}`
	require.Equal(t, http.StatusOK, do(h, http.MethodPatch, "/deliveries/D1/status", other).Code)
}
