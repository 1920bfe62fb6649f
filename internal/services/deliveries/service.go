package deliveries

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/BearBump/Packaroo/internal/cache"
	"github.com/BearBump/Packaroo/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Repository interface {
	FindDeliveryByID(ctx context.Context, id string) (*models.Delivery, error)
	FindDeliveryByPackageID(ctx context.Context, packageID string) (*models.Delivery, error)
	FindDeliveriesByDriverID(ctx context.Context, driverID string) ([]*models.Delivery, error)
	FindDeliveriesByOwnerID(ctx context.Context, ownerID string) ([]*models.Delivery, error)
	FindPendingDeliveries(ctx context.Context) ([]*models.Delivery, error)
	CreateDelivery(ctx context.Context, d models.Delivery) (*models.Delivery, error)
	UpdateDelivery(ctx context.Context, id string, p models.DeliveryPatch) (*models.Delivery, error)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type Service struct {
	repo       Repository
	bus        Publisher
	cache      cache.BytesCache
	currentTTL time.Duration

	now   func() time.Time
	newID func() string
}

func New(repo Repository, bus Publisher, c cache.BytesCache, currentTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		bus:        bus,
		cache:      c,
		currentTTL: currentTTL,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// CreateFromPackage creates the pending delivery for a new package and announces it.
// A package that already has a delivery (redelivered event) gets its delivery.created
// published again instead of a second delivery.
func (s *Service) CreateFromPackage(ctx context.Context, m messages.PackageCreated) (*models.Delivery, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindDeliveryByPackageID(ctx, m.ID)
	switch {
	case err == nil:
		slog.Info("delivery already exists for package", "package_id", m.ID, "delivery_id", existing.ID)
		return existing, s.publishCreated(ctx, existing)
	case !errors.Is(err, models.ErrNotFound):
		return nil, err
	}

	d := models.NewPendingDelivery(s.newID(), m.ID, m.OwnerID, m.TrackingID, s.now())
	d.RecipientName = m.RecipientName
	d.RecipientAddress = m.RecipientAddress
	d.RecipientContact = m.RecipientContact
	d.EstimatedDeliveryTime = m.EstimatedDeliveryTime

	created, err := s.repo.CreateDelivery(ctx, d)
	if errors.Is(err, models.ErrAlreadyExists) {
		// Параллельная доставка того же события успела раньше.
		created, err = s.repo.FindDeliveryByPackageID(ctx, m.ID)
	}
	if err != nil {
		return nil, err
	}

	s.storeCurrent(ctx, created)
	if err := s.publishCreated(ctx, created); err != nil {
		return created, err
	}
	return created, nil
}

// Transition moves the delivery through the state machine and publishes delivery.updated.
// A rejected transition publishes nothing and leaves the stored delivery untouched.
func (s *Service) Transition(ctx context.Context, id string, in models.TransitionInput) (*models.Delivery, error) {
	d, err := s.repo.FindDeliveryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := d.Transition(in, s.now())
	if err != nil {
		return nil, err
	}
	return s.save(ctx, d.Status, next)
}

// ReportIssue marks the delivery failed with the given issue.
func (s *Service) ReportIssue(ctx context.Context, id, issue string) (*models.Delivery, error) {
	d, err := s.repo.FindDeliveryByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := d.ReportIssue(issue, s.now())
	if err != nil {
		return nil, err
	}
	return s.save(ctx, d.Status, next)
}

// save writes next only if the stored status is still prev, so two concurrent
// transitions validated against the same state cannot both be applied.
func (s *Service) save(ctx context.Context, prev models.DeliveryStatus, next models.Delivery) (*models.Delivery, error) {
	patch := models.PatchFrom(next)
	patch.ExpectedStatus = &prev

	updated, err := s.repo.UpdateDelivery(ctx, next.ID, patch)
	if err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			// кто-то успел раньше: закэшированное состояние уже неактуально
			s.evictCurrent(ctx, next.ID)
		}
		return nil, err
	}
	s.storeCurrent(ctx, updated)

	if err := s.bus.Publish(ctx, messages.KindDeliveryUpdated.RoutingKey(), DeliveryUpdatedEvent(*updated)); err != nil {
		return updated, errors.Wrapf(err, "publish delivery.updated for %s", updated.ID)
	}
	return updated, nil
}

// Get reads the current delivery state, from cache when possible.
func (s *Service) Get(ctx context.Context, id string) (*models.Delivery, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "id is required")
	}

	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, currentKey(id))
		if err == nil && ok {
			var d models.Delivery
			if json.Unmarshal(b, &d) == nil {
				return &d, nil
			}
		}
	}

	d, err := s.repo.FindDeliveryByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.storeCurrent(ctx, d)
	return d, nil
}

func (s *Service) GetByPackage(ctx context.Context, packageID string) (*models.Delivery, error) {
	if packageID == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "packageId is required")
	}
	return s.repo.FindDeliveryByPackageID(ctx, packageID)
}

func (s *Service) ListByDriver(ctx context.Context, driverID string) ([]*models.Delivery, error) {
	if driverID == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "driverId is required")
	}
	return s.repo.FindDeliveriesByDriverID(ctx, driverID)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID string) ([]*models.Delivery, error) {
	if ownerID == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "ownerId is required")
	}
	return s.repo.FindDeliveriesByOwnerID(ctx, ownerID)
}

func (s *Service) ListPending(ctx context.Context) ([]*models.Delivery, error) {
	return s.repo.FindPendingDeliveries(ctx)
}

func (s *Service) publishCreated(ctx context.Context, d *models.Delivery) error {
	err := s.bus.Publish(ctx, messages.KindDeliveryCreated.RoutingKey(), messages.DeliveryCreated{
		ID:         d.ID,
		PackageID:  d.PackageID,
		Status:     string(d.Status),
		TrackingID: d.TrackingID,
	})
	return errors.Wrapf(err, "publish delivery.created for %s", d.ID)
}

// DeliveryUpdatedEvent builds the delivery.updated payload. startedAt is only set for
// the move to in transit, completedAt only for delivered.
func DeliveryUpdatedEvent(d models.Delivery) messages.DeliveryUpdated {
	ev := messages.DeliveryUpdated{
		ID:        d.ID,
		PackageID: d.PackageID,
		Status:    string(d.Status),
		DriverID:  d.DriverID,
	}
	switch d.Status {
	case models.DeliveryStatusInTransit:
		ev.StartedAt = d.StartTime
	case models.DeliveryStatusDelivered:
		ev.CompletedAt = d.ActualDeliveryTime
	}
	return ev
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.currentTTL > 0
}

// Кэш best-effort: ошибки Redis не должны ломать запись.
func (s *Service) storeCurrent(ctx context.Context, d *models.Delivery) {
	if !s.cacheEnabled() || d == nil {
		return
	}
	b, err := json.Marshal(d)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, currentKey(d.ID), b, s.currentTTL); err != nil {
		slog.Warn("delivery cache set failed", "delivery_id", d.ID, "error", err.Error())
	}
}

func (s *Service) evictCurrent(ctx context.Context, id string) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Delete(ctx, currentKey(id)); err != nil {
		slog.Warn("delivery cache delete failed", "delivery_id", id, "error", err.Error())
	}
}

func currentKey(id string) string {
	return "delivery:" + id + ":current"
}
