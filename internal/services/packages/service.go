package packages

import (
	"context"
	"strings"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/BearBump/Packaroo/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const StatusPending = "pending"

type Repository interface {
	CreatePackage(ctx context.Context, p models.Package) (*models.Package, error)
	FindPackageByID(ctx context.Context, id string) (*models.Package, error)
	UpdatePackage(ctx context.Context, id string, patch models.PackagePatch) (*models.Package, error)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

type Service struct {
	repo Repository
	bus  Publisher

	now   func() time.Time
	newID func() string
}

func New(repo Repository, bus Publisher) *Service {
	return &Service{
		repo:  repo,
		bus:   bus,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// NewTrackingID returns PKG followed by 8 upper-case hex digits.
func NewTrackingID() string {
	id := uuid.New()
	return "PKG" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

func (s *Service) Create(ctx context.Context, in models.PackageCreateInput) (*models.Package, error) {
	if err := validateCreate(in); err != nil {
		return nil, err
	}

	now := s.now()
	images := in.Images
	if images == nil {
		images = []string{}
	}
	p, err := s.repo.CreatePackage(ctx, models.Package{
		ID:                    s.newID(),
		OwnerID:               in.OwnerID,
		Status:                StatusPending,
		TrackingID:            NewTrackingID(),
		Name:                  in.Name,
		Description:           in.Description,
		Weight:                in.Weight,
		Dimensions:            in.Dimensions,
		RecipientName:         in.RecipientName,
		RecipientAddress:      in.RecipientAddress,
		RecipientContact:      in.RecipientContact,
		EstimatedDeliveryTime: in.EstimatedDeliveryTime,
		Images:                images,
		LastUpdate:            now,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	if err != nil {
		return nil, err
	}

	if err := s.bus.Publish(ctx, messages.KindPackageCreated.RoutingKey(), PackageCreatedEvent(*p)); err != nil {
		return p, errors.Wrapf(err, "publish package.created for %s", p.ID)
	}
	return p, nil
}

func validateCreate(in models.PackageCreateInput) error {
	switch {
	case strings.TrimSpace(in.OwnerID) == "":
		return errors.Wrap(models.ErrInvalidInput, "ownerId is required")
	case strings.TrimSpace(in.Name) == "":
		return errors.Wrap(models.ErrInvalidInput, "name is required")
	case strings.TrimSpace(in.RecipientName) == "":
		return errors.Wrap(models.ErrInvalidInput, "recipientName is required")
	case strings.TrimSpace(in.RecipientAddress) == "":
		return errors.Wrap(models.ErrInvalidInput, "recipientAddress is required")
	case in.Weight < 0:
		return errors.Wrap(models.ErrInvalidInput, "weight must not be negative")
	case in.Dimensions.Length < 0 || in.Dimensions.Width < 0 || in.Dimensions.Height < 0:
		return errors.Wrap(models.ErrInvalidInput, "dimensions must not be negative")
	}
	return nil
}

// Update edits the package and publishes package.updated. Delivery-owned fields
// (status, driver, timestamps) are ignored here; they only change through
// ApplyDeliveryUpdate.
func (s *Service) Update(ctx context.Context, id string, patch models.PackagePatch) (*models.Package, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "id is required")
	}
	if patch.Weight != nil && *patch.Weight < 0 {
		return nil, errors.Wrap(models.ErrInvalidInput, "weight must not be negative")
	}

	patch.Status = nil
	patch.DriverID = nil
	patch.StartedAt = nil
	patch.DeliveredAt = nil
	now := s.now()
	patch.LastUpdate = &now

	p, err := s.repo.UpdatePackage(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	err = s.bus.Publish(ctx, messages.KindPackageUpdated.RoutingKey(), messages.PackageUpdated{
		ID:         p.ID,
		Status:     p.Status,
		TrackingID: p.TrackingID,
	})
	if err != nil {
		return p, errors.Wrapf(err, "publish package.updated for %s", p.ID)
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.Package, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "id is required")
	}
	return s.repo.FindPackageByID(ctx, id)
}

// ApplyDeliveryUpdate projects a delivery.updated event onto the package. Fields the
// event leaves null keep their stored value.
func (s *Service) ApplyDeliveryUpdate(ctx context.Context, m messages.DeliveryUpdated) (*models.Package, error) {
	now := s.now()
	status := m.Status
	return s.repo.UpdatePackage(ctx, m.PackageID, models.PackagePatch{
		Status:      &status,
		DriverID:    m.DriverID,
		StartedAt:   m.StartedAt,
		DeliveredAt: m.CompletedAt,
		LastUpdate:  &now,
	})
}

func PackageCreatedEvent(p models.Package) messages.PackageCreated {
	return messages.PackageCreated{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Status:      p.Status,
		TrackingID:  p.TrackingID,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Name:        p.Name,
		Description: p.Description,
		Weight:      p.Weight,
		Dimensions: messages.Dimensions{
			Length: p.Dimensions.Length,
			Width:  p.Dimensions.Width,
			Height: p.Dimensions.Height,
		},
		RecipientName:         p.RecipientName,
		RecipientAddress:      p.RecipientAddress,
		RecipientContact:      p.RecipientContact,
		EstimatedDeliveryTime: p.EstimatedDeliveryTime,
		LastUpdate:            p.LastUpdate,
		Images:                p.Images,
	}
}
