package users

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/BearBump/Packaroo/internal/broker/messages"
	"github.com/BearBump/Packaroo/internal/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	RoleCustomer = "customer"
	RoleDriver   = "driver"
	RoleAdmin    = "admin"
)

type Repository interface {
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
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

// Register stores a new user and publishes user.created. An empty role means customer.
func (s *Service) Register(ctx context.Context, name, email, role string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	role = strings.TrimSpace(role)
	if role == "" {
		role = RoleCustomer
	}

	if name == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "name is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, errors.Wrapf(models.ErrInvalidInput, "invalid email %q", email)
	}
	switch role {
	case RoleCustomer, RoleDriver, RoleAdmin:
	default:
		return nil, errors.Wrapf(models.ErrInvalidInput, "unknown role %q", role)
	}

	u, err := s.repo.CreateUser(ctx, models.User{
		ID:        s.newID(),
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	err = s.bus.Publish(ctx, messages.KindUserCreated.RoutingKey(), messages.UserCreated{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	})
	if err != nil {
		return u, errors.Wrapf(err, "publish user.created for %s", u.ID)
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, id string) (*models.User, error) {
	if id == "" {
		return nil, errors.Wrap(models.ErrInvalidInput, "id is required")
	}
	return s.repo.FindUserByID(ctx, id)
}
