package mocks

import (
	"context"

	"github.com/BearBump/Packaroo/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) delivery(args mock.Arguments) (*models.Delivery, error) {
	var d *models.Delivery
	if v := args.Get(0); v != nil {
		d = v.(*models.Delivery)
	}
	return d, args.Error(1)
}

func (m *MockRepository) deliveries(args mock.Arguments) ([]*models.Delivery, error) {
	var ds []*models.Delivery
	if v := args.Get(0); v != nil {
		ds = v.([]*models.Delivery)
	}
	return ds, args.Error(1)
}

func (m *MockRepository) FindDeliveryByID(ctx context.Context, id string) (*models.Delivery, error) {
	return m.delivery(m.Called(ctx, id))
}

func (m *MockRepository) FindDeliveryByPackageID(ctx context.Context, packageID string) (*models.Delivery, error) {
	return m.delivery(m.Called(ctx, packageID))
}

func (m *MockRepository) FindDeliveriesByDriverID(ctx context.Context, driverID string) ([]*models.Delivery, error) {
	return m.deliveries(m.Called(ctx, driverID))
}

func (m *MockRepository) FindDeliveriesByOwnerID(ctx context.Context, ownerID string) ([]*models.Delivery, error) {
	return m.deliveries(m.Called(ctx, ownerID))
}

func (m *MockRepository) FindPendingDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	return m.deliveries(m.Called(ctx))
}

func (m *MockRepository) CreateDelivery(ctx context.Context, d models.Delivery) (*models.Delivery, error) {
	return m.delivery(m.Called(ctx, d))
}

func (m *MockRepository) UpdateDelivery(ctx context.Context, id string, p models.DeliveryPatch) (*models.Delivery, error) {
	return m.delivery(m.Called(ctx, id, p))
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}
