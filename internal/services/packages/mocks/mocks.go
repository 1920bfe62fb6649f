package mocks

import (
	"context"

	"github.com/BearBump/Packaroo/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) pkg(args mock.Arguments) (*models.Package, error) {
	var p *models.Package
	if v := args.Get(0); v != nil {
		p = v.(*models.Package)
	}
	return p, args.Error(1)
}

func (m *MockRepository) CreatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	return m.pkg(m.Called(ctx, p))
}

func (m *MockRepository) FindPackageByID(ctx context.Context, id string) (*models.Package, error) {
	return m.pkg(m.Called(ctx, id))
}

func (m *MockRepository) UpdatePackage(ctx context.Context, id string, patch models.PackagePatch) (*models.Package, error) {
	return m.pkg(m.Called(ctx, id, patch))
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}
