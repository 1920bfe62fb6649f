package pgstore

import (
	"context"

	"github.com/BearBump/Packaroo/internal/models"
	"github.com/pkg/errors"
)

const packageColumns = `
  id, owner_id, status, tracking_id, name, description, weight,
  length, width, height,
  recipient_name, recipient_address, recipient_contact,
  estimated_delivery_time, images, driver_id, started_at, delivered_at,
  last_update, created_at, updated_at`

func scanPackage(row rowScanner) (*models.Package, error) {
	var p models.Package
	if err := row.Scan(
		&p.ID, &p.OwnerID, &p.Status, &p.TrackingID, &p.Name, &p.Description, &p.Weight,
		&p.Dimensions.Length, &p.Dimensions.Width, &p.Dimensions.Height,
		&p.RecipientName, &p.RecipientAddress, &p.RecipientContact,
		&p.EstimatedDeliveryTime, &p.Images, &p.DriverID, &p.StartedAt, &p.DeliveredAt,
		&p.LastUpdate, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return &p, nil
}

func (s *Storage) CreatePackage(ctx context.Context, p models.Package) (*models.Package, error) {
	images := p.Images
	if images == nil {
		images = []string{}
	}

	created, err := scanPackage(s.db.QueryRow(ctx, `
INSERT INTO packages (
  id, owner_id, status, tracking_id, name, description, weight,
  length, width, height,
  recipient_name, recipient_address, recipient_contact,
  estimated_delivery_time, images, driver_id, started_at, delivered_at,
  last_update, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
RETURNING`+packageColumns,
		p.ID, p.OwnerID, p.Status, p.TrackingID, p.Name, p.Description, p.Weight,
		p.Dimensions.Length, p.Dimensions.Width, p.Dimensions.Height,
		p.RecipientName, p.RecipientAddress, p.RecipientContact,
		utcPtr(p.EstimatedDeliveryTime), images, p.DriverID, utcPtr(p.StartedAt), utcPtr(p.DeliveredAt),
		p.LastUpdate.UTC(), p.CreatedAt.UTC(), p.UpdatedAt.UTC(),
	))
	if isUniqueViolation(err) {
		return nil, errors.Wrapf(models.ErrAlreadyExists, "package %s", p.ID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert package")
	}
	return created, nil
}

func (s *Storage) FindPackageByID(ctx context.Context, id string) (*models.Package, error) {
	p, err := scanPackage(s.db.QueryRow(ctx, `SELECT`+packageColumns+`
FROM packages
WHERE id = $1`, id))
	if isNoRows(err) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select package")
	}
	return p, nil
}

// UpdatePackage applies the non-nil fields of patch and returns the stored row.
func (s *Storage) UpdatePackage(ctx context.Context, id string, patch models.PackagePatch) (*models.Package, error) {
	var length, width, height *float64
	if patch.Dimensions != nil {
		length, width, height = &patch.Dimensions.Length, &patch.Dimensions.Width, &patch.Dimensions.Height
	}

	p, err := scanPackage(s.db.QueryRow(ctx, `
UPDATE packages
SET
  name = COALESCE($2::text, name),
  description = COALESCE($3::text, description),
  weight = COALESCE($4::double precision, weight),
  length = COALESCE($5::double precision, length),
  width = COALESCE($6::double precision, width),
  height = COALESCE($7::double precision, height),
  recipient_name = COALESCE($8::text, recipient_name),
  recipient_address = COALESCE($9::text, recipient_address),
  recipient_contact = COALESCE($10::text, recipient_contact),
  estimated_delivery_time = COALESCE($11::timestamptz, estimated_delivery_time),
  images = COALESCE($12::text[], images),
  status = COALESCE($13::text, status),
  driver_id = COALESCE($14::text, driver_id),
  started_at = COALESCE($15::timestamptz, started_at),
  delivered_at = COALESCE($16::timestamptz, delivered_at),
  last_update = COALESCE($17::timestamptz, last_update),
  updated_at = now()
WHERE id = $1
RETURNING`+packageColumns,
		id, patch.Name, patch.Description, patch.Weight,
		length, width, height,
		patch.RecipientName, patch.RecipientAddress, patch.RecipientContact,
		utcPtr(patch.EstimatedDeliveryTime), patch.Images,
		patch.Status, patch.DriverID, utcPtr(patch.StartedAt), utcPtr(patch.DeliveredAt), utcPtr(patch.LastUpdate),
	))
	if isNoRows(err) {
		return nil, errors.Wrapf(models.ErrNotFound, "package %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update package")
	}
	return p, nil
}
