package pgstore

import (
	"context"
	"time"

	"github.com/BearBump/Packaroo/internal/models"
	"github.com/pkg/errors"
)

const deliveryColumns = `
  id, package_id, owner_id, driver_id, status, tracking_id,
  recipient_name, recipient_address, recipient_contact,
  estimated_delivery_time, start_time, end_time, actual_delivery_time,
  issue, last_update, created_at, updated_at`

func scanDelivery(row rowScanner) (*models.Delivery, error) {
	var d models.Delivery
	var status string
	if err := row.Scan(
		&d.ID, &d.PackageID, &d.OwnerID, &d.DriverID, &status, &d.TrackingID,
		&d.RecipientName, &d.RecipientAddress, &d.RecipientContact,
		&d.EstimatedDeliveryTime, &d.StartTime, &d.EndTime, &d.ActualDeliveryTime,
		&d.Issue, &d.LastUpdate, &d.CreatedAt, &d.UpdatedAt,
	); err != nil {
		return nil, err
	}
	d.Status = models.DeliveryStatus(status)
	return &d, nil
}

func (s *Storage) findDeliveries(ctx context.Context, where string, args ...any) ([]*models.Delivery, error) {
	rows, err := s.db.Query(ctx, `SELECT`+deliveryColumns+`
FROM deliveries
WHERE `+where+`
ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select deliveries")
	}
	defer rows.Close()

	out := []*models.Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan delivery")
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) findDelivery(ctx context.Context, where string, arg any) (*models.Delivery, error) {
	d, err := scanDelivery(s.db.QueryRow(ctx, `SELECT`+deliveryColumns+`
FROM deliveries
WHERE `+where, arg))
	if isNoRows(err) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select delivery")
	}
	return d, nil
}

func (s *Storage) FindDeliveryByID(ctx context.Context, id string) (*models.Delivery, error) {
	return s.findDelivery(ctx, `id = $1`, id)
}

func (s *Storage) FindDeliveryByPackageID(ctx context.Context, packageID string) (*models.Delivery, error) {
	return s.findDelivery(ctx, `package_id = $1`, packageID)
}

func (s *Storage) FindDeliveriesByDriverID(ctx context.Context, driverID string) ([]*models.Delivery, error) {
	return s.findDeliveries(ctx, `driver_id = $1`, driverID)
}

func (s *Storage) FindDeliveriesByOwnerID(ctx context.Context, ownerID string) ([]*models.Delivery, error) {
	return s.findDeliveries(ctx, `owner_id = $1`, ownerID)
}

// FindPendingDeliveries returns deliveries in status pending or in transit.
func (s *Storage) FindPendingDeliveries(ctx context.Context) ([]*models.Delivery, error) {
	return s.findDeliveries(ctx, `status = ANY($1)`, []string{
		string(models.DeliveryStatusPending),
		string(models.DeliveryStatusInTransit),
	})
}

// CreateDelivery inserts d. A second delivery for the same package is ErrAlreadyExists.
func (s *Storage) CreateDelivery(ctx context.Context, d models.Delivery) (*models.Delivery, error) {
	created, err := scanDelivery(s.db.QueryRow(ctx, `
INSERT INTO deliveries (
  id, package_id, owner_id, driver_id, status, tracking_id,
  recipient_name, recipient_address, recipient_contact,
  estimated_delivery_time, start_time, end_time, actual_delivery_time,
  issue, last_update, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
ON CONFLICT DO NOTHING
RETURNING`+deliveryColumns,
		d.ID, d.PackageID, d.OwnerID, d.DriverID, string(d.Status), d.TrackingID,
		d.RecipientName, d.RecipientAddress, d.RecipientContact,
		utcPtr(d.EstimatedDeliveryTime), utcPtr(d.StartTime), utcPtr(d.EndTime), utcPtr(d.ActualDeliveryTime),
		d.Issue, d.LastUpdate.UTC(), d.CreatedAt.UTC(), d.UpdatedAt.UTC(),
	))
	if isNoRows(err) {
		return nil, errors.Wrapf(models.ErrAlreadyExists, "delivery for package %s", d.PackageID)
	}
	if err != nil {
		return nil, errors.Wrap(err, "insert delivery")
	}
	return created, nil
}

// UpdateDelivery applies the non-nil fields of p and returns the stored row. With
// p.ExpectedStatus set the row is only updated while its status still matches.
func (s *Storage) UpdateDelivery(ctx context.Context, id string, p models.DeliveryPatch) (*models.Delivery, error) {
	var status, expected *string
	if p.Status != nil {
		v := string(*p.Status)
		status = &v
	}
	if p.ExpectedStatus != nil {
		v := string(*p.ExpectedStatus)
		expected = &v
	}

	d, err := scanDelivery(s.db.QueryRow(ctx, `
UPDATE deliveries
SET
  status = COALESCE($2::text, status),
  driver_id = COALESCE($3::text, driver_id),
  start_time = COALESCE($4::timestamptz, start_time),
  end_time = COALESCE($5::timestamptz, end_time),
  actual_delivery_time = COALESCE($6::timestamptz, actual_delivery_time),
  issue = COALESCE($7::text, issue),
  last_update = COALESCE($8::timestamptz, last_update),
  updated_at = COALESCE($9::timestamptz, now())
WHERE id = $1 AND ($10::text IS NULL OR status = $10::text)
RETURNING`+deliveryColumns,
		id, status, p.DriverID,
		utcPtr(p.StartTime), utcPtr(p.EndTime), utcPtr(p.ActualDeliveryTime),
		p.Issue, utcPtr(p.LastUpdate), utcPtr(p.UpdatedAt), expected,
	))
	if isNoRows(err) {
		if expected == nil {
			return nil, errors.Wrapf(models.ErrNotFound, "delivery %s", id)
		}
		return nil, s.updateConflict(ctx, id, *expected)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update delivery")
	}
	return d, nil
}

// updateConflict tells a missing row from one whose status moved on.
func (s *Storage) updateConflict(ctx context.Context, id, expected string) error {
	var current string
	err := s.db.QueryRow(ctx, `SELECT status FROM deliveries WHERE id = $1`, id).Scan(&current)
	if isNoRows(err) {
		return errors.Wrapf(models.ErrNotFound, "delivery %s", id)
	}
	if err != nil {
		return errors.Wrap(err, "read delivery status")
	}
	return errors.Wrapf(models.ErrInvalidTransition, "delivery %s is %q, expected %q", id, current, expected)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
