package models

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Delivery lifecycle:
//
//	pending ──> assigned ──> in transit ──> delivered
//	   │            │            │
//	   └────────────┴────────────┴──> failed   (issue reported)
//
// pending may also go straight to in transit. delivered and failed are terminal.
//
// assigned is accepted from any non-terminal status, including assigned itself
// (reassignment to another driver).

// TransitionInput carries the optional fields a caller may supply with a status change.
type TransitionInput struct {
	Status   DeliveryStatus
	DriverID string
	Issue    string
}

// NewPendingDelivery builds the initial delivery for a package. Deliveries are never
// created in a terminal status.
func NewPendingDelivery(id, packageID, ownerID, trackingID string, now time.Time) Delivery {
	return Delivery{
		ID:         id,
		PackageID:  packageID,
		OwnerID:    ownerID,
		Status:     DeliveryStatusPending,
		TrackingID: trackingID,
		LastUpdate: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Transition validates the move against the transition table and returns the updated
// copy. On error the receiver is left as it was.
func (d Delivery) Transition(in TransitionInput, now time.Time) (Delivery, error) {
	if err := d.checkSource(in.Status); err != nil {
		return d, err
	}

	next := d
	driverID := strings.TrimSpace(in.DriverID)

	switch in.Status {
	case DeliveryStatusAssigned:
		if driverID == "" {
			return d, errors.Wrap(ErrPreconditionFailed, "driverId is required to assign a delivery")
		}
		next.DriverID = &driverID

	case DeliveryStatusInTransit:
		if driverID != "" {
			next.DriverID = &driverID
		}
		t := now
		next.StartTime = &t

	case DeliveryStatusDelivered:
		if driverID != "" {
			next.DriverID = &driverID
		}
		if next.DriverID == nil || *next.DriverID == "" {
			return d, errors.Wrap(ErrPreconditionFailed, "a driver must be set before the delivery is completed")
		}
		t := now
		next.EndTime = &t
		actual := now
		next.ActualDeliveryTime = &actual

	case DeliveryStatusFailed:
		issue := strings.TrimSpace(in.Issue)
		if issue == "" {
			return d, errors.Wrap(ErrPreconditionFailed, "issue is required to fail a delivery")
		}
		next.Issue = &issue
	}

	next.Status = in.Status
	next.touch(now)
	return next, nil
}

// ReportIssue marks the delivery failed. Unlike Transition it does not consult the
// transition table, so a terminal delivery can still be flipped to failed.
// TODO: decide whether terminal deliveries should reject issue reports instead of accepting them.
func (d Delivery) ReportIssue(issue string, now time.Time) (Delivery, error) {
	issue = strings.TrimSpace(issue)
	if issue == "" {
		return d, errors.Wrap(ErrPreconditionFailed, "issue is required")
	}
	next := d
	next.Status = DeliveryStatusFailed
	next.Issue = &issue
	next.touch(now)
	return next, nil
}

func (d Delivery) checkSource(target DeliveryStatus) error {
	if d.Status.IsTerminal() {
		return errors.Wrapf(ErrInvalidTransition, "delivery is already %q", d.Status)
	}

	var allowed bool
	switch target {
	case DeliveryStatusAssigned, DeliveryStatusFailed:
		allowed = true
	case DeliveryStatusInTransit:
		allowed = d.Status == DeliveryStatusPending || d.Status == DeliveryStatusAssigned
	case DeliveryStatusDelivered:
		allowed = d.Status == DeliveryStatusInTransit
	case DeliveryStatusPending:
		allowed = false
	default:
		return errors.Wrapf(ErrInvalidTransition, "unknown status %q", target)
	}

	if !allowed {
		return errors.Wrapf(ErrInvalidTransition, "cannot move from %q to %q", d.Status, target)
	}
	return nil
}

// touch keeps updatedAt/lastUpdate monotonic even if the clock steps back.
func (d *Delivery) touch(now time.Time) {
	if now.Before(d.UpdatedAt) {
		now = d.UpdatedAt
	}
	if now.Before(d.LastUpdate) {
		now = d.LastUpdate
	}
	d.UpdatedAt = now
	d.LastUpdate = now
}
