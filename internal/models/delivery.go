package models

import "time"

type DeliveryStatus string

// Статусы доставки. "in transit" пишется с пробелом: так его ждут потребители на шине.
const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusAssigned  DeliveryStatus = "assigned"
	DeliveryStatusInTransit DeliveryStatus = "in transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

// ParseDeliveryStatus accepts the wire spelling and the "in_transit" alias.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	switch s {
	case "pending":
		return DeliveryStatusPending, true
	case "assigned":
		return DeliveryStatusAssigned, true
	case "in transit", "in_transit":
		return DeliveryStatusInTransit, true
	case "delivered":
		return DeliveryStatusDelivered, true
	case "failed":
		return DeliveryStatusFailed, true
	default:
		return "", false
	}
}

func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusFailed
}

type Delivery struct {
	ID         string         `json:"id"`
	PackageID  string         `json:"packageId"`
	OwnerID    string         `json:"ownerId"`
	DriverID   *string        `json:"driverId"`
	Status     DeliveryStatus `json:"status"`
	TrackingID string         `json:"trackingId"`

	RecipientName    string `json:"recipientName"`
	RecipientAddress string `json:"recipientAddress"`
	RecipientContact string `json:"recipientContact"`

	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime"`
	StartTime             *time.Time `json:"startTime"`
	EndTime               *time.Time `json:"endTime"`
	ActualDeliveryTime    *time.Time `json:"actualDeliveryTime"`

	Issue *string `json:"issue,omitempty"`

	LastUpdate time.Time `json:"lastUpdate"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// DeliveryPatch is a partial update: nil fields are left untouched by the repository.
type DeliveryPatch struct {
	Status             *DeliveryStatus
	DriverID           *string
	StartTime          *time.Time
	EndTime            *time.Time
	ActualDeliveryTime *time.Time
	Issue              *string
	LastUpdate         *time.Time
	UpdatedAt          *time.Time

	// ExpectedStatus makes the update conditional: it applies only while the stored
	// status still equals it, otherwise the repository returns ErrInvalidTransition.
	ExpectedStatus *DeliveryStatus
}

// PatchFrom collects every field a transition may touch from the resulting delivery.
func PatchFrom(d Delivery) DeliveryPatch {
	status := d.Status
	lastUpdate := d.LastUpdate
	updatedAt := d.UpdatedAt
	return DeliveryPatch{
		Status:             &status,
		DriverID:           d.DriverID,
		StartTime:          d.StartTime,
		EndTime:            d.EndTime,
		ActualDeliveryTime: d.ActualDeliveryTime,
		Issue:              d.Issue,
		LastUpdate:         &lastUpdate,
		UpdatedAt:          &updatedAt,
	}
}
