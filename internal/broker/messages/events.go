package messages

import (
	"maps"
	"slices"
	"time"

	"github.com/pkg/errors"
)

// Message is implemented by every event payload.
type Message interface {
	Kind() Kind
	Validate() error
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type PackageCreated struct {
	ID                    string     `json:"id"`
	OwnerID               string     `json:"ownerId"`
	Status                string     `json:"status"`
	TrackingID            string     `json:"trackingId"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	Name                  string     `json:"name"`
	Description           string     `json:"description"`
	Weight                float64    `json:"weight"`
	Dimensions            Dimensions `json:"dimensions"`
	RecipientName         string     `json:"recipientName"`
	RecipientAddress      string     `json:"recipientAddress"`
	RecipientContact      string     `json:"recipientContact"`
	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime"`
	LastUpdate            time.Time  `json:"lastUpdate"`
	Images                []string   `json:"images"`
}

func (PackageCreated) Kind() Kind { return KindPackageCreated }

func (m PackageCreated) Validate() error {
	return required(map[string]string{"id": m.ID, "ownerId": m.OwnerID, "trackingId": m.TrackingID})
}

type PackageUpdated struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	TrackingID string `json:"trackingId"`
}

func (PackageUpdated) Kind() Kind { return KindPackageUpdated }

func (m PackageUpdated) Validate() error {
	return required(map[string]string{"id": m.ID})
}

type DeliveryCreated struct {
	ID         string `json:"id"`
	PackageID  string `json:"packageId"`
	Status     string `json:"status"`
	TrackingID string `json:"trackingId"`
}

func (DeliveryCreated) Kind() Kind { return KindDeliveryCreated }

func (m DeliveryCreated) Validate() error {
	return required(map[string]string{"id": m.ID, "packageId": m.PackageID, "status": m.Status})
}

// DeliveryUpdated: StartedAt is set only by the move to "in transit", CompletedAt only
// by the move to "delivered". Both are serialized as null otherwise.
type DeliveryUpdated struct {
	ID          string     `json:"id"`
	PackageID   string     `json:"packageId"`
	Status      string     `json:"status"`
	DriverID    *string    `json:"driverId"`
	CompletedAt *time.Time `json:"completedAt"`
	StartedAt   *time.Time `json:"startedAt"`
}

func (DeliveryUpdated) Kind() Kind { return KindDeliveryUpdated }

func (m DeliveryUpdated) Validate() error {
	return required(map[string]string{"id": m.ID, "packageId": m.PackageID, "status": m.Status})
}

type UserCreated struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (UserCreated) Kind() Kind { return KindUserCreated }

func (m UserCreated) Validate() error {
	return required(map[string]string{"id": m.ID, "email": m.Email})
}

func required(fields map[string]string) error {
	for _, name := range slices.Sorted(maps.Keys(fields)) {
		if fields[name] == "" {
			return errors.Wrapf(ErrInvalidPayload, "%s is required", name)
		}
	}
	return nil
}
