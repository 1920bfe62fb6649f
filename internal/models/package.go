package models

import "time"

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Package is owned by the package service. Status mirrors the delivery status
// projected from delivery.updated events.
type Package struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	Status      string     `json:"status"`
	TrackingID  string     `json:"trackingId"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Weight      float64    `json:"weight"`
	Dimensions  Dimensions `json:"dimensions"`

	RecipientName    string `json:"recipientName"`
	RecipientAddress string `json:"recipientAddress"`
	RecipientContact string `json:"recipientContact"`

	EstimatedDeliveryTime *time.Time `json:"estimatedDeliveryTime"`
	Images                []string   `json:"images"`

	DriverID    *string    `json:"driverId"`
	StartedAt   *time.Time `json:"startedAt"`
	DeliveredAt *time.Time `json:"deliveredAt"`

	LastUpdate time.Time `json:"lastUpdate"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

type PackageCreateInput struct {
	OwnerID               string
	Name                  string
	Description           string
	Weight                float64
	Dimensions            Dimensions
	RecipientName         string
	RecipientAddress      string
	RecipientContact      string
	EstimatedDeliveryTime *time.Time
	Images                []string
}

// PackagePatch is a partial update: nil fields are left untouched.
type PackagePatch struct {
	Name                  *string
	Description           *string
	Weight                *float64
	Dimensions            *Dimensions
	RecipientName         *string
	RecipientAddress      *string
	RecipientContact      *string
	EstimatedDeliveryTime *time.Time
	Images                []string

	Status      *string
	DriverID    *string
	StartedAt   *time.Time
	DeliveredAt *time.Time
	LastUpdate  *time.Time
}
