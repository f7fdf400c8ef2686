package models

import (
	"slices"
	"time"
)

// Offer is a time-boxed proposal pairing one order with the partners allowed to accept it.
type Offer struct {
	ID                string    `json:"id"`
	OrderID           string    `json:"order_id"`
	PickupLocation    Location  `json:"pickup_location"`
	DeliveryLocation  Location  `json:"delivery_location"`
	DistanceKm        float64   `json:"distance_km"`
	EarningAmount     float64   `json:"earning_amount"`
	Status            string    `json:"status"`
	VisibleToPartners []string  `json:"visible_to_partners"`
	AttemptNumber     int       `json:"attempt_number"`
	SearchRadiusKm    float64   `json:"search_radius_km"`
	CreatedAt         time.Time `json:"created_at"`
	ExpiresAt         time.Time `json:"expires_at"`
	AcceptedBy        string    `json:"accepted_by,omitempty"`
	Version           int64     `json:"version"`
}

func (o *Offer) IsActive() bool {
	return o.Status == OfferStatusOpen || o.Status == OfferStatusAccepted
}

func (o *Offer) IsVisibleTo(partnerID string) bool {
	return slices.Contains(o.VisibleToPartners, partnerID)
}

// Clone returns a deep copy so stored offers never share the visibility slice.
func (o *Offer) Clone() *Offer {
	c := *o
	c.VisibleToPartners = slices.Clone(o.VisibleToPartners)
	return &c
}
