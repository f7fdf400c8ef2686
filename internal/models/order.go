package models

import "time"

// Order is the dispatch view of an order owned by the order-management service.
// Dispatch only writes the Delivery block.
type Order struct {
	ID               string       `json:"id"`
	StoreID          string       `json:"store_id"`
	CustomerID       string       `json:"customer_id"`
	PickupLocation   *Location    `json:"pickup_location,omitempty"`
	DeliveryLocation *Location    `json:"delivery_location,omitempty"`
	TotalAmount      float64      `json:"total_amount"`
	CreatedAt        time.Time    `json:"created_at"`
	Delivery         DeliveryInfo `json:"delivery"`
}

type DeliveryInfo struct {
	Status             string           `json:"status"`
	OfferID            string           `json:"offer_id,omitempty"`
	DistanceKm         float64          `json:"distance_km"`
	Fee                float64          `json:"fee"`
	PartnerEarning     float64          `json:"partner_earning"`
	PlatformCommission float64          `json:"platform_commission"`
	PickupETAMinutes   int              `json:"pickup_eta_minutes,omitempty"`
	DeliveryETAMinutes int              `json:"delivery_eta_minutes,omitempty"`
	Partner            *PartnerSnapshot `json:"partner,omitempty"`
	AssignedAt         *time.Time       `json:"assigned_at,omitempty"`
	DeliveredAt        *time.Time       `json:"delivered_at,omitempty"`
	FailureReason      string           `json:"failure_reason,omitempty"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

type PartnerSnapshot struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Phone       string `json:"phone"`
	VehicleType string `json:"vehicle_type"`
}
