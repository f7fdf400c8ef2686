package models

import "time"

const (
	TopicOrderConfirmed = "orders.confirmed"
	TopicOrderDelivered = "orders.delivered"
	TopicOrderCancelled = "orders.cancelled"
	TopicOfferVisible   = "dispatch.offer_visible"
	TopicOrderDelivery  = "dispatch.order_delivery"
	TopicCourierMetrics = "dispatch.courier_metrics"
)

// OrderConfirmed is consumed from the order-management service.
type OrderConfirmed struct {
	OrderID          string    `json:"order_id"`
	StoreID          string    `json:"store_id"`
	CustomerID       string    `json:"customer_id,omitempty"`
	PickupLocation   *Location `json:"pickup_location"`
	DeliveryLocation *Location `json:"delivery_location"`
	TotalAmount      float64   `json:"total_amount"`
}

type DeliveryCompleted struct {
	OrderID     string    `json:"order_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type OrderCancelled struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// OfferVisible is the fan-out list handed to the push-notification sender.
type OfferVisible struct {
	Timestamp      int64    `json:"timestamp"`
	OfferID        string   `json:"offerId"`
	OrderID        string   `json:"orderId"`
	PartnerIDs     []string `json:"partnerIds"`
	AttemptNumber  int      `json:"attemptNumber"`
	SearchRadiusKm float64  `json:"searchRadiusKm"`
	DistanceKm     float64  `json:"distanceKm"`
	EarningAmount  float64  `json:"earningAmount"`
	ExpiresAt      int64    `json:"expiresAt"`
}

type OrderDeliveryUpdate struct {
	Timestamp int64        `json:"timestamp"`
	OrderID   string       `json:"orderId"`
	Delivery  DeliveryInfo `json:"delivery"`
}

type CourierMetricsUpdate struct {
	Timestamp         int64          `json:"timestamp"`
	PartnerID         string         `json:"partnerId"`
	OperationalStatus string         `json:"operationalStatus"`
	CurrentOrderID    string         `json:"currentOrderId,omitempty"`
	Metrics           PartnerMetrics `json:"metrics"`
}
