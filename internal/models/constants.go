package models

const (
	DeliveryStatusWaitingPartner  = "waiting_partner"
	DeliveryStatusPartnerAssigned = "partner_assigned"
	DeliveryStatusInDelivery      = "in_delivery"
	DeliveryStatusDelivered       = "delivered"
	DeliveryStatusFailed          = "failed"

	OfferStatusOpen      = "open"
	OfferStatusAccepted  = "accepted"
	OfferStatusCancelled = "cancelled"
	OfferStatusExpired   = "expired"

	PartnerStatusActive    = "active"
	PartnerStatusSuspended = "suspended"

	OperationalStatusOnlineIdle = "online_idle"
	OperationalStatusOnDelivery = "on_delivery"
	OperationalStatusOffline    = "offline"

	EarningStatusAvailable = "available"

	FailureReasonNoCourier = "no courier available"
)
