package models

import "time"

type EarningRecord struct {
	ID          string    `json:"id"`
	PartnerID   string    `json:"partner_id"`
	OrderID     string    `json:"order_id"`
	GrossAmount float64   `json:"gross_amount"` // delivery fee charged
	PlatformFee float64   `json:"platform_fee"`
	NetAmount   float64   `json:"net_amount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
}
