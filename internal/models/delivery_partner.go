package models

import "time"

type PartnerMetrics struct {
	TotalDeliveries     int     `json:"total_deliveries"`
	CompletedDeliveries int     `json:"completed_deliveries"`
	OnTimeDeliveries    int     `json:"on_time_deliveries"`
	TotalEarnings       float64 `json:"total_earnings"`
	CurrentBalance      float64 `json:"current_balance"`
	OnTimeRate          float64 `json:"on_time_rate"` // percentage of completed deliveries
}

type DeliveryPartner struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Phone             string         `json:"phone"`
	VehicleType       string         `json:"vehicle_type"`
	JoinDate          time.Time      `json:"join_date"`
	Rating            float64        `json:"rating"`
	Status            string         `json:"status"`             // "active", "suspended"
	OperationalStatus string         `json:"operational_status"` // "online_idle", "on_delivery", "offline"
	CurrentLocation   *Location      `json:"current_location,omitempty"`
	CurrentOrderID    string         `json:"current_order_id,omitempty"`
	Metrics           PartnerMetrics `json:"metrics"`
	LastUpdateTime    time.Time      `json:"last_update_time"`
}

// IsAvailable reports whether the partner may be offered new deliveries.
func (p *DeliveryPartner) IsAvailable() bool {
	return p.Status == PartnerStatusActive &&
		p.OperationalStatus == OperationalStatusOnlineIdle &&
		p.CurrentLocation != nil
}

func (p *DeliveryPartner) Snapshot() *PartnerSnapshot {
	return &PartnerSnapshot{
		ID:          p.ID,
		Name:        p.Name,
		Phone:       p.Phone,
		VehicleType: p.VehicleType,
	}
}
