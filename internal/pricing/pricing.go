// Package pricing turns a delivery distance into the customer fee and the partner's share of it.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
)

type Policy struct {
	perKmRate    decimal.Decimal
	minimumFee   decimal.Decimal
	partnerShare decimal.Decimal
}

// Quote is the fee split for a single delivery. All amounts are rounded to cents.
type Quote struct {
	DistanceKm         float64 `json:"distance_km"`
	Fee                float64 `json:"fee"`
	PartnerEarning     float64 `json:"partner_earning"`
	PlatformCommission float64 `json:"platform_commission"`
}

func DefaultPolicy() Policy {
	return NewPolicy(models.PricingConfig{PerKmRate: 1.50, MinimumFee: 5.00, PartnerShare: 0.80})
}

func NewPolicy(cfg models.PricingConfig) Policy {
	return Policy{
		perKmRate:    decimal.NewFromFloat(cfg.PerKmRate),
		minimumFee:   decimal.NewFromFloat(cfg.MinimumFee),
		partnerShare: decimal.NewFromFloat(cfg.PartnerShare),
	}
}

// Fee is max(distance * rate, minimum).
func (p Policy) Fee(distanceKm float64) float64 {
	fee := decimal.NewFromFloat(distanceKm).Mul(p.perKmRate)
	if fee.LessThan(p.minimumFee) {
		fee = p.minimumFee
	}
	return toMoney(fee)
}

func (p Policy) Earning(fee float64) float64 {
	return toMoney(decimal.NewFromFloat(fee).Mul(p.partnerShare))
}

// Quote prices a raw distance. The fee is computed from the distance as stored (0.1 km).
func (p Policy) Quote(distanceKm float64) Quote {
	km := geo.RoundKm(distanceKm)
	fee := p.Fee(km)
	earning := p.Earning(fee)
	commission := toMoney(decimal.NewFromFloat(fee).Sub(decimal.NewFromFloat(earning)))

	return Quote{
		DistanceKm:         km,
		Fee:                fee,
		PartnerEarning:     earning,
		PlatformCommission: commission,
	}
}

func toMoney(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// RoundMoney rounds an amount to cents.
func RoundMoney(amount float64) float64 {
	return toMoney(decimal.NewFromFloat(amount))
}
