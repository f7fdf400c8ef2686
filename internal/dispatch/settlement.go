package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/pricing"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

const reasonCourierMissing = "delivery partner not found at settlement"

// CompleteDelivery settles an order on its transition into delivered: one earning record,
// the partner's metrics and the partner's release back to idle commit together. Calling it
// again for a delivered order returns the existing earning and changes nothing.
func (s *Service) CompleteDelivery(ctx context.Context, orderID string, deliveredAt time.Time) (*models.EarningRecord, error) {
	var (
		record  *models.EarningRecord
		order   *models.Order
		partner *models.DeliveryPartner
		settled bool
	)
	err := s.withCommitRetry(ctx, "settle", func(ctx context.Context) error {
		settled = false
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
			current, err := tx.Orders().Get(ctx, orderID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return ErrOrderNotFound
				}
				return err
			}

			switch current.Delivery.Status {
			case models.DeliveryStatusDelivered:
				record, err = tx.Earnings().GetByOrder(ctx, orderID)
				if errors.Is(err, repositories.ErrNotFound) {
					return nil
				}
				return err
			case models.DeliveryStatusPartnerAssigned, models.DeliveryStatusInDelivery:
			default:
				return ErrNotAssigned
			}
			if current.Delivery.Partner == nil {
				return ErrNotAssigned
			}

			courier, err := tx.Partners().Get(ctx, current.Delivery.Partner.ID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return ErrCourierNotFound
				}
				return err
			}

			now := s.now()
			earning := &models.EarningRecord{
				ID:          s.newID(),
				PartnerID:   courier.ID,
				OrderID:     orderID,
				GrossAmount: current.Delivery.Fee,
				PlatformFee: current.Delivery.PlatformCommission,
				NetAmount:   current.Delivery.PartnerEarning,
				Status:      models.EarningStatusAvailable,
				CreatedAt:   now,
				CompletedAt: deliveredAt,
			}
			if err := tx.Earnings().Create(ctx, earning); err != nil {
				return err
			}

			s.applyMetrics(courier, earning.NetAmount, s.onTime(current.Delivery, deliveredAt))
			courier.OperationalStatus = models.OperationalStatusOnlineIdle
			courier.CurrentOrderID = ""
			courier.LastUpdateTime = now
			if err := tx.Partners().Update(ctx, courier); err != nil {
				return err
			}

			delivered := deliveredAt
			current.Delivery.Status = models.DeliveryStatusDelivered
			current.Delivery.DeliveredAt = &delivered
			current.Delivery.UpdatedAt = now
			if err := tx.Orders().UpdateDelivery(ctx, orderID, current.Delivery); err != nil {
				return err
			}

			record, order, partner, settled = earning, current, courier, true
			return nil
		})
	})
	if errors.Is(err, ErrCourierNotFound) {
		zap.L().Error("settlement aborted, partner missing", zap.String("order_id", orderID))
		if failErr := s.FailOrder(ctx, orderID, reasonCourierMissing); failErr != nil {
			err = errors.Join(err, failErr)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("complete delivery %s: %w", orderID, err)
	}
	if !settled {
		return record, nil
	}

	zap.L().Info("delivery settled",
		zap.String("order_id", orderID),
		zap.String("partner_id", partner.ID),
		zap.Float64("net_amount", record.NetAmount),
		zap.Int("on_time_deliveries", partner.Metrics.OnTimeDeliveries))

	s.publishOrder(order)
	s.publishPartner(partner)
	return record, nil
}

// onTime reports whether the delivery finished within the tolerance of the quoted ETAs.
func (s *Service) onTime(delivery models.DeliveryInfo, deliveredAt time.Time) bool {
	if delivery.AssignedAt == nil {
		return false
	}
	pickup := delivery.PickupETAMinutes
	if pickup <= 0 {
		pickup = s.config.DefaultETAMinutes
	}
	dropoff := delivery.DeliveryETAMinutes
	if dropoff <= 0 {
		dropoff = s.config.DefaultETAMinutes
	}
	allowed := time.Duration(s.config.OnTimeTolerance * float64(pickup+dropoff) * float64(time.Minute))
	return deliveredAt.Sub(*delivery.AssignedAt) <= allowed
}

func (s *Service) applyMetrics(partner *models.DeliveryPartner, net float64, onTime bool) {
	m := &partner.Metrics
	m.TotalDeliveries++
	m.CompletedDeliveries++
	if onTime {
		m.OnTimeDeliveries++
	}
	m.TotalEarnings = pricing.RoundMoney(m.TotalEarnings + net)
	m.CurrentBalance = pricing.RoundMoney(m.CurrentBalance + net)
	m.OnTimeRate = pricing.RoundMoney(float64(m.OnTimeDeliveries) / float64(m.CompletedDeliveries) * 100)
}
