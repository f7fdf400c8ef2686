package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

const reasonMissingCoordinates = "missing pickup or delivery coordinates"

// CreateOffer records a confirmed order and opens its first offer to the idle partners
// within the initial search radius. An empty candidate set, including one left by a
// candidate search that kept failing, still produces an offer so the retry scanner can
// widen it later.
func (s *Service) CreateOffer(ctx context.Context, event models.OrderConfirmed) (*models.Offer, error) {
	order, err := s.ensureOrder(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("create offer for %s: %w", event.OrderID, err)
	}
	if order.Delivery.Status != models.DeliveryStatusWaitingPartner {
		return nil, fmt.Errorf("create offer for %s (%s): %w", order.ID, order.Delivery.Status, ErrOrderNotWaiting)
	}
	if order.PickupLocation == nil || order.DeliveryLocation == nil {
		if failErr := s.FailOrder(ctx, order.ID, reasonMissingCoordinates); failErr != nil {
			return nil, errors.Join(ErrMissingCoordinates, failErr)
		}
		return nil, fmt.Errorf("create offer for %s: %w", order.ID, ErrMissingCoordinates)
	}

	radius := s.config.InitialRadiusKm
	var candidates []string
	err = s.withCommitRetry(ctx, "find_candidates", func(ctx context.Context) error {
		var err error
		candidates, err = s.candidates.FindCandidates(ctx, *order.PickupLocation, radius)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("create offer for %s: %w", order.ID, err)
		}
		// the order is already stored, so it needs an offer the scanner can widen
		zap.L().Warn("candidate search failed, opening offer without visible partners",
			zap.String("order_id", order.ID),
			zap.Error(err))
		candidates = nil
	}

	now := s.now()
	quote := s.pricing.Quote(distanceBetween(order.PickupLocation, order.DeliveryLocation))
	offer := &models.Offer{
		ID:                s.newID(),
		OrderID:           order.ID,
		PickupLocation:    *order.PickupLocation,
		DeliveryLocation:  *order.DeliveryLocation,
		DistanceKm:        quote.DistanceKm,
		EarningAmount:     quote.PartnerEarning,
		Status:            models.OfferStatusOpen,
		VisibleToPartners: candidates,
		AttemptNumber:     1,
		SearchRadiusKm:    radius,
		CreatedAt:         now,
		ExpiresAt:         now.Add(s.config.OfferTTL),
	}

	err = s.withCommitRetry(ctx, "create_offer", func(ctx context.Context) error {
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
			current, err := tx.Orders().Get(ctx, order.ID)
			if err != nil {
				return err
			}
			if current.Delivery.Status != models.DeliveryStatusWaitingPartner {
				return ErrOrderNotWaiting
			}
			if _, err := tx.Offers().FindActiveByOrder(ctx, order.ID); err == nil {
				return ErrActiveOfferExists
			} else if !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			if err := tx.Offers().Create(ctx, offer); err != nil {
				if errors.Is(err, repositories.ErrDuplicate) {
					return ErrActiveOfferExists
				}
				return err
			}

			delivery := current.Delivery
			delivery.OfferID = offer.ID
			delivery.DistanceKm = quote.DistanceKm
			delivery.Fee = quote.Fee
			delivery.PartnerEarning = quote.PartnerEarning
			delivery.PlatformCommission = quote.PlatformCommission
			delivery.DeliveryETAMinutes = s.etaMinutes(quote.DistanceKm)
			delivery.UpdatedAt = now
			if err := tx.Orders().UpdateDelivery(ctx, order.ID, delivery); err != nil {
				return err
			}
			order.Delivery = delivery
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create offer for %s: %w", order.ID, err)
	}

	zap.L().Info("offer created",
		zap.String("offer_id", offer.ID),
		zap.String("order_id", order.ID),
		zap.Int("candidates", len(candidates)),
		zap.Float64("distance_km", quote.DistanceKm),
		zap.Float64("fee", quote.Fee))

	s.publishOffer(offer)
	s.publishOrder(order)
	return offer, nil
}

// ensureOrder returns the stored order, creating it in waiting_partner on first sight.
func (s *Service) ensureOrder(ctx context.Context, event models.OrderConfirmed) (*models.Order, error) {
	order, err := s.store.Orders().Get(ctx, event.OrderID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	order = &models.Order{
		ID:               event.OrderID,
		StoreID:          event.StoreID,
		CustomerID:       event.CustomerID,
		PickupLocation:   event.PickupLocation,
		DeliveryLocation: event.DeliveryLocation,
		TotalAmount:      event.TotalAmount,
		CreatedAt:        now,
		Delivery: models.DeliveryInfo{
			Status:    models.DeliveryStatusWaitingPartner,
			UpdatedAt: now,
		},
	}
	if err := s.store.Orders().Create(ctx, order); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return s.store.Orders().Get(ctx, event.OrderID)
		}
		return nil, err
	}
	return order, nil
}

// FailOrder moves an undelivered order to failed, cancels its open offers and releases an
// assigned partner. Failing an already failed order is a no-op.
func (s *Service) FailOrder(ctx context.Context, orderID, reason string) error {
	var (
		order    *models.Order
		released *models.DeliveryPartner
		changed  bool
	)
	err := s.withCommitRetry(ctx, "fail_order", func(ctx context.Context) error {
		released, changed = nil, false
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
			current, err := tx.Orders().Get(ctx, orderID)
			if err != nil {
				if errors.Is(err, repositories.ErrNotFound) {
					return ErrOrderNotFound
				}
				return err
			}
			switch current.Delivery.Status {
			case models.DeliveryStatusFailed:
				order = current
				return nil
			case models.DeliveryStatusDelivered:
				return ErrOrderNotWaiting
			}

			if current.Delivery.Partner != nil {
				partner, err := tx.Partners().Get(ctx, current.Delivery.Partner.ID)
				if err == nil && partner.CurrentOrderID == orderID {
					partner.OperationalStatus = models.OperationalStatusOnlineIdle
					partner.CurrentOrderID = ""
					partner.LastUpdateTime = s.now()
					if err := tx.Partners().Update(ctx, partner); err != nil {
						return err
					}
					released = partner
				} else if err != nil && !errors.Is(err, repositories.ErrNotFound) {
					return err
				}
			}

			if err := failOrderTx(ctx, tx, current, reason, s.now()); err != nil {
				return err
			}
			order, changed = current, true
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("fail order %s: %w", orderID, err)
	}
	if !changed {
		return nil
	}

	zap.L().Info("order failed", zap.String("order_id", orderID), zap.String("reason", reason))
	s.publishOrder(order)
	if released != nil {
		s.publishPartner(released)
	}
	return nil
}

func failOrderTx(ctx context.Context, tx repositories.Repositories, order *models.Order, reason string, now time.Time) error {
	order.Delivery.Status = models.DeliveryStatusFailed
	order.Delivery.FailureReason = reason
	order.Delivery.UpdatedAt = now
	if err := tx.Orders().UpdateDelivery(ctx, order.ID, order.Delivery); err != nil {
		return err
	}
	_, err := tx.Offers().CancelOpenByOrder(ctx, order.ID, "")
	return err
}
