package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

// UpdateCourierLocation stores the partner's latest position and mirrors it to the tracker.
func (s *Service) UpdateCourierLocation(ctx context.Context, partnerID string, location models.Location) error {
	if err := s.store.Partners().UpdateLocation(ctx, partnerID, location); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("update location of %s: %w", partnerID, ErrCourierNotFound)
		}
		return fmt.Errorf("update location of %s: %w", partnerID, err)
	}
	if s.tracker != nil {
		if err := s.tracker.Track(ctx, partnerID, location); err != nil {
			zap.L().Warn("failed to track partner location", zap.String("partner_id", partnerID), zap.Error(err))
		}
	}
	return nil
}

// SetOperationalStatus switches a partner between online_idle and offline.
// A partner on a delivery stays on it until the delivery settles.
func (s *Service) SetOperationalStatus(ctx context.Context, partnerID, status string) (*models.DeliveryPartner, error) {
	if status != models.OperationalStatusOnlineIdle && status != models.OperationalStatusOffline {
		return nil, fmt.Errorf("set status %q: %w", status, ErrInvalidStatus)
	}

	var partner *models.DeliveryPartner
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		var err error
		partner, err = tx.Partners().Get(ctx, partnerID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrCourierNotFound
			}
			return err
		}
		if partner.OperationalStatus == models.OperationalStatusOnDelivery {
			return ErrPartnerUnavailable
		}
		partner.OperationalStatus = status
		partner.LastUpdateTime = s.now()
		return tx.Partners().Update(ctx, partner)
	})
	if err != nil {
		return nil, fmt.Errorf("set status of %s: %w", partnerID, err)
	}

	s.syncTracker(ctx, partner)
	s.publishPartner(partner)
	return partner, nil
}

// syncTracker drops offline partners from the tracker and re-adds partners coming online.
func (s *Service) syncTracker(ctx context.Context, partner *models.DeliveryPartner) {
	if s.tracker == nil {
		return
	}
	var err error
	switch {
	case partner.OperationalStatus == models.OperationalStatusOffline:
		err = s.tracker.Forget(ctx, partner.ID)
	case partner.CurrentLocation != nil:
		err = s.tracker.Track(ctx, partner.ID, *partner.CurrentLocation)
	}
	if err != nil {
		zap.L().Warn("failed to sync partner with tracker",
			zap.String("partner_id", partner.ID),
			zap.String("status", partner.OperationalStatus),
			zap.Error(err))
	}
}

// OpenOffersFor lists the unexpired open offers the partner may accept.
func (s *Service) OpenOffersFor(ctx context.Context, partnerID string) ([]*models.Offer, error) {
	offers, err := s.store.Offers().ListOpenVisibleTo(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	open := make([]*models.Offer, 0, len(offers))
	for _, offer := range offers {
		if !now.After(offer.ExpiresAt) {
			open = append(open, offer)
		}
	}
	return open, nil
}

func (s *Service) Offer(ctx context.Context, offerID string) (*models.Offer, error) {
	offer, err := s.store.Offers().Get(ctx, offerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrOfferNotFound
	}
	return offer, err
}

func (s *Service) Order(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

func (s *Service) Partner(ctx context.Context, partnerID string) (*models.DeliveryPartner, error) {
	partner, err := s.store.Partners().Get(ctx, partnerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrCourierNotFound
	}
	return partner, err
}

// CancelOrder is FailOrder for cancellations coming from order management.
func (s *Service) CancelOrder(ctx context.Context, orderID, reason string) error {
	if reason == "" {
		reason = "cancelled"
	}
	return s.FailOrder(ctx, orderID, reason)
}
