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

// Assignment is the committed result of an accepted offer.
type Assignment struct {
	Offer   *models.Offer           `json:"offer"`
	Order   *models.Order           `json:"order"`
	Partner *models.DeliveryPartner `json:"partner"`
}

// AcceptOffer claims the offer for partnerID and assigns the order to them. The claim is a
// conditional write on the offer, so of any number of concurrent callers exactly one wins;
// the rest get ErrOfferUnavailable. If the assignment batch cannot commit, the claim is
// reverted so the offer can be taken again, unless the order has meanwhile left
// waiting_partner, in which case the offer is cancelled.
func (s *Service) AcceptOffer(ctx context.Context, offerID, partnerID string) (*Assignment, error) {
	now := s.now()

	offer, err := s.store.Offers().Accept(ctx, offerID, partnerID, now)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("accept offer %s: %w", offerID, ErrOfferNotFound)
	case errors.Is(err, repositories.ErrConditionFailed):
		return nil, fmt.Errorf("accept offer %s by %s: %w", offerID, partnerID, ErrOfferUnavailable)
	case err != nil:
		return nil, fmt.Errorf("accept offer %s: %w", offerID, err)
	}

	var assignment *Assignment
	err = s.withCommitRetry(ctx, "assign", func(ctx context.Context) error {
		var err error
		assignment, err = s.assign(ctx, offer, partnerID, now)
		return err
	})
	if err != nil {
		if rbErr := s.releaseAcceptance(context.WithoutCancel(ctx), offer, err); rbErr != nil {
			zap.L().Error("failed to release offer acceptance",
				zap.String("offer_id", offerID),
				zap.String("partner_id", partnerID),
				zap.Error(rbErr))
			err = errors.Join(err, rbErr)
		}
		return nil, fmt.Errorf("assign offer %s to %s: %w", offerID, partnerID, err)
	}

	zap.L().Info("offer accepted",
		zap.String("offer_id", offerID),
		zap.String("order_id", offer.OrderID),
		zap.String("partner_id", partnerID))

	s.publishOrder(assignment.Order)
	s.publishPartner(assignment.Partner)
	return assignment, nil
}

// releaseAcceptance undoes a claim whose assignment did not commit. An order that was failed
// or cancelled under the claim found no open offer to cancel, so the claimed offer is closed
// here instead of being reopened.
func (s *Service) releaseAcceptance(ctx context.Context, accepted *models.Offer, cause error) error {
	if !errors.Is(cause, ErrOrderNotWaiting) {
		return s.store.Offers().RevertAcceptance(ctx, accepted.ID, accepted.AcceptedBy)
	}
	withdrawn := accepted.Clone()
	withdrawn.Status = models.OfferStatusCancelled
	if err := s.store.Offers().Update(ctx, withdrawn, accepted.Version); err != nil {
		return err
	}
	zap.L().Info("offer cancelled, order left waiting_partner during acceptance",
		zap.String("offer_id", accepted.ID),
		zap.String("order_id", accepted.OrderID))
	return nil
}

// assign writes the order, partner and sibling offers as one batch.
func (s *Service) assign(ctx context.Context, offer *models.Offer, partnerID string, now time.Time) (*Assignment, error) {
	var assignment *Assignment
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
		order, err := tx.Orders().Get(ctx, offer.OrderID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Delivery.Status != models.DeliveryStatusWaitingPartner {
			return ErrOrderNotWaiting
		}

		partner, err := tx.Partners().Get(ctx, partnerID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return ErrCourierNotFound
			}
			return err
		}
		if partner.Status != models.PartnerStatusActive || partner.OperationalStatus != models.OperationalStatusOnlineIdle {
			return ErrPartnerUnavailable
		}

		assignedAt := now
		order.Delivery.Status = models.DeliveryStatusPartnerAssigned
		order.Delivery.OfferID = offer.ID
		order.Delivery.Partner = partner.Snapshot()
		order.Delivery.AssignedAt = &assignedAt
		order.Delivery.UpdatedAt = now
		if partner.CurrentLocation != nil && order.PickupLocation != nil {
			order.Delivery.PickupETAMinutes = s.etaMinutes(distanceBetween(partner.CurrentLocation, order.PickupLocation))
		}
		if err := tx.Orders().UpdateDelivery(ctx, order.ID, order.Delivery); err != nil {
			return err
		}

		partner.OperationalStatus = models.OperationalStatusOnDelivery
		partner.CurrentOrderID = order.ID
		partner.LastUpdateTime = now
		if err := tx.Partners().Update(ctx, partner); err != nil {
			return err
		}

		if _, err := tx.Offers().CancelOpenByOrder(ctx, order.ID, offer.ID); err != nil {
			return err
		}

		assignment = &Assignment{Offer: offer, Order: order, Partner: partner}
		return nil
	})
	return assignment, err
}
