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

// ScanResult counts what a single retry scan did with the expired offers it picked up.
type ScanResult struct {
	Expanded  int
	Exhausted int
	Cancelled int
	Skipped   int
}

func (r ScanResult) Total() int {
	return r.Expanded + r.Exhausted + r.Cancelled + r.Skipped
}

type scanOutcome int

const (
	outcomeExpanded scanOutcome = iota
	outcomeExhausted
	outcomeCancelled
	outcomeSkipped
)

// RetryScan processes one batch of open offers whose expiry has passed. Each offer is
// widened to a larger radius, or expired together with its order once the attempts run
// out. Writes are conditional on the offer version, so overlapping scans and concurrent
// acceptances never double-apply.
func (s *Service) RetryScan(ctx context.Context) (ScanResult, error) {
	var result ScanResult
	now := s.now()

	offers, err := s.store.Offers().ListExpired(ctx, now, s.config.ScanBatchSize)
	if err != nil {
		return result, fmt.Errorf("list expired offers: %w", err)
	}

	var errs []error
	for _, offer := range offers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		outcome, err := s.retryOffer(ctx, offer, now)
		if err != nil {
			zap.L().Error("offer retry failed", zap.String("offer_id", offer.ID), zap.Error(err))
			errs = append(errs, fmt.Errorf("retry offer %s: %w", offer.ID, err))
			continue
		}
		switch outcome {
		case outcomeExpanded:
			result.Expanded++
		case outcomeExhausted:
			result.Exhausted++
		case outcomeCancelled:
			result.Cancelled++
		case outcomeSkipped:
			result.Skipped++
		}
	}
	return result, errors.Join(errs...)
}

func (s *Service) retryOffer(ctx context.Context, offer *models.Offer, now time.Time) (scanOutcome, error) {
	order, err := s.store.Orders().Get(ctx, offer.OrderID)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return outcomeSkipped, err
	}
	if order == nil || order.Delivery.Status != models.DeliveryStatusWaitingPartner {
		return s.cancelStaleOffer(ctx, offer)
	}

	if offer.AttemptNumber >= s.config.MaxAttempts {
		return s.exhaustOffer(ctx, offer, now)
	}

	radius := s.searchRadius(offer.AttemptNumber)
	candidates, err := s.candidates.FindCandidates(ctx, offer.PickupLocation, radius)
	if err != nil {
		return outcomeSkipped, err
	}

	expected := offer.Version
	offer.VisibleToPartners = candidates
	offer.SearchRadiusKm = radius
	offer.AttemptNumber++
	offer.ExpiresAt = now.Add(s.config.OfferTTL)
	if err := s.store.Offers().Update(ctx, offer, expected); err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return outcomeSkipped, nil
		}
		return outcomeSkipped, err
	}

	zap.L().Info("offer expanded",
		zap.String("offer_id", offer.ID),
		zap.Int("attempt", offer.AttemptNumber),
		zap.Float64("radius_km", radius),
		zap.Int("candidates", len(candidates)))
	s.publishOffer(offer)
	return outcomeExpanded, nil
}

// cancelStaleOffer closes an offer whose order stopped waiting for a partner.
func (s *Service) cancelStaleOffer(ctx context.Context, offer *models.Offer) (scanOutcome, error) {
	expected := offer.Version
	offer.Status = models.OfferStatusCancelled
	if err := s.store.Offers().Update(ctx, offer, expected); err != nil {
		if errors.Is(err, repositories.ErrVersionConflict) {
			return outcomeSkipped, nil
		}
		return outcomeSkipped, err
	}
	zap.L().Info("stale offer cancelled", zap.String("offer_id", offer.ID), zap.String("order_id", offer.OrderID))
	return outcomeCancelled, nil
}

func (s *Service) exhaustOffer(ctx context.Context, offer *models.Offer, now time.Time) (scanOutcome, error) {
	var failed *models.Order
	err := s.withCommitRetry(ctx, "exhaust_offer", func(ctx context.Context) error {
		failed = nil
		return s.store.RunInTx(ctx, func(ctx context.Context, tx repositories.Repositories) error {
			expired := offer.Clone()
			expired.Status = models.OfferStatusExpired
			if err := tx.Offers().Update(ctx, expired, offer.Version); err != nil {
				return err
			}
			order, err := tx.Orders().Get(ctx, offer.OrderID)
			if err != nil {
				return err
			}
			if order.Delivery.Status != models.DeliveryStatusWaitingPartner {
				return nil
			}
			if err := failOrderTx(ctx, tx, order, models.FailureReasonNoCourier, now); err != nil {
				return err
			}
			failed = order
			return nil
		})
	})
	if errors.Is(err, repositories.ErrVersionConflict) {
		return outcomeSkipped, nil
	}
	if err != nil {
		return outcomeSkipped, err
	}

	zap.L().Info("offer exhausted",
		zap.String("offer_id", offer.ID),
		zap.String("order_id", offer.OrderID),
		zap.Int("attempts", offer.AttemptNumber))
	if failed != nil {
		s.publishOrder(failed)
	}
	return outcomeExhausted, nil
}

// RunScanner calls RetryScan on every scan interval until ctx is cancelled.
func (s *Service) RunScanner(ctx context.Context) error {
	ticker := time.NewTicker(s.config.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.RetryScan(ctx)
			if err != nil && ctx.Err() == nil {
				zap.L().Error("retry scan finished with errors", zap.Error(err))
			}
			if result.Total() > 0 {
				zap.L().Info("retry scan",
					zap.Int("expanded", result.Expanded),
					zap.Int("exhausted", result.Exhausted),
					zap.Int("cancelled", result.Cancelled),
					zap.Int("skipped", result.Skipped))
			}
		}
	}
}
