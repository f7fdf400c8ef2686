// Package dispatch runs the offer lifecycle of a delivery: creating the first offer,
// widening it on expiry, assigning it to the partner who accepts first and settling
// the partner's earning when the order is delivered.
package dispatch

import (
	"context"
	"math"
	"time"

	"github.com/lucsky/cuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/pricing"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

// CandidateFinder lists the partners an offer should be visible to.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, origin models.Location, radiusKm float64) ([]string, error)
}

// Notifier receives state changes after they commit.
type Notifier interface {
	OfferVisible(offer *models.Offer) error
	OrderDelivery(order *models.Order) error
	CourierMetrics(partner *models.DeliveryPartner) error
}

// LocationTracker mirrors partner positions into an external index. Offline partners are
// forgotten until they come back online.
type LocationTracker interface {
	Track(ctx context.Context, partnerID string, location models.Location) error
	Forget(ctx context.Context, partnerID string) error
}

type Service struct {
	store      repositories.Store
	candidates CandidateFinder
	pricing    pricing.Policy
	notifier   Notifier
	tracker    LocationTracker
	config     models.DispatchConfig
	now        func() time.Time
	newID      func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func WithLocationTracker(tracker LocationTracker) Option {
	return func(s *Service) { s.tracker = tracker }
}

func NewService(store repositories.Store, candidates CandidateFinder, policy pricing.Policy, notifier Notifier, config models.DispatchConfig, opts ...Option) *Service {
	s := &Service{
		store:      store,
		candidates: candidates,
		pricing:    policy,
		notifier:   notifier,
		config:     config,
		now:        time.Now,
		newID:      cuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withCommitRetry re-runs fn while it fails for reasons other than the state of the records.
func (s *Service) withCommitRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	base := s.config.CommitRetryBase
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	backoff := retry.WithMaxRetries(s.config.CommitRetries, retry.NewExponential(base))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err == nil || IsPermanent(err) {
			return err
		}
		zap.L().Warn("dispatch write failed, retrying", zap.String("op", op), zap.Error(err))
		return retry.RetryableError(err)
	})
}

// etaMinutes converts a distance into whole minutes at the configured average speed.
func (s *Service) etaMinutes(distanceKm float64) int {
	speed := s.config.AverageSpeedKmh
	if speed <= 0 {
		return s.config.DefaultETAMinutes
	}
	minutes := int(math.Ceil(distanceKm / speed * 60))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// searchRadius is the radius used for the given attempt, capped at the maximum.
func (s *Service) searchRadius(attempt int) float64 {
	return math.Min(float64(attempt)*s.config.RadiusStepKm+s.config.InitialRadiusKm, s.config.MaxRadiusKm)
}

func (s *Service) publishOffer(offer *models.Offer) {
	if len(offer.VisibleToPartners) == 0 {
		return
	}
	if err := s.notifier.OfferVisible(offer); err != nil {
		zap.L().Error("failed to publish offer", zap.String("offer_id", offer.ID), zap.Error(err))
	}
}

func (s *Service) publishOrder(order *models.Order) {
	if err := s.notifier.OrderDelivery(order); err != nil {
		zap.L().Error("failed to publish order delivery", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *Service) publishPartner(partner *models.DeliveryPartner) {
	if err := s.notifier.CourierMetrics(partner); err != nil {
		zap.L().Error("failed to publish courier metrics", zap.String("partner_id", partner.ID), zap.Error(err))
	}
}

func distanceBetween(a, b *models.Location) float64 {
	return geo.Distance(*a, *b)
}
