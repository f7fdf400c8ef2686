// Package simulator drives synthetic order traffic through the dispatch engine on a
// virtual clock: orders arrive following meal-time demand, partners answer offers,
// deliveries take as long as the traffic allows, and the retry scanner runs on schedule.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/lucsky/cuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/directory"
	"github.com/chrisdamba/foodispatch/internal/dispatch"
	"github.com/chrisdamba/foodispatch/internal/factories"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/pricing"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

const reasonCustomerCancelled = "cancelled by customer"

// Report summarises the orders placed during a run.
type Report struct {
	Orders          int
	Delivered       int
	OnTime          int
	NoCourier       int
	Cancelled       int
	Waiting         int
	InFlight        int
	Fees            float64
	PartnerEarnings float64
	PlatformFees    float64
	Scans           dispatch.ScanResult
}

type Simulator struct {
	config   models.SimulationConfig
	seed     models.SeedConfig
	store    repositories.Store
	svc      *dispatch.Service
	queue    *EventQueue
	rng      *rand.Rand
	now      time.Time
	progress io.Writer

	scanInterval time.Duration

	partners []string
	orders   []string
	scans    dispatch.ScanResult
}

type Option func(*Simulator)

// WithProgress draws a progress bar of simulated minutes on w.
func WithProgress(w io.Writer) Option {
	return func(s *Simulator) { s.progress = w }
}

// NewSimulator wires a dispatch service to store whose clock is the simulation clock.
func NewSimulator(config *models.Config, store repositories.Store, notifier dispatch.Notifier, opts ...Option) *Simulator {
	s := &Simulator{
		config: config.Simulation,
		seed:   config.Seed,
		store:  store,
		queue:  NewEventQueue(),
		rng:    rand.New(rand.NewSource(config.Simulation.Seed)),
		now:    config.Simulation.StartTime,

		scanInterval: config.Dispatch.ScanInterval,
	}
	// events re-arm themselves, so a zero interval would never let the clock move
	if s.scanInterval <= 0 {
		s.scanInterval = 30 * time.Second
	}
	if s.config.ResponseInterval <= 0 {
		s.config.ResponseInterval = 20 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	s.svc = dispatch.NewService(store, directory.New(store.Partners()), pricing.NewPolicy(config.Pricing), notifier, config.Dispatch,
		dispatch.WithClock(s.Now),
	)
	return s
}

func (s *Simulator) Now() time.Time {
	return s.now
}

func (s *Simulator) Run(ctx context.Context) (Report, error) {
	if err := s.initializeData(ctx); err != nil {
		return Report{}, err
	}

	end := s.now.Add(s.config.Duration)
	zap.L().Info("simulation starts",
		zap.Time("from", s.now),
		zap.Time("to", end),
		zap.Int("partners", len(s.partners)))

	var bar *progressbar.ProgressBar
	if s.progress != nil {
		bar = progressbar.NewOptions64(int64(s.config.Duration/time.Minute),
			progressbar.OptionSetWriter(s.progress),
			progressbar.OptionSetDescription("simulating"),
			progressbar.OptionShowCount())
	}

	s.queue.Enqueue(&Event{Time: s.now.Add(s.scanInterval), Type: EventRetryScan})

	nextStep := s.now
	for s.now.Before(end) {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}

		// Process any events that are due before the next time step
		if next := s.queue.Peek(); next != nil && next.Time.Before(nextStep) {
			event := s.queue.Dequeue()
			if event.Time.After(s.now) {
				s.now = event.Time
			}
			if err := s.processEvent(ctx, event); err != nil {
				zap.L().Debug("simulated event rejected",
					zap.String("type", event.Type),
					zap.String("order_id", event.OrderID),
					zap.Error(err))
			}
			continue
		}

		s.now = nextStep
		if err := s.simulateTimeStep(ctx); err != nil {
			return Report{}, err
		}
		nextStep = nextStep.Add(time.Minute)
		if bar != nil {
			bar.Add(1)
		}
	}

	zap.L().Info("simulation completed", zap.Int("orders", len(s.orders)), zap.Int("pending_events", s.queue.Len()))
	return s.report(ctx)
}

func (s *Simulator) initializeData(ctx context.Context) error {
	partners := factories.NewDeliveryPartnerFactory(s.config.Seed).CreateDeliveryPartners(s.seed)
	if err := s.store.Partners().BulkCreate(ctx, partners); err != nil {
		return fmt.Errorf("create partners: %w", err)
	}
	for _, p := range partners {
		s.partners = append(s.partners, p.ID)
	}
	return nil
}

func (s *Simulator) processEvent(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventConfirmOrder:
		return s.handleConfirmOrder(ctx, event)
	case EventOfferResponse:
		return s.handleOfferResponse(ctx, event)
	case EventDeliverOrder:
		return s.handleDeliverOrder(ctx, event)
	case EventCancelOrder:
		return s.handleCancelOrder(ctx, event)
	case EventRetryScan:
		return s.handleRetryScan(ctx)
	default:
		return fmt.Errorf("unknown event type %q", event.Type)
	}
}

func (s *Simulator) simulateTimeStep(ctx context.Context) error {
	s.generateOrders()
	return s.updatePartnerShifts(ctx)
}

// generateOrders schedules this minute's arrivals.
func (s *Simulator) generateOrders() {
	lambda := s.config.OrdersPerHour / 60 * demandMultiplier(s.now)
	city := models.Location{Lat: s.seed.CityLat, Lon: s.seed.CityLon}

	for i := poisson(s.rng, lambda); i > 0; i-- {
		pickup := pointWithin(s.rng, city, s.seed.UrbanRadius)
		dropoff := pointWithin(s.rng, pickup, s.config.MaxTripKm)
		s.queue.Enqueue(&Event{
			Time:    s.now.Add(time.Duration(s.rng.Int63n(int64(time.Minute)))),
			Type:    EventConfirmOrder,
			OrderID: cuid.New(),
			Pickup:  &pickup,
			Dropoff: &dropoff,
		})
	}
}

// updatePartnerShifts lets idle partners log off and offline partners come back.
func (s *Simulator) updatePartnerShifts(ctx context.Context) error {
	p := s.config.ShiftChangeRate / 60
	for _, id := range s.partners {
		if s.rng.Float64() >= p {
			continue
		}
		partner, err := s.svc.Partner(ctx, id)
		if err != nil {
			return err
		}
		var next string
		switch partner.OperationalStatus {
		case models.OperationalStatusOnlineIdle:
			next = models.OperationalStatusOffline
		case models.OperationalStatusOffline:
			next = models.OperationalStatusOnlineIdle
		default:
			continue
		}
		if _, err := s.svc.SetOperationalStatus(ctx, id, next); err != nil && !errors.Is(err, dispatch.ErrPartnerUnavailable) {
			return err
		}
	}
	return nil
}

func (s *Simulator) handleConfirmOrder(ctx context.Context, event *Event) error {
	s.orders = append(s.orders, event.OrderID)

	if s.rng.Float64() < s.config.CancelProbability {
		delay := time.Duration(normal(s.rng, 8, 3, 2, 15) * float64(time.Minute))
		s.queue.Enqueue(&Event{Time: s.now.Add(delay), Type: EventCancelOrder, OrderID: event.OrderID})
	}

	_, err := s.svc.CreateOffer(ctx, models.OrderConfirmed{
		OrderID:          event.OrderID,
		StoreID:          "simulated",
		PickupLocation:   event.Pickup,
		DeliveryLocation: event.Dropoff,
		TotalAmount:      normal(s.rng, 45, 20, 10, 200),
	})
	if err != nil {
		return err
	}
	s.scheduleResponse(event.OrderID, event.Dropoff)
	return nil
}

func (s *Simulator) scheduleResponse(orderID string, dropoff *models.Location) {
	delay := time.Duration(normal(s.rng, 0.6, 0.25, 0.1, 1) * float64(s.config.ResponseInterval))
	s.queue.Enqueue(&Event{Time: s.now.Add(delay), Type: EventOfferResponse, OrderID: orderID, Dropoff: dropoff})
}

// handleOfferResponse gives every partner who can see the order's offer a chance to take it.
// While the order keeps waiting, partners look again after the response interval.
func (s *Simulator) handleOfferResponse(ctx context.Context, event *Event) error {
	order, err := s.svc.Order(ctx, event.OrderID)
	if err != nil {
		return err
	}
	if order.Delivery.Status != models.DeliveryStatusWaitingPartner {
		return nil
	}
	defer s.scheduleResponse(event.OrderID, event.Dropoff)

	offer, err := s.store.Offers().FindActiveByOrder(ctx, event.OrderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		return err
	}

	visible := append([]string(nil), offer.VisibleToPartners...)
	s.rng.Shuffle(len(visible), func(i, j int) { visible[i], visible[j] = visible[j], visible[i] })
	for _, partnerID := range visible {
		if s.rng.Float64() >= s.config.AcceptProbability {
			continue
		}
		assignment, err := s.svc.AcceptOffer(ctx, offer.ID, partnerID)
		if err != nil {
			if errors.Is(err, dispatch.ErrPartnerUnavailable) {
				continue
			}
			return err
		}
		s.scheduleDelivery(assignment, event.Dropoff)
		return nil
	}
	return nil
}

func (s *Simulator) scheduleDelivery(assignment *dispatch.Assignment, dropoff *models.Location) {
	delivery := assignment.Order.Delivery
	planned := float64(delivery.PickupETAMinutes + delivery.DeliveryETAMinutes)
	actual := planned * normal(s.rng, 1.0, 0.2, 0.6, 1.8) / travelSpeedMultiplier(s.now)

	s.queue.Enqueue(&Event{
		Time:      s.now.Add(time.Duration(actual * float64(time.Minute))),
		Type:      EventDeliverOrder,
		OrderID:   assignment.Order.ID,
		PartnerID: assignment.Partner.ID,
		Dropoff:   dropoff,
	})
}

func (s *Simulator) handleDeliverOrder(ctx context.Context, event *Event) error {
	if _, err := s.svc.CompleteDelivery(ctx, event.OrderID, s.now); err != nil {
		return err
	}
	if event.Dropoff == nil {
		return nil
	}
	return s.svc.UpdateCourierLocation(ctx, event.PartnerID, *event.Dropoff)
}

// handleCancelOrder only cancels orders nobody has taken yet.
func (s *Simulator) handleCancelOrder(ctx context.Context, event *Event) error {
	order, err := s.svc.Order(ctx, event.OrderID)
	if err != nil {
		return err
	}
	if order.Delivery.Status != models.DeliveryStatusWaitingPartner {
		return nil
	}
	return s.svc.CancelOrder(ctx, event.OrderID, reasonCustomerCancelled)
}

func (s *Simulator) handleRetryScan(ctx context.Context) error {
	s.queue.Enqueue(&Event{Time: s.now.Add(s.scanInterval), Type: EventRetryScan})

	result, err := s.svc.RetryScan(ctx)
	s.scans.Expanded += result.Expanded
	s.scans.Exhausted += result.Exhausted
	s.scans.Cancelled += result.Cancelled
	s.scans.Skipped += result.Skipped
	return err
}

func (s *Simulator) report(ctx context.Context) (Report, error) {
	report := Report{Orders: len(s.orders), Scans: s.scans}

	for _, id := range s.orders {
		order, err := s.svc.Order(ctx, id)
		if errors.Is(err, dispatch.ErrOrderNotFound) {
			continue
		}
		if err != nil {
			return report, err
		}

		switch order.Delivery.Status {
		case models.DeliveryStatusDelivered:
			report.Delivered++
			earning, err := s.store.Earnings().GetByOrder(ctx, id)
			if err != nil {
				return report, fmt.Errorf("earning of %s: %w", id, err)
			}
			report.Fees = pricing.RoundMoney(report.Fees + earning.GrossAmount)
			report.PartnerEarnings = pricing.RoundMoney(report.PartnerEarnings + earning.NetAmount)
			report.PlatformFees = pricing.RoundMoney(report.PlatformFees + earning.PlatformFee)
		case models.DeliveryStatusFailed:
			if order.Delivery.FailureReason == models.FailureReasonNoCourier {
				report.NoCourier++
			} else {
				report.Cancelled++
			}
		case models.DeliveryStatusWaitingPartner:
			report.Waiting++
		default:
			report.InFlight++
		}
	}

	partners, err := s.store.Partners().All(ctx)
	if err != nil {
		return report, err
	}
	for _, p := range partners {
		report.OnTime += p.Metrics.OnTimeDeliveries
	}
	return report, nil
}
