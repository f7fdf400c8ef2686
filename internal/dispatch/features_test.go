package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/chrisdamba/foodispatch/internal/directory"
	"github.com/chrisdamba/foodispatch/internal/dispatch"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/notify"
	"github.com/chrisdamba/foodispatch/internal/pricing"
	"github.com/chrisdamba/foodispatch/internal/repositories/memory"
)

type dispatchTestContext struct {
	store *memory.Store
	svc   *dispatch.Service

	mu        sync.Mutex
	now       time.Time
	accepted  int
	lastError error
}

func (c *dispatchTestContext) reset() {
	c.store = memory.NewStore()
	c.now = time.Time{}
	c.accepted = 0
	c.lastError = nil
	c.svc = dispatch.NewService(c.store, directory.New(c.store.Partners()), pricing.DefaultPolicy(),
		notify.NewNotifier(notify.NewMemoryOutput()),
		models.DispatchConfig{
			OfferTTL:          60 * time.Second,
			ScanInterval:      30 * time.Second,
			ScanBatchSize:     10,
			InitialRadiusKm:   5,
			RadiusStepKm:      5,
			MaxRadiusKm:       20,
			MaxAttempts:       4,
			AverageSpeedKmh:   30,
			OnTimeTolerance:   1.2,
			DefaultETAMinutes: 15,
			CommitRetries:     1,
			CommitRetryBase:   time.Millisecond,
		},
		dispatch.WithClock(c.clock))
}

func (c *dispatchTestContext) clock() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *dispatchTestContext) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *dispatchTestContext) theClockIsAt(value string) error {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
	return nil
}

func (c *dispatchTestContext) anIdlePartnerAt(id string, lat, lon float64) error {
	return c.store.Partners().Create(context.Background(), &models.DeliveryPartner{
		ID:                id,
		Name:              "Partner " + id,
		Status:            models.PartnerStatusActive,
		OperationalStatus: models.OperationalStatusOnlineIdle,
		CurrentLocation:   &models.Location{Lat: lat, Lon: lon},
	})
}

func (c *dispatchTestContext) idlePartnersAt(n int, lat, lon float64) error {
	for i := 0; i < n; i++ {
		if err := c.anIdlePartnerAt(fmt.Sprintf("partner-%02d", i), lat, lon); err != nil {
			return err
		}
	}
	return nil
}

func (c *dispatchTestContext) orderIsConfirmed(orderID string, pickupLat, pickupLon, dropoffLat, dropoffLon float64) error {
	_, err := c.svc.CreateOffer(context.Background(), models.OrderConfirmed{
		OrderID:          orderID,
		StoreID:          "store-1",
		PickupLocation:   &models.Location{Lat: pickupLat, Lon: pickupLon},
		DeliveryLocation: &models.Location{Lat: dropoffLat, Lon: dropoffLon},
	})
	return err
}

func (c *dispatchTestContext) secondsPassAndTheScannerRuns(seconds, times int) error {
	for i := 0; i < times; i++ {
		c.advance(time.Duration(seconds) * time.Second)
		if _, err := c.svc.RetryScan(context.Background()); err != nil {
			return err
		}
	}
	return nil
}

func (c *dispatchTestContext) partnerAcceptsTheOfferFor(partnerID, orderID string) error {
	offer, err := c.offerFor(orderID)
	if err != nil {
		return err
	}
	_, err = c.svc.AcceptOffer(context.Background(), offer.ID, partnerID)
	return err
}

func (c *dispatchTestContext) everyVisiblePartnerAccepts(orderID string) error {
	offer, err := c.offerFor(orderID)
	if err != nil {
		return err
	}
	var wg sync.WaitGroup
	for _, partnerID := range offer.VisibleToPartners {
		wg.Add(1)
		go func(partnerID string) {
			defer wg.Done()
			_, err := c.svc.AcceptOffer(context.Background(), offer.ID, partnerID)
			c.mu.Lock()
			defer c.mu.Unlock()
			switch {
			case err == nil:
				c.accepted++
			case !errors.Is(err, dispatch.ErrOfferUnavailable):
				c.lastError = err
			}
		}(partnerID)
	}
	wg.Wait()
	return c.lastError
}

func (c *dispatchTestContext) orderIsDeliveredLater(orderID string, minutes int) error {
	_, err := c.svc.CompleteDelivery(context.Background(), orderID, c.clock().Add(time.Duration(minutes)*time.Minute))
	return err
}

func (c *dispatchTestContext) offerFor(orderID string) (*models.Offer, error) {
	order, err := c.svc.Order(context.Background(), orderID)
	if err != nil {
		return nil, err
	}
	return c.svc.Offer(context.Background(), order.Delivery.OfferID)
}

func (c *dispatchTestContext) orderHasPricing(orderID string, distance, fee, earning float64) error {
	order, err := c.svc.Order(context.Background(), orderID)
	if err != nil {
		return err
	}
	d := order.Delivery
	if !near(d.DistanceKm, distance) || !near(d.Fee, fee) || !near(d.PartnerEarning, earning) {
		return fmt.Errorf("expected %.1f km / %.2f / %.2f, got %.1f km / %.2f / %.2f",
			distance, fee, earning, d.DistanceKm, d.Fee, d.PartnerEarning)
	}
	return nil
}

func (c *dispatchTestContext) theOfferIsVisibleTo(orderID, partnerID string) error {
	offer, err := c.offerFor(orderID)
	if err != nil {
		return err
	}
	if !slices.Contains(offer.VisibleToPartners, partnerID) {
		return fmt.Errorf("expected %s in %v", partnerID, offer.VisibleToPartners)
	}
	return nil
}

func (c *dispatchTestContext) theOfferIsVisibleToNobody(orderID string) error {
	offer, err := c.offerFor(orderID)
	if err != nil {
		return err
	}
	if len(offer.VisibleToPartners) != 0 {
		return fmt.Errorf("expected no candidates, got %v", offer.VisibleToPartners)
	}
	return nil
}

func (c *dispatchTestContext) theOfferHasRadiusOnAttempt(orderID string, radius float64, attempt int) error {
	offer, err := c.offerFor(orderID)
	if err != nil {
		return err
	}
	if !near(offer.SearchRadiusKm, radius) || offer.AttemptNumber != attempt {
		return fmt.Errorf("expected radius %.0f on attempt %d, got %.0f on attempt %d",
			radius, attempt, offer.SearchRadiusKm, offer.AttemptNumber)
	}
	return nil
}

func (c *dispatchTestContext) theOfferIs(orderID, status string) error {
	offer, err := c.offerFor(orderID)
	if err != nil {
		return err
	}
	if offer.Status != status {
		return fmt.Errorf("expected offer %s, got %s", status, offer.Status)
	}
	return nil
}

func (c *dispatchTestContext) orderIs(orderID, status string) error {
	order, err := c.svc.Order(context.Background(), orderID)
	if err != nil {
		return err
	}
	if order.Delivery.Status != status {
		return fmt.Errorf("expected order %s, got %s", status, order.Delivery.Status)
	}
	return nil
}

func (c *dispatchTestContext) orderIsWithReason(orderID, status, reason string) error {
	if err := c.orderIs(orderID, status); err != nil {
		return err
	}
	order, _ := c.svc.Order(context.Background(), orderID)
	if order.Delivery.FailureReason != reason {
		return fmt.Errorf("expected reason %q, got %q", reason, order.Delivery.FailureReason)
	}
	return nil
}

func (c *dispatchTestContext) partnerIs(partnerID, status string) error {
	partner, err := c.svc.Partner(context.Background(), partnerID)
	if err != nil {
		return err
	}
	if partner.OperationalStatus != status {
		return fmt.Errorf("expected partner %s, got %s", status, partner.OperationalStatus)
	}
	return nil
}

func (c *dispatchTestContext) partnerHasOnTimeDeliveries(partnerID string, n int) error {
	partner, err := c.svc.Partner(context.Background(), partnerID)
	if err != nil {
		return err
	}
	if partner.Metrics.OnTimeDeliveries != n {
		return fmt.Errorf("expected %d on-time deliveries, got %d", n, partner.Metrics.OnTimeDeliveries)
	}
	return nil
}

func (c *dispatchTestContext) orderHasEarningRecords(orderID string, n int, amount float64) error {
	records, err := c.store.Earnings().ListCompletedBetween(context.Background(), time.Time{}, c.clock().Add(24*time.Hour))
	if err != nil {
		return err
	}
	var matching []*models.EarningRecord
	for _, r := range records {
		if r.OrderID == orderID {
			matching = append(matching, r)
		}
	}
	if len(matching) != n {
		return fmt.Errorf("expected %d earning records, got %d", n, len(matching))
	}
	if n > 0 && !near(matching[0].NetAmount, amount) {
		return fmt.Errorf("expected net amount %.2f, got %.2f", amount, matching[0].NetAmount)
	}
	return nil
}

func (c *dispatchTestContext) exactlyAcceptancesSucceeded(n int) error {
	if c.accepted != n {
		return fmt.Errorf("expected %d winners, got %d", n, c.accepted)
	}
	return nil
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

const coord = `(-?\d+(?:\.\d+)?)`

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &dispatchTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^the clock is at "([^"]*)"$`, tc.theClockIsAt)
	ctx.Step(`^an idle partner "([^"]*)" at `+coord+`, `+coord+`$`, tc.anIdlePartnerAt)
	ctx.Step(`^(\d+) idle partners at `+coord+`, `+coord+`$`, tc.idlePartnersAt)

	// When steps
	ctx.Step(`^order "([^"]*)" is confirmed with pickup `+coord+`, `+coord+` and dropoff `+coord+`, `+coord+`$`, tc.orderIsConfirmed)
	ctx.Step(`^(\d+) seconds pass and the retry scanner runs (\d+) times$`, tc.secondsPassAndTheScannerRuns)
	ctx.Step(`^"([^"]*)" accepts the offer for order "([^"]*)"$`, tc.partnerAcceptsTheOfferFor)
	ctx.Step(`^every visible partner accepts the offer for order "([^"]*)" at once$`, tc.everyVisiblePartnerAccepts)
	ctx.Step(`^order "([^"]*)" is delivered (\d+) minutes later$`, tc.orderIsDeliveredLater)

	// Then steps
	ctx.Step(`^order "([^"]*)" has distance `+coord+` km, fee `+coord+` and partner earning `+coord+`$`, tc.orderHasPricing)
	ctx.Step(`^the offer for order "([^"]*)" is visible to "([^"]*)"$`, tc.theOfferIsVisibleTo)
	ctx.Step(`^the offer for order "([^"]*)" is visible to nobody$`, tc.theOfferIsVisibleToNobody)
	ctx.Step(`^the offer for order "([^"]*)" has search radius `+coord+` km on attempt (\d+)$`, tc.theOfferHasRadiusOnAttempt)
	ctx.Step(`^the offer for order "([^"]*)" is "([^"]*)"$`, tc.theOfferIs)
	ctx.Step(`^order "([^"]*)" is "([^"]*)"$`, tc.orderIs)
	ctx.Step(`^order "([^"]*)" is "([^"]*)" with reason "([^"]*)"$`, tc.orderIsWithReason)
	ctx.Step(`^partner "([^"]*)" is "([^"]*)"$`, tc.partnerIs)
	ctx.Step(`^partner "([^"]*)" has (\d+) on-time deliveries$`, tc.partnerHasOnTimeDeliveries)
	ctx.Step(`^order "([^"]*)" has exactly (\d+) earning record worth `+coord+`$`, tc.orderHasEarningRecords)
	ctx.Step(`^exactly (\d+) acceptance succeeded$`, tc.exactlyAcceptancesSucceeded)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/dispatch.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
