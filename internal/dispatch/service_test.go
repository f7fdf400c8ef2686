package dispatch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/foodispatch/internal/directory"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/notify"
	"github.com/chrisdamba/foodispatch/internal/pricing"
	"github.com/chrisdamba/foodispatch/internal/repositories"
	"github.com/chrisdamba/foodispatch/internal/repositories/memory"
)

var (
	t0      = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pickup  = models.Location{Lat: -23.561, Lon: -46.656}
	dropoff = models.Location{Lat: -23.550, Lon: -46.689}

	// partner positions east of the pickup, roughly 3, 8 and 30 km away
	near = models.Location{Lat: -23.561, Lon: -46.627}
	mid  = models.Location{Lat: -23.561, Lon: -46.578}
	far  = models.Location{Lat: -23.561, Lon: -46.362}
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() models.DispatchConfig {
	return models.DispatchConfig{
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
		CommitRetries:     2,
		CommitRetryBase:   time.Millisecond,
	}
}

type fixture struct {
	store repositories.Store
	out   *notify.MemoryOutput
	clock *testClock
	svc   *Service
}

func newFixture(t *testing.T, store repositories.Store) *fixture {
	t.Helper()
	if store == nil {
		store = memory.NewStore()
	}
	var seq atomic.Int64
	f := &fixture{
		store: store,
		out:   notify.NewMemoryOutput(),
		clock: &testClock{now: t0},
	}
	f.svc = NewService(store, directory.New(store.Partners()), pricing.DefaultPolicy(), notify.NewNotifier(f.out), testConfig(),
		WithClock(f.clock.Now),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }),
	)
	return f
}

func (f *fixture) addPartner(t *testing.T, id string, location models.Location) {
	t.Helper()
	loc := location
	require.NoError(t, f.store.Partners().Create(context.Background(), &models.DeliveryPartner{
		ID:                id,
		Name:              "Partner " + id,
		Phone:             "+55 11 90000-0000",
		VehicleType:       "motorcycle",
		Status:            models.PartnerStatusActive,
		OperationalStatus: models.OperationalStatusOnlineIdle,
		CurrentLocation:   &loc,
	}))
}

func (f *fixture) confirm(t *testing.T, orderID string) *models.Offer {
	t.Helper()
	offer, err := f.svc.CreateOffer(context.Background(), confirmed(orderID))
	require.NoError(t, err)
	return offer
}

func (f *fixture) order(t *testing.T, id string) *models.Order {
	t.Helper()
	order, err := f.store.Orders().Get(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) offer(t *testing.T, id string) *models.Offer {
	t.Helper()
	offer, err := f.store.Offers().Get(context.Background(), id)
	require.NoError(t, err)
	return offer
}

func (f *fixture) partner(t *testing.T, id string) *models.DeliveryPartner {
	t.Helper()
	partner, err := f.store.Partners().Get(context.Background(), id)
	require.NoError(t, err)
	return partner
}

func confirmed(orderID string) models.OrderConfirmed {
	p, d := pickup, dropoff
	return models.OrderConfirmed{
		OrderID:          orderID,
		StoreID:          "store-1",
		CustomerID:       "customer-1",
		PickupLocation:   &p,
		DeliveryLocation: &d,
		TotalAmount:      42.90,
	}
}
