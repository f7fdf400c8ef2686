package simulator

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/notify"
	"github.com/chrisdamba/foodispatch/internal/repositories/memory"
)

// Monday 2 March 2026
var start = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)

func testConfig() *models.Config {
	return &models.Config{
		Dispatch: models.DispatchConfig{
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
			CommitRetryBase:   time.Millisecond,
		},
		Pricing: models.PricingConfig{PerKmRate: 1.5, MinimumFee: 5, PartnerShare: 0.8},
		Seed: models.SeedConfig{
			Partners:    30,
			CityLat:     -23.5505,
			CityLon:     -46.6333,
			UrbanRadius: 8,
			OnlineShare: 0.8,
		},
		Simulation: models.SimulationConfig{
			Duration:          2 * time.Hour,
			StartTime:         start,
			OrdersPerHour:     40,
			AcceptProbability: 0.5,
			ResponseInterval:  20 * time.Second,
			CancelProbability: 0.05,
			ShiftChangeRate:   0.1,
			MaxTripKm:         5,
			Seed:              7,
		},
	}
}

func TestRun_AccountsForEveryOrder(t *testing.T) {
	config := testConfig()
	store := memory.NewStore()
	out := notify.NewMemoryOutput()

	report, err := NewSimulator(config, store, notify.NewNotifier(out)).Run(context.Background())
	require.NoError(t, err)

	require.Greater(t, report.Orders, 0)
	assert.Greater(t, report.Delivered, 0)
	assert.Equal(t, report.Orders,
		report.Delivered+report.NoCourier+report.Cancelled+report.Waiting+report.InFlight)
	assert.LessOrEqual(t, report.OnTime, report.Delivered)

	// the partner keeps 80% of every fee
	assert.InDelta(t, report.Fees, report.PartnerEarnings+report.PlatformFees, 0.01)
	assert.InDelta(t, report.Fees*0.8, report.PartnerEarnings, 0.01*float64(report.Delivered))

	assert.NotEmpty(t, out.Messages(models.TopicOfferVisible))
	assert.NotEmpty(t, out.Messages(models.TopicCourierMetrics))

	partners, err := store.Partners().All(context.Background())
	require.NoError(t, err)
	assert.Len(t, partners, config.Seed.Partners)

	busy := 0
	for _, p := range partners {
		if p.OperationalStatus == models.OperationalStatusOnDelivery {
			busy++
			assert.NotEmpty(t, p.CurrentOrderID)
		}
	}
	assert.Equal(t, report.InFlight, busy)
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulator(testConfig(), memory.NewStore(), notify.NewNotifier(notify.NewMemoryOutput())).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEventQueue_OrdersByTimeThenArrival(t *testing.T) {
	q := NewEventQueue()
	q.Enqueue(&Event{Time: start.Add(2 * time.Minute), OrderID: "late"})
	q.Enqueue(&Event{Time: start, OrderID: "first"})
	q.Enqueue(&Event{Time: start, OrderID: "second"})
	q.Enqueue(&Event{Time: start.Add(time.Minute), OrderID: "middle"})

	assert.Equal(t, 4, q.Len())
	assert.Equal(t, "first", q.Peek().OrderID)

	var got []string
	for e := q.Dequeue(); e != nil; e = q.Dequeue() {
		got = append(got, e.OrderID)
	}
	assert.Equal(t, []string{"first", "second", "middle", "late"}, got)
	assert.Nil(t, q.Peek())
}

func TestDemandMultiplier(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want float64
	}{
		{"quiet afternoon", time.Date(2026, 3, 4, 16, 0, 0, 0, time.UTC), 1.0},
		{"weekday lunch", time.Date(2026, 3, 4, 12, 30, 0, 0, time.UTC), 2.0},
		{"monday lunch", time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC), 2.4},
		{"friday dinner", time.Date(2026, 3, 6, 19, 0, 0, 0, time.UTC), 3.2},
		{"sunday breakfast", time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC), 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, demandMultiplier(tt.at), 1e-9)
		})
	}
}

func TestTravelSpeedMultiplier(t *testing.T) {
	assert.InDelta(t, 0.7, travelSpeedMultiplier(time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 1.3, travelSpeedMultiplier(time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 0.85, travelSpeedMultiplier(time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)), 1e-9)
	assert.InDelta(t, 1.0, travelSpeedMultiplier(time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)), 1e-9)
}

func TestDistributions(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	assert.Zero(t, poisson(rng, 0))
	total := 0
	for i := 0; i < 10000; i++ {
		total += poisson(rng, 2.5)
	}
	assert.InDelta(t, 2.5, float64(total)/10000, 0.1)

	for i := 0; i < 1000; i++ {
		v := normal(rng, 1, 0.5, 0.6, 1.8)
		assert.GreaterOrEqual(t, v, 0.6)
		assert.LessOrEqual(t, v, 1.8)
	}

	centre := models.Location{Lat: -23.5505, Lon: -46.6333}
	for i := 0; i < 1000; i++ {
		assert.LessOrEqual(t, geo.Distance(centre, pointWithin(rng, centre, 3)), 3.0)
	}
}
