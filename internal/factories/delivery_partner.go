// Package factories builds fake partner fleets for local runs and load tests.
package factories

import (
	"math"
	"math/rand"
	"time"

	"github.com/jaswdr/faker"
	"github.com/lucsky/cuid"

	"github.com/chrisdamba/foodispatch/internal/models"
)

var vehicleTypes = []string{"motorcycle", "bicycle", "car", "scooter"}

type DeliveryPartnerFactory struct {
	fake faker.Faker
	now  func() time.Time
}

func NewDeliveryPartnerFactory(seed int64) *DeliveryPartnerFactory {
	return &DeliveryPartnerFactory{
		fake: faker.NewWithSeed(rand.NewSource(seed)),
		now:  time.Now,
	}
}

// CreateDeliveryPartner places an active partner uniformly inside the city's urban radius.
// A share of config.OnlineShare starts online and idle, the rest offline.
func (df *DeliveryPartnerFactory) CreateDeliveryPartner(config models.SeedConfig) *models.DeliveryPartner {
	fake := df.fake

	// Calculate city bounds
	latRange := config.UrbanRadius / 111.0 // Approx. conversion from km to degrees
	lonRange := latRange / math.Cos(config.CityLat*math.Pi/180.0)

	// sqrt keeps the density even across the disc
	r := math.Sqrt(unit(fake))
	theta := unit(fake) * 2 * math.Pi
	location := models.Location{
		Lat: round6(config.CityLat + r*latRange*math.Sin(theta)),
		Lon: round6(config.CityLon + r*lonRange*math.Cos(theta)),
	}

	operational := models.OperationalStatusOffline
	if unit(fake) < config.OnlineShare {
		operational = models.OperationalStatusOnlineIdle
	}

	now := df.now()
	return &models.DeliveryPartner{
		ID:                cuid.New(),
		Name:              fake.Person().Name(),
		Phone:             fake.Phone().Number(),
		VehicleType:       fake.RandomStringElement(vehicleTypes),
		JoinDate:          fake.Time().TimeBetween(now.AddDate(-1, 0, 0), now),
		Rating:            fake.Float64(1, 3, 5),
		Status:            models.PartnerStatusActive,
		OperationalStatus: operational,
		CurrentLocation:   &location,
		LastUpdateTime:    now,
	}
}

func (df *DeliveryPartnerFactory) CreateDeliveryPartners(config models.SeedConfig) []*models.DeliveryPartner {
	partners := make([]*models.DeliveryPartner, 0, config.Partners)
	for i := 0; i < config.Partners; i++ {
		partners = append(partners, df.CreateDeliveryPartner(config))
	}
	return partners
}

// unit returns a value in [0, 1].
func unit(fake faker.Faker) float64 {
	return float64(fake.IntBetween(0, 1_000_000)) / 1_000_000
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
