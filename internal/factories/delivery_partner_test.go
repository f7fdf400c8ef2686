package factories

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
)

func seedConfig() models.SeedConfig {
	return models.SeedConfig{
		Partners:    200,
		CityLat:     -23.5505,
		CityLon:     -46.6333,
		UrbanRadius: 15,
		OnlineShare: 0.7,
	}
}

func TestCreateDeliveryPartners_InsideUrbanRadius(t *testing.T) {
	config := seedConfig()
	centre := models.Location{Lat: config.CityLat, Lon: config.CityLon}

	partners := NewDeliveryPartnerFactory(42).CreateDeliveryPartners(config)
	require.Len(t, partners, config.Partners)

	ids := make(map[string]bool)
	online := 0
	for _, p := range partners {
		require.NotNil(t, p.CurrentLocation)
		// the degree conversion is approximate
		assert.LessOrEqual(t, geo.Distance(centre, *p.CurrentLocation), config.UrbanRadius*1.02)
		assert.Equal(t, models.PartnerStatusActive, p.Status)
		assert.Contains(t, []string{models.OperationalStatusOnlineIdle, models.OperationalStatusOffline}, p.OperationalStatus)
		assert.NotEmpty(t, p.Name)
		assert.Contains(t, vehicleTypes, p.VehicleType)
		assert.False(t, ids[p.ID], "duplicate id %s", p.ID)
		ids[p.ID] = true
		if p.OperationalStatus == models.OperationalStatusOnlineIdle {
			online++
		}
	}
	// 70% online, loosely
	assert.InDelta(t, 140, online, 30)
}

func TestCreateDeliveryPartner_OnlineShareBounds(t *testing.T) {
	config := seedConfig()
	config.Partners = 20

	config.OnlineShare = 0
	for _, p := range NewDeliveryPartnerFactory(1).CreateDeliveryPartners(config) {
		assert.Equal(t, models.OperationalStatusOffline, p.OperationalStatus)
	}

	config.OnlineShare = 1.01
	for _, p := range NewDeliveryPartnerFactory(1).CreateDeliveryPartners(config) {
		assert.Equal(t, models.OperationalStatusOnlineIdle, p.OperationalStatus)
	}
}
