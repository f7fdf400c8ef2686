package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories/memory"
)

type staticSource struct {
	partners []*models.DeliveryPartner
	err      error
}

func (s staticSource) FindAvailableNearby(context.Context, models.Location, float64) ([]*models.DeliveryPartner, error) {
	return s.partners, s.err
}

func loc(lat, lon float64) *models.Location {
	return &models.Location{Lat: lat, Lon: lon}
}

func idle(id string, l *models.Location) *models.DeliveryPartner {
	return &models.DeliveryPartner{
		ID:                id,
		Status:            models.PartnerStatusActive,
		OperationalStatus: models.OperationalStatusOnlineIdle,
		CurrentLocation:   l,
	}
}

var origin = models.Location{Lat: -23.561, Lon: -46.656}

func TestFindCandidates_FiltersSupersetFromSource(t *testing.T) {
	busy := idle("busy", loc(-23.562, -46.657))
	busy.OperationalStatus = models.OperationalStatusOnDelivery
	suspended := idle("suspended", loc(-23.562, -46.657))
	suspended.Status = models.PartnerStatusSuspended

	d := New(staticSource{partners: []*models.DeliveryPartner{
		idle("near", loc(-23.562, -46.657)),
		idle("near", loc(-23.562, -46.657)),
		idle("far", loc(-23.700, -46.900)),
		idle("unknown", nil),
		busy,
		suspended,
	}})

	ids, err := d.FindCandidates(context.Background(), origin, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"near"}, ids)
}

func TestFindCandidates_RadiusIsInclusive(t *testing.T) {
	edge := idle("edge", &origin)
	d := New(staticSource{partners: []*models.DeliveryPartner{edge}})

	ids, err := d.FindCandidates(context.Background(), origin, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, ids)
}

func TestFindCandidates_SourceError(t *testing.T) {
	d := New(staticSource{err: errors.New("db down")})
	_, err := d.FindCandidates(context.Background(), origin, 5)
	assert.ErrorContains(t, err, "db down")
}

func TestFindCandidates_MemoryStore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Partners().BulkCreate(ctx, []*models.DeliveryPartner{
		idle("p-3km", loc(-23.561, -46.627)),
		idle("p-8km", loc(-23.561, -46.578)),
		idle("p-30km", loc(-23.561, -46.362)),
	}))
	d := New(store.Partners())

	ids, err := d.FindCandidates(ctx, origin, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-3km"}, ids)

	ids, err = d.FindCandidates(ctx, origin, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"p-3km", "p-8km"}, ids)
}
