package geoindex

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories/memory"
)

const testKey = "partners:geo"

var (
	origin = models.Location{Lat: -23.561, Lon: -46.656}

	// east of origin along the same parallel
	inside   = models.Location{Lat: -23.561, Lon: -46.60793} // 4.90 km
	boundary = models.Location{Lat: -23.561, Lon: -46.60675} // 5.02 km
	outside  = models.Location{Lat: -23.561, Lon: -46.604}   // 5.30 km
)

type indexFixture struct {
	redis *miniredis.Miniredis
	store *memory.Store
	index *RedisIndex
}

func newIndexFixture(t *testing.T) *indexFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(models.RedisConfig{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := memory.NewStore()
	return &indexFixture{redis: mr, store: store, index: NewRedisIndex(client, testKey, store.Partners())}
}

func (f *indexFixture) addPartner(t *testing.T, id string, location *models.Location, status string) *models.DeliveryPartner {
	t.Helper()
	partner := &models.DeliveryPartner{
		ID:                id,
		Name:              "Partner " + id,
		VehicleType:       "bicycle",
		Status:            models.PartnerStatusActive,
		OperationalStatus: status,
		CurrentLocation:   location,
	}
	require.NoError(t, f.store.Partners().Create(context.Background(), partner))
	return partner
}

func (f *indexFixture) members(t *testing.T) []string {
	t.Helper()
	if !f.redis.Exists(testKey) {
		return nil
	}
	members, err := f.redis.ZMembers(testKey)
	require.NoError(t, err)
	return members
}

func ids(partners []*models.DeliveryPartner) []string {
	out := make([]string, 0, len(partners))
	for _, p := range partners {
		out = append(out, p.ID)
	}
	return out
}

func TestFixturesDistances(t *testing.T) {
	assert.InDelta(t, 4.90, geo.Distance(origin, inside), 0.01)
	assert.InDelta(t, 5.02, geo.Distance(origin, boundary), 0.01)
	assert.InDelta(t, 5.30, geo.Distance(origin, outside), 0.01)
}

func TestFindAvailableNearby_Radius(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)
	for id, loc := range map[string]models.Location{"inside": inside, "boundary": boundary, "outside": outside} {
		f.addPartner(t, id, &loc, models.OperationalStatusOnlineIdle)
		require.NoError(t, f.index.Track(ctx, id, loc))
	}

	found, err := f.index.FindAvailableNearby(ctx, origin, 5)
	require.NoError(t, err)
	// the slack lets the boundary partner through; the directory makes the exact cut
	assert.Equal(t, []string{"inside", "boundary"}, ids(found))
	assert.Equal(t, "Partner inside", found[0].Name)

	found, err = f.index.FindAvailableNearby(ctx, origin, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside", "boundary", "outside"}, ids(found))
}

func TestFindAvailableNearby_EmptyIndex(t *testing.T) {
	f := newIndexFixture(t)

	found, err := f.index.FindAvailableNearby(context.Background(), origin, 20)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestFindAvailableNearby_DropsIDsUnknownToStore(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)
	f.addPartner(t, "known", &inside, models.OperationalStatusOnlineIdle)
	require.NoError(t, f.index.Track(ctx, "known", inside))
	require.NoError(t, f.index.Track(ctx, "retired", inside))

	found, err := f.index.FindAvailableNearby(ctx, origin, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"known"}, ids(found))
}

func TestTrackAndForget(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)
	f.addPartner(t, "p1", &outside, models.OperationalStatusOnlineIdle)

	require.NoError(t, f.index.Track(ctx, "p1", outside))
	found, err := f.index.FindAvailableNearby(ctx, origin, 5)
	require.NoError(t, err)
	assert.Empty(t, found)

	// a later position replaces the earlier one
	require.NoError(t, f.index.Track(ctx, "p1", inside))
	found, err = f.index.FindAvailableNearby(ctx, origin, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, ids(found))

	require.NoError(t, f.index.Forget(ctx, "p1"))
	found, err = f.index.FindAvailableNearby(ctx, origin, 5)
	require.NoError(t, err)
	assert.Empty(t, found)
	assert.NoError(t, f.index.Forget(ctx, "p1"), "forgetting twice is harmless")
}

func TestRebuild(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)
	partners := []*models.DeliveryPartner{
		f.addPartner(t, "located", &inside, models.OperationalStatusOnlineIdle),
		f.addPartner(t, "busy", &boundary, models.OperationalStatusOnDelivery),
		f.addPartner(t, "unlocated", nil, models.OperationalStatusOnlineIdle),
		f.addPartner(t, "offline", &inside, models.OperationalStatusOffline),
	}

	require.NoError(t, f.index.Rebuild(ctx, partners))
	assert.ElementsMatch(t, []string{"located", "busy"}, f.members(t))

	found, err := f.index.FindAvailableNearby(ctx, origin, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"located", "busy"}, ids(found))
}

func TestRebuild_NothingToIndex(t *testing.T) {
	f := newIndexFixture(t)
	unlocated := f.addPartner(t, "unlocated", nil, models.OperationalStatusOnlineIdle)

	require.NoError(t, f.index.Rebuild(context.Background(), []*models.DeliveryPartner{unlocated}))
	assert.Empty(t, f.members(t))
}

func TestRedisUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newIndexFixture(t)
	f.redis.Close()

	err := f.index.Track(ctx, "p1", inside)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geoadd p1")

	_, err = f.index.FindAvailableNearby(ctx, origin, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "georadius")
}
