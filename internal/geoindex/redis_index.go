// Package geoindex keeps live partner positions in a Redis GEO set so candidate
// search does not scan every partner row.
package geoindex

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

// Redis measures on a slightly larger sphere than geo.Distance; widen the search so the
// directory's exact check is the one that decides.
const radiusSlack = 1.01

type RedisIndex struct {
	client   *redis.Client
	key      string
	partners repositories.DeliveryPartnerRepository
}

func NewRedisIndex(client *redis.Client, key string, partners repositories.DeliveryPartnerRepository) *RedisIndex {
	return &RedisIndex{client: client, key: key, partners: partners}
}

func NewClient(config models.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
}

// Track records the partner's latest position.
func (i *RedisIndex) Track(ctx context.Context, partnerID string, location models.Location) error {
	err := i.client.GeoAdd(ctx, i.key, &redis.GeoLocation{
		Name:      partnerID,
		Longitude: location.Lon,
		Latitude:  location.Lat,
	}).Err()
	if err != nil {
		return fmt.Errorf("geoadd %s: %w", partnerID, err)
	}
	return nil
}

// Forget removes the partner so candidate search no longer returns them.
func (i *RedisIndex) Forget(ctx context.Context, partnerID string) error {
	if err := i.client.ZRem(ctx, i.key, partnerID).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", partnerID, err)
	}
	return nil
}

func (i *RedisIndex) FindAvailableNearby(ctx context.Context, location models.Location, radiusKm float64) ([]*models.DeliveryPartner, error) {
	found, err := i.client.GeoRadius(ctx, i.key, location.Lon, location.Lat, &redis.GeoRadiusQuery{
		Radius: radiusKm * radiusSlack,
		Unit:   "km",
		Sort:   "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius: %w", err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	ids := make([]string, len(found))
	for k, loc := range found {
		ids[k] = loc.Name
	}

	zap.L().Debug("geo index candidates",
		zap.Stringer("origin", location),
		zap.Float64("radius_km", radiusKm),
		zap.Int("count", len(ids)))

	return i.partners.GetByIDs(ctx, ids)
}

// Rebuild loads every known position of an online partner from the store into the index.
func (i *RedisIndex) Rebuild(ctx context.Context, partners []*models.DeliveryPartner) error {
	locations := make([]*redis.GeoLocation, 0, len(partners))
	for _, p := range partners {
		if p.CurrentLocation == nil || p.OperationalStatus == models.OperationalStatusOffline {
			continue
		}
		locations = append(locations, &redis.GeoLocation{
			Name:      p.ID,
			Longitude: p.CurrentLocation.Lon,
			Latitude:  p.CurrentLocation.Lat,
		})
	}
	if len(locations) == 0 {
		return nil
	}
	return i.client.GeoAdd(ctx, i.key, locations...).Err()
}
