// Package directory answers "which idle partners are within r km of this point".
package directory

import (
	"context"
	"fmt"
	"sort"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
)

// Source returns partners that might be within radiusKm. Over-inclusive results are fine;
// the directory applies the exact status and Haversine checks itself.
type Source interface {
	FindAvailableNearby(ctx context.Context, location models.Location, radiusKm float64) ([]*models.DeliveryPartner, error)
}

type Directory struct {
	source Source
}

func New(source Source) *Directory {
	return &Directory{source: source}
}

// FindCandidates returns the ids of active, idle partners with a known location within radiusKm.
func (d *Directory) FindCandidates(ctx context.Context, origin models.Location, radiusKm float64) ([]string, error) {
	partners, err := d.source.FindAvailableNearby(ctx, origin, radiusKm)
	if err != nil {
		return nil, fmt.Errorf("find partners near %s: %w", origin, err)
	}

	seen := make(map[string]struct{}, len(partners))
	ids := make([]string, 0, len(partners))
	for _, partner := range partners {
		if !partner.IsAvailable() {
			continue
		}
		if geo.Distance(origin, *partner.CurrentLocation) > radiusKm {
			continue
		}
		if _, dup := seen[partner.ID]; dup {
			continue
		}
		seen[partner.ID] = struct{}{}
		ids = append(ids, partner.ID)
	}
	sort.Strings(ids)
	return ids, nil
}
