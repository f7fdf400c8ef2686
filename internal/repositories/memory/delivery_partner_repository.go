package memory

import (
	"context"
	"sort"

	"github.com/chrisdamba/foodispatch/internal/geo"
	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

type DeliveryPartnerRepository struct {
	v view
}

func clonePartner(p *models.DeliveryPartner) *models.DeliveryPartner {
	c := *p
	if p.CurrentLocation != nil {
		loc := *p.CurrentLocation
		c.CurrentLocation = &loc
	}
	return &c
}

func (r *DeliveryPartnerRepository) Create(ctx context.Context, partner *models.DeliveryPartner) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.partners[partner.ID]; ok {
			return repositories.ErrDuplicate
		}
		st.partners[partner.ID] = clonePartner(partner)
		return nil
	})
}

func (r *DeliveryPartnerRepository) BulkCreate(ctx context.Context, partners []*models.DeliveryPartner) error {
	return r.v.with(func(st *state) error {
		for _, partner := range partners {
			if _, ok := st.partners[partner.ID]; ok {
				return repositories.ErrDuplicate
			}
		}
		for _, partner := range partners {
			st.partners[partner.ID] = clonePartner(partner)
		}
		return nil
	})
}

func (r *DeliveryPartnerRepository) Get(ctx context.Context, id string) (*models.DeliveryPartner, error) {
	var out *models.DeliveryPartner
	err := r.v.with(func(st *state) error {
		partner, ok := st.partners[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = clonePartner(partner)
		return nil
	})
	return out, err
}

func (r *DeliveryPartnerRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.DeliveryPartner, error) {
	var out []*models.DeliveryPartner
	err := r.v.with(func(st *state) error {
		for _, id := range ids {
			if partner, ok := st.partners[id]; ok {
				out = append(out, clonePartner(partner))
			}
		}
		return nil
	})
	return out, err
}

func (r *DeliveryPartnerRepository) FindAvailableNearby(ctx context.Context, location models.Location, radiusKm float64) ([]*models.DeliveryPartner, error) {
	var out []*models.DeliveryPartner
	err := r.v.with(func(st *state) error {
		for _, partner := range st.partners {
			if !partner.IsAvailable() {
				continue
			}
			if geo.Distance(location, *partner.CurrentLocation) <= radiusKm {
				out = append(out, clonePartner(partner))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *DeliveryPartnerRepository) Update(ctx context.Context, partner *models.DeliveryPartner) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.partners[partner.ID]; !ok {
			return repositories.ErrNotFound
		}
		st.partners[partner.ID] = clonePartner(partner)
		return nil
	})
}

func (r *DeliveryPartnerRepository) UpdateLocation(ctx context.Context, partnerID string, location models.Location) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.partners[partnerID]
		if !ok {
			return repositories.ErrNotFound
		}
		updated := clonePartner(stored)
		updated.CurrentLocation = &location
		st.partners[partnerID] = updated
		return nil
	})
}

func (r *DeliveryPartnerRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.v.with(func(st *state) error {
		n = len(st.partners)
		return nil
	})
	return n, err
}

func (r *DeliveryPartnerRepository) All(ctx context.Context) ([]*models.DeliveryPartner, error) {
	var out []*models.DeliveryPartner
	err := r.v.with(func(st *state) error {
		for _, partner := range st.partners {
			out = append(out, clonePartner(partner))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
