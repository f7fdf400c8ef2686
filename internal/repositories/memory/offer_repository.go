package memory

import (
	"context"
	"sort"
	"time"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

type OfferRepository struct {
	v view
}

func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.offers[offer.ID]; ok {
			return repositories.ErrDuplicate
		}
		for _, existing := range st.offers {
			if existing.OrderID == offer.OrderID && existing.IsActive() {
				return repositories.ErrDuplicate
			}
		}
		offer.Version = 1
		st.offers[offer.ID] = offer.Clone()
		return nil
	})
}

func (r *OfferRepository) Get(ctx context.Context, id string) (*models.Offer, error) {
	var out *models.Offer
	err := r.v.with(func(st *state) error {
		offer, ok := st.offers[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = offer.Clone()
		return nil
	})
	return out, err
}

func (r *OfferRepository) FindActiveByOrder(ctx context.Context, orderID string) (*models.Offer, error) {
	var out *models.Offer
	err := r.v.with(func(st *state) error {
		for _, offer := range st.offers {
			if offer.OrderID == orderID && offer.IsActive() {
				out = offer.Clone()
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (r *OfferRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Offer, error) {
	var out []*models.Offer
	err := r.v.with(func(st *state) error {
		for _, offer := range st.offers {
			if offer.Status == models.OfferStatusOpen && !offer.ExpiresAt.After(now) {
				out = append(out, offer.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExpiresAt.Equal(out[j].ExpiresAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExpiresAt.Before(out[j].ExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *OfferRepository) ListOpenVisibleTo(ctx context.Context, partnerID string) ([]*models.Offer, error) {
	var out []*models.Offer
	err := r.v.with(func(st *state) error {
		for _, offer := range st.offers {
			if offer.Status == models.OfferStatusOpen && offer.IsVisibleTo(partnerID) {
				out = append(out, offer.Clone())
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}

func (r *OfferRepository) Update(ctx context.Context, offer *models.Offer, expectedVersion int64) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.offers[offer.ID]
		if !ok {
			return repositories.ErrNotFound
		}
		if stored.Version != expectedVersion {
			return repositories.ErrVersionConflict
		}
		offer.Version = expectedVersion + 1
		st.offers[offer.ID] = offer.Clone()
		return nil
	})
}

func (r *OfferRepository) Accept(ctx context.Context, offerID, partnerID string, now time.Time) (*models.Offer, error) {
	var out *models.Offer
	err := r.v.with(func(st *state) error {
		stored, ok := st.offers[offerID]
		if !ok {
			return repositories.ErrNotFound
		}
		if stored.Status != models.OfferStatusOpen || !stored.IsVisibleTo(partnerID) || now.After(stored.ExpiresAt) {
			return repositories.ErrConditionFailed
		}
		accepted := stored.Clone()
		accepted.Status = models.OfferStatusAccepted
		accepted.AcceptedBy = partnerID
		accepted.Version++
		st.offers[offerID] = accepted
		out = accepted.Clone()
		return nil
	})
	return out, err
}

func (r *OfferRepository) RevertAcceptance(ctx context.Context, offerID, partnerID string) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.offers[offerID]
		if !ok {
			return repositories.ErrNotFound
		}
		if stored.Status != models.OfferStatusAccepted || stored.AcceptedBy != partnerID {
			return repositories.ErrConditionFailed
		}
		reverted := stored.Clone()
		reverted.Status = models.OfferStatusOpen
		reverted.AcceptedBy = ""
		reverted.Version++
		st.offers[offerID] = reverted
		return nil
	})
}

func (r *OfferRepository) CancelOpenByOrder(ctx context.Context, orderID, exceptID string) (int, error) {
	cancelled := 0
	err := r.v.with(func(st *state) error {
		for id, offer := range st.offers {
			if offer.OrderID != orderID || id == exceptID || offer.Status != models.OfferStatusOpen {
				continue
			}
			c := offer.Clone()
			c.Status = models.OfferStatusCancelled
			c.Version++
			st.offers[id] = c
			cancelled++
		}
		return nil
	})
	return cancelled, err
}
