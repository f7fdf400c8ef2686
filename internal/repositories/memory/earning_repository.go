package memory

import (
	"context"
	"sort"
	"time"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

type EarningRepository struct {
	v view
}

func (r *EarningRepository) Create(ctx context.Context, record *models.EarningRecord) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.earnings[record.ID]; ok {
			return repositories.ErrDuplicate
		}
		for _, existing := range st.earnings {
			if existing.OrderID == record.OrderID {
				return repositories.ErrDuplicate
			}
		}
		c := *record
		st.earnings[record.ID] = &c
		return nil
	})
}

func (r *EarningRepository) GetByOrder(ctx context.Context, orderID string) (*models.EarningRecord, error) {
	var out *models.EarningRecord
	err := r.v.with(func(st *state) error {
		for _, record := range st.earnings {
			if record.OrderID == orderID {
				c := *record
				out = &c
				return nil
			}
		}
		return repositories.ErrNotFound
	})
	return out, err
}

func (r *EarningRepository) ListByPartner(ctx context.Context, partnerID string) ([]*models.EarningRecord, error) {
	return r.list(func(e *models.EarningRecord) bool { return e.PartnerID == partnerID })
}

func (r *EarningRepository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]*models.EarningRecord, error) {
	return r.list(func(e *models.EarningRecord) bool {
		return !e.CompletedAt.Before(from) && e.CompletedAt.Before(to)
	})
}

func (r *EarningRepository) list(match func(*models.EarningRecord) bool) ([]*models.EarningRecord, error) {
	var out []*models.EarningRecord
	err := r.v.with(func(st *state) error {
		for _, record := range st.earnings {
			if match(record) {
				c := *record
				out = append(out, &c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(out[j].CompletedAt) })
	return out, err
}
