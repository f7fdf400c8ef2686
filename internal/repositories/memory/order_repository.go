package memory

import (
	"context"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

type OrderRepository struct {
	v view
}

func cloneOrder(o *models.Order) *models.Order {
	c := *o
	if o.PickupLocation != nil {
		loc := *o.PickupLocation
		c.PickupLocation = &loc
	}
	if o.DeliveryLocation != nil {
		loc := *o.DeliveryLocation
		c.DeliveryLocation = &loc
	}
	c.Delivery = cloneDelivery(o.Delivery)
	return &c
}

func cloneDelivery(d models.DeliveryInfo) models.DeliveryInfo {
	if d.Partner != nil {
		p := *d.Partner
		d.Partner = &p
	}
	if d.AssignedAt != nil {
		t := *d.AssignedAt
		d.AssignedAt = &t
	}
	if d.DeliveredAt != nil {
		t := *d.DeliveredAt
		d.DeliveredAt = &t
	}
	return d
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.v.with(func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return repositories.ErrDuplicate
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	var out *models.Order
	err := r.v.with(func(st *state) error {
		order, ok := st.orders[id]
		if !ok {
			return repositories.ErrNotFound
		}
		out = cloneOrder(order)
		return nil
	})
	return out, err
}

func (r *OrderRepository) UpdateDelivery(ctx context.Context, orderID string, delivery models.DeliveryInfo) error {
	return r.v.with(func(st *state) error {
		stored, ok := st.orders[orderID]
		if !ok {
			return repositories.ErrNotFound
		}
		updated := cloneOrder(stored)
		updated.Delivery = cloneDelivery(delivery)
		st.orders[orderID] = updated
		return nil
	})
}
