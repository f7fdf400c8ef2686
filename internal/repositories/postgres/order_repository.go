package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

// OrderRepository keeps the delivery sub-document of an order as JSONB.
type OrderRepository struct {
	db   querier
	lock bool
}

func NewOrderRepository(db querier) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
        INSERT INTO orders (
            id, store_id, customer_id, pickup_location, delivery_location,
            total_amount, created_at, delivery
        ) VALUES (
            $1, $2, $3,
            ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography,
            ST_SetSRID(ST_MakePoint($6, $7), 4326)::geography,
            $8, $9, $10
        )
    `

	delivery, err := json.Marshal(order.Delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}
	pickupLon, pickupLat := point(order.PickupLocation)
	dropoffLon, dropoffLat := point(order.DeliveryLocation)

	_, err = r.db.Exec(ctx, query,
		order.ID,
		order.StoreID,
		order.CustomerID,
		pickupLon,
		pickupLat,
		dropoffLon,
		dropoffLat,
		order.TotalAmount,
		order.CreatedAt,
		delivery,
	)
	return mapError(err)
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	query := `
        SELECT
            id, store_id, customer_id,
            ST_X(pickup_location::geometry), ST_Y(pickup_location::geometry),
            ST_X(delivery_location::geometry), ST_Y(delivery_location::geometry),
            total_amount, created_at, delivery
        FROM orders
        WHERE id = $1` + forUpdate(r.lock)

	var (
		order                                        models.Order
		pickupLon, pickupLat, dropoffLon, dropoffLat *float64
		delivery                                     []byte
	)
	err := r.db.QueryRow(ctx, query, id).Scan(
		&order.ID,
		&order.StoreID,
		&order.CustomerID,
		&pickupLon,
		&pickupLat,
		&dropoffLon,
		&dropoffLat,
		&order.TotalAmount,
		&order.CreatedAt,
		&delivery,
	)
	if err != nil {
		return nil, mapError(err)
	}
	if err := json.Unmarshal(delivery, &order.Delivery); err != nil {
		return nil, fmt.Errorf("decode delivery of %s: %w", id, err)
	}
	order.PickupLocation = location(pickupLon, pickupLat)
	order.DeliveryLocation = location(dropoffLon, dropoffLat)
	return &order, nil
}

func (r *OrderRepository) UpdateDelivery(ctx context.Context, orderID string, delivery models.DeliveryInfo) error {
	payload, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("marshal delivery: %w", err)
	}

	tag, err := r.db.Exec(ctx, `UPDATE orders SET delivery = $2 WHERE id = $1`, orderID, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
