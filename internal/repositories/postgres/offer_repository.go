package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

type OfferRepository struct {
	db   querier
	lock bool
}

func NewOfferRepository(db querier) *OfferRepository {
	return &OfferRepository{db: db}
}

const offerColumns = `
            id, order_id,
            ST_X(pickup_location::geometry), ST_Y(pickup_location::geometry),
            ST_X(delivery_location::geometry), ST_Y(delivery_location::geometry),
            distance_km, earning_amount, status, visible_to_partners, attempt_number,
            search_radius_km, created_at, expires_at, accepted_by, version`

func scanOffer(row pgx.Row) (*models.Offer, error) {
	offer := &models.Offer{}
	err := row.Scan(
		&offer.ID,
		&offer.OrderID,
		&offer.PickupLocation.Lon,
		&offer.PickupLocation.Lat,
		&offer.DeliveryLocation.Lon,
		&offer.DeliveryLocation.Lat,
		&offer.DistanceKm,
		&offer.EarningAmount,
		&offer.Status,
		&offer.VisibleToPartners,
		&offer.AttemptNumber,
		&offer.SearchRadiusKm,
		&offer.CreatedAt,
		&offer.ExpiresAt,
		&offer.AcceptedBy,
		&offer.Version,
	)
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func collectOffers(rows pgx.Rows) ([]*models.Offer, error) {
	defer rows.Close()

	var offers []*models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}
	return offers, rows.Err()
}

func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	query := `
        INSERT INTO offers (
            id, order_id, pickup_location, delivery_location, distance_km, earning_amount,
            status, visible_to_partners, attempt_number, search_radius_km,
            created_at, expires_at, accepted_by, version
        ) VALUES (
            $1, $2,
            ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography,
            ST_SetSRID(ST_MakePoint($5, $6), 4326)::geography,
            $7, $8, $9, $10, $11, $12, $13, $14, $15, 1
        )
    `

	visible := offer.VisibleToPartners
	if visible == nil {
		visible = []string{}
	}
	_, err := r.db.Exec(ctx, query,
		offer.ID,
		offer.OrderID,
		offer.PickupLocation.Lon,
		offer.PickupLocation.Lat,
		offer.DeliveryLocation.Lon,
		offer.DeliveryLocation.Lat,
		offer.DistanceKm,
		offer.EarningAmount,
		offer.Status,
		visible,
		offer.AttemptNumber,
		offer.SearchRadiusKm,
		offer.CreatedAt,
		offer.ExpiresAt,
		offer.AcceptedBy,
	)
	if err != nil {
		return mapError(err)
	}
	offer.Version = 1
	return nil
}

func (r *OfferRepository) Get(ctx context.Context, id string) (*models.Offer, error) {
	query := `SELECT` + offerColumns + ` FROM offers WHERE id = $1` + forUpdate(r.lock)
	offer, err := scanOffer(r.db.QueryRow(ctx, query, id))
	return offer, mapError(err)
}

func (r *OfferRepository) FindActiveByOrder(ctx context.Context, orderID string) (*models.Offer, error) {
	query := `SELECT` + offerColumns + `
        FROM offers
        WHERE order_id = $1 AND status IN ('open', 'accepted')` + forUpdate(r.lock)
	offer, err := scanOffer(r.db.QueryRow(ctx, query, orderID))
	return offer, mapError(err)
}

func (r *OfferRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Offer, error) {
	query := `SELECT` + offerColumns + `
        FROM offers
        WHERE status = 'open' AND expires_at <= $1
        ORDER BY expires_at, id
        LIMIT $2`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	return collectOffers(rows)
}

func (r *OfferRepository) ListOpenVisibleTo(ctx context.Context, partnerID string) ([]*models.Offer, error) {
	query := `SELECT` + offerColumns + `
        FROM offers
        WHERE status = 'open' AND visible_to_partners @> ARRAY[$1]::text[]
        ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, partnerID)
	if err != nil {
		return nil, err
	}
	return collectOffers(rows)
}

func (r *OfferRepository) Update(ctx context.Context, offer *models.Offer, expectedVersion int64) error {
	query := `
        UPDATE offers
        SET
            status = $3,
            visible_to_partners = $4,
            attempt_number = $5,
            search_radius_km = $6,
            expires_at = $7,
            accepted_by = $8,
            version = version + 1
        WHERE id = $1 AND version = $2
    `

	visible := offer.VisibleToPartners
	if visible == nil {
		visible = []string{}
	}
	tag, err := r.db.Exec(ctx, query,
		offer.ID,
		expectedVersion,
		offer.Status,
		visible,
		offer.AttemptNumber,
		offer.SearchRadiusKm,
		offer.ExpiresAt,
		offer.AcceptedBy,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOr(ctx, offer.ID, repositories.ErrVersionConflict)
	}
	offer.Version = expectedVersion + 1
	return nil
}

func (r *OfferRepository) Accept(ctx context.Context, offerID, partnerID string, now time.Time) (*models.Offer, error) {
	query := `
        UPDATE offers
        SET status = 'accepted', accepted_by = $2, version = version + 1
        WHERE
            id = $1
            AND status = 'open'
            AND $2 = ANY(visible_to_partners)
            AND expires_at >= $3
        RETURNING` + offerColumns

	offer, err := scanOffer(r.db.QueryRow(ctx, query, offerID, partnerID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missOr(ctx, offerID, repositories.ErrConditionFailed)
	}
	return offer, mapError(err)
}

func (r *OfferRepository) RevertAcceptance(ctx context.Context, offerID, partnerID string) error {
	query := `
        UPDATE offers
        SET status = 'open', accepted_by = '', version = version + 1
        WHERE id = $1 AND status = 'accepted' AND accepted_by = $2
    `

	tag, err := r.db.Exec(ctx, query, offerID, partnerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missOr(ctx, offerID, repositories.ErrConditionFailed)
	}
	return nil
}

func (r *OfferRepository) CancelOpenByOrder(ctx context.Context, orderID, exceptID string) (int, error) {
	query := `
        UPDATE offers
        SET status = 'cancelled', version = version + 1
        WHERE order_id = $1 AND id <> $2 AND status = 'open'
    `

	tag, err := r.db.Exec(ctx, query, orderID, exceptID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// missOr distinguishes a missing offer from one whose condition did not hold.
func (r *OfferRepository) missOr(ctx context.Context, id string, conditionErr error) error {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM offers WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return repositories.ErrNotFound
	}
	return conditionErr
}
