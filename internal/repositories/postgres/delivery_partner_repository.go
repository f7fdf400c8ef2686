package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

type DeliveryPartnerRepository struct {
	db   querier
	lock bool
}

func NewDeliveryPartnerRepository(db querier) *DeliveryPartnerRepository {
	return &DeliveryPartnerRepository{db: db}
}

const partnerColumns = `
            id, name, phone, vehicle_type, join_date, rating, status, operational_status,
            ST_X(current_location::geometry) as longitude,
            ST_Y(current_location::geometry) as latitude,
            current_order_id, total_deliveries, completed_deliveries, on_time_deliveries,
            total_earnings, current_balance, on_time_rate, last_update_time`

const insertPartner = `
        INSERT INTO delivery_partners (
            id, name, phone, vehicle_type, join_date, rating, status, operational_status,
            current_location, current_order_id, total_deliveries, completed_deliveries,
            on_time_deliveries, total_earnings, current_balance, on_time_rate, last_update_time
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8,
            ST_SetSRID(ST_MakePoint($9, $10), 4326)::geography,
            $11, $12, $13, $14, $15, $16, $17, $18
        )
    `

func partnerArgs(partner *models.DeliveryPartner) []any {
	lon, lat := point(partner.CurrentLocation)
	m := partner.Metrics
	return []any{
		partner.ID,
		partner.Name,
		partner.Phone,
		partner.VehicleType,
		partner.JoinDate,
		partner.Rating,
		partner.Status,
		partner.OperationalStatus,
		lon,
		lat,
		partner.CurrentOrderID,
		m.TotalDeliveries,
		m.CompletedDeliveries,
		m.OnTimeDeliveries,
		m.TotalEarnings,
		m.CurrentBalance,
		m.OnTimeRate,
		partner.LastUpdateTime,
	}
}

func scanPartner(row pgx.Row) (*models.DeliveryPartner, error) {
	var lon, lat *float64
	partner := &models.DeliveryPartner{}
	m := &partner.Metrics
	err := row.Scan(
		&partner.ID,
		&partner.Name,
		&partner.Phone,
		&partner.VehicleType,
		&partner.JoinDate,
		&partner.Rating,
		&partner.Status,
		&partner.OperationalStatus,
		&lon,
		&lat,
		&partner.CurrentOrderID,
		&m.TotalDeliveries,
		&m.CompletedDeliveries,
		&m.OnTimeDeliveries,
		&m.TotalEarnings,
		&m.CurrentBalance,
		&m.OnTimeRate,
		&partner.LastUpdateTime,
	)
	if err != nil {
		return nil, err
	}
	partner.CurrentLocation = location(lon, lat)
	return partner, nil
}

func collectPartners(rows pgx.Rows) ([]*models.DeliveryPartner, error) {
	defer rows.Close()

	var partners []*models.DeliveryPartner
	for rows.Next() {
		partner, err := scanPartner(rows)
		if err != nil {
			return nil, err
		}
		partners = append(partners, partner)
	}
	return partners, rows.Err()
}

func (r *DeliveryPartnerRepository) Create(ctx context.Context, partner *models.DeliveryPartner) error {
	_, err := r.db.Exec(ctx, insertPartner, partnerArgs(partner)...)
	return mapError(err)
}

func (r *DeliveryPartnerRepository) BulkCreate(ctx context.Context, partners []*models.DeliveryPartner) error {
	batch := &pgx.Batch{}
	for _, partner := range partners {
		batch.Queue(insertPartner, partnerArgs(partner)...)
	}
	return mapError(r.db.SendBatch(ctx, batch).Close())
}

func (r *DeliveryPartnerRepository) Get(ctx context.Context, id string) (*models.DeliveryPartner, error) {
	query := `SELECT` + partnerColumns + `
        FROM delivery_partners
        WHERE id = $1` + forUpdate(r.lock)

	partner, err := scanPartner(r.db.QueryRow(ctx, query, id))
	return partner, mapError(err)
}

func (r *DeliveryPartnerRepository) GetByIDs(ctx context.Context, ids []string) ([]*models.DeliveryPartner, error) {
	query := `SELECT` + partnerColumns + `
        FROM delivery_partners
        WHERE id = ANY($1)
        ORDER BY id`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	return collectPartners(rows)
}

func (r *DeliveryPartnerRepository) FindAvailableNearby(ctx context.Context, location models.Location, radiusKm float64) ([]*models.DeliveryPartner, error) {
	query := `SELECT` + partnerColumns + `
        FROM delivery_partners
        WHERE
            status = 'active'
            AND operational_status = 'online_idle'
            AND ST_DWithin(
                current_location,
                ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography,
                $3
            )
        ORDER BY
            ST_Distance(current_location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography) ASC,
            rating DESC`

	rows, err := r.db.Query(ctx, query, location.Lon, location.Lat, radiusKm*1000)
	if err != nil {
		return nil, err
	}
	return collectPartners(rows)
}

func (r *DeliveryPartnerRepository) Update(ctx context.Context, partner *models.DeliveryPartner) error {
	query := `
        UPDATE delivery_partners
        SET
            name = $2, phone = $3, vehicle_type = $4, join_date = $5, rating = $6,
            status = $7, operational_status = $8,
            current_location = ST_SetSRID(ST_MakePoint($9, $10), 4326)::geography,
            current_order_id = $11, total_deliveries = $12, completed_deliveries = $13,
            on_time_deliveries = $14, total_earnings = $15, current_balance = $16,
            on_time_rate = $17, last_update_time = $18,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, partnerArgs(partner)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *DeliveryPartnerRepository) UpdateLocation(ctx context.Context, partnerID string, location models.Location) error {
	query := `
        UPDATE delivery_partners
        SET
            current_location = ST_SetSRID(ST_MakePoint($2, $3), 4326)::geography,
            last_update_time = $4,
            updated_at = CURRENT_TIMESTAMP
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query,
		partnerID,
		location.Lon,
		location.Lat,
		time.Now(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *DeliveryPartnerRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM delivery_partners").Scan(&count)
	return count, err
}

// All returns every partner; used to rebuild the geo index at startup.
func (r *DeliveryPartnerRepository) All(ctx context.Context) ([]*models.DeliveryPartner, error) {
	rows, err := r.db.Query(ctx, `SELECT`+partnerColumns+` FROM delivery_partners`)
	if err != nil {
		return nil, err
	}
	return collectPartners(rows)
}
