package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/chrisdamba/foodispatch/internal/models"
)

type EarningRepository struct {
	db querier
}

func NewEarningRepository(db querier) *EarningRepository {
	return &EarningRepository{db: db}
}

const earningColumns = `
            id, partner_id, order_id, gross_amount, platform_fee, net_amount,
            status, created_at, completed_at`

func scanEarning(row pgx.Row) (*models.EarningRecord, error) {
	record := &models.EarningRecord{}
	err := row.Scan(
		&record.ID,
		&record.PartnerID,
		&record.OrderID,
		&record.GrossAmount,
		&record.PlatformFee,
		&record.NetAmount,
		&record.Status,
		&record.CreatedAt,
		&record.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (r *EarningRepository) Create(ctx context.Context, record *models.EarningRecord) error {
	query := `
        INSERT INTO earnings (` + earningColumns + `
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
    `

	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.PartnerID,
		record.OrderID,
		record.GrossAmount,
		record.PlatformFee,
		record.NetAmount,
		record.Status,
		record.CreatedAt,
		record.CompletedAt,
	)
	return mapError(err)
}

func (r *EarningRepository) GetByOrder(ctx context.Context, orderID string) (*models.EarningRecord, error) {
	query := `SELECT` + earningColumns + ` FROM earnings WHERE order_id = $1`
	record, err := scanEarning(r.db.QueryRow(ctx, query, orderID))
	return record, mapError(err)
}

func (r *EarningRepository) ListByPartner(ctx context.Context, partnerID string) ([]*models.EarningRecord, error) {
	query := `SELECT` + earningColumns + `
        FROM earnings
        WHERE partner_id = $1
        ORDER BY completed_at`
	return r.list(ctx, query, partnerID)
}

func (r *EarningRepository) ListCompletedBetween(ctx context.Context, from, to time.Time) ([]*models.EarningRecord, error) {
	query := `SELECT` + earningColumns + `
        FROM earnings
        WHERE completed_at >= $1 AND completed_at < $2
        ORDER BY completed_at`
	return r.list(ctx, query, from, to)
}

func (r *EarningRepository) list(ctx context.Context, query string, args ...any) ([]*models.EarningRecord, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*models.EarningRecord
	for rows.Next() {
		record, err := scanEarning(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
