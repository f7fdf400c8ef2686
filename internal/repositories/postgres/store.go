// Package postgres stores dispatch state in PostgreSQL with PostGIS for partner search.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

//go:embed schema.sql
var schema string

const uniqueViolation = "23505"

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

var _ repositories.Store = (*Store)(nil)

func NewStore(ctx context.Context, config models.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// EnsureSchema creates the dispatch tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Offers() repositories.OfferRepository {
	return NewOfferRepository(s.pool)
}

func (s *Store) Partners() repositories.DeliveryPartnerRepository {
	return NewDeliveryPartnerRepository(s.pool)
}

func (s *Store) Orders() repositories.OrderRepository {
	return NewOrderRepository(s.pool)
}

func (s *Store) Earnings() repositories.EarningRepository {
	return NewEarningRepository(s.pool)
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Repositories) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, txRepositories{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// txRepositories lock the rows they read so read-modify-write sequences inside RunInTx serialize.
type txRepositories struct {
	tx pgx.Tx
}

func (t txRepositories) Offers() repositories.OfferRepository {
	return &OfferRepository{db: t.tx, lock: true}
}

func (t txRepositories) Partners() repositories.DeliveryPartnerRepository {
	return &DeliveryPartnerRepository{db: t.tx, lock: true}
}

func (t txRepositories) Orders() repositories.OrderRepository {
	return &OrderRepository{db: t.tx, lock: true}
}

func (t txRepositories) Earnings() repositories.EarningRepository {
	return &EarningRepository{db: t.tx}
}

func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repositories.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repositories.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

// point returns the lon/lat pair for ST_MakePoint, or nils for a NULL geography.
func point(location *models.Location) (lon, lat *float64) {
	if location == nil {
		return nil, nil
	}
	return &location.Lon, &location.Lat
}

func location(lon, lat *float64) *models.Location {
	if lon == nil || lat == nil {
		return nil
	}
	return &models.Location{Lon: *lon, Lat: *lat}
}
