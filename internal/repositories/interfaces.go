package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/chrisdamba/foodispatch/internal/models"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrVersionConflict = errors.New("version conflict")
	// ErrConditionFailed is returned when a conditional write finds the record in another state.
	ErrConditionFailed = errors.New("conditional update failed")
)

type OfferRepository interface {
	// Create fails with ErrDuplicate when the order already has an open or accepted offer.
	Create(ctx context.Context, offer *models.Offer) error
	Get(ctx context.Context, id string) (*models.Offer, error)
	FindActiveByOrder(ctx context.Context, orderID string) (*models.Offer, error)
	// ListExpired returns open offers with expires_at <= now, oldest first.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*models.Offer, error)
	ListOpenVisibleTo(ctx context.Context, partnerID string) ([]*models.Offer, error)
	// Update writes offer only if the stored version equals expectedVersion, then bumps offer.Version.
	Update(ctx context.Context, offer *models.Offer, expectedVersion int64) error
	// Accept moves an open, unexpired offer visible to partnerID to accepted.
	Accept(ctx context.Context, offerID, partnerID string, now time.Time) (*models.Offer, error)
	RevertAcceptance(ctx context.Context, offerID, partnerID string) error
	// CancelOpenByOrder cancels every open offer of the order except exceptID.
	CancelOpenByOrder(ctx context.Context, orderID, exceptID string) (int, error)
}

type DeliveryPartnerRepository interface {
	Create(ctx context.Context, partner *models.DeliveryPartner) error
	BulkCreate(ctx context.Context, partners []*models.DeliveryPartner) error
	Get(ctx context.Context, id string) (*models.DeliveryPartner, error)
	GetByIDs(ctx context.Context, ids []string) ([]*models.DeliveryPartner, error)
	// FindAvailableNearby may return a superset of the partners within radiusKm.
	FindAvailableNearby(ctx context.Context, location models.Location, radiusKm float64) ([]*models.DeliveryPartner, error)
	Update(ctx context.Context, partner *models.DeliveryPartner) error
	UpdateLocation(ctx context.Context, partnerID string, location models.Location) error
	Count(ctx context.Context) (int, error)
	All(ctx context.Context) ([]*models.DeliveryPartner, error)
}

type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	UpdateDelivery(ctx context.Context, orderID string, delivery models.DeliveryInfo) error
}

type EarningRepository interface {
	// Create fails with ErrDuplicate when the order already has an earning.
	Create(ctx context.Context, record *models.EarningRecord) error
	GetByOrder(ctx context.Context, orderID string) (*models.EarningRecord, error)
	ListByPartner(ctx context.Context, partnerID string) ([]*models.EarningRecord, error)
	ListCompletedBetween(ctx context.Context, from, to time.Time) ([]*models.EarningRecord, error)
}

type Repositories interface {
	Offers() OfferRepository
	Partners() DeliveryPartnerRepository
	Orders() OrderRepository
	Earnings() EarningRepository
}

type Store interface {
	Repositories
	// RunInTx runs fn with repositories bound to a single transaction.
	// Writes made through tx commit together when fn returns nil and are discarded otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Repositories) error) error
	Close()
}
