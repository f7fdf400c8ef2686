// Package memory is a process-local Store. Every operation, and every RunInTx body,
// executes under one mutex, which makes all writes serializable.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/chrisdamba/foodispatch/internal/models"
	"github.com/chrisdamba/foodispatch/internal/repositories"
)

type state struct {
	offers   map[string]*models.Offer
	partners map[string]*models.DeliveryPartner
	orders   map[string]*models.Order
	earnings map[string]*models.EarningRecord
}

func newState() *state {
	return &state{
		offers:   make(map[string]*models.Offer),
		partners: make(map[string]*models.DeliveryPartner),
		orders:   make(map[string]*models.Order),
		earnings: make(map[string]*models.EarningRecord),
	}
}

// clone copies the maps only; stored records are replaced on write, never mutated.
func (s *state) clone() *state {
	return &state{
		offers:   maps.Clone(s.offers),
		partners: maps.Clone(s.partners),
		orders:   maps.Clone(s.orders),
		earnings: maps.Clone(s.earnings),
	}
}

type Store struct {
	mu sync.Mutex
	st *state
}

var _ repositories.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{st: newState()}
}

// view is the repository set handed out by the store; inTx views assume the lock is held.
type view struct {
	store *Store
	inTx  bool
}

func (v view) with(fn func(st *state) error) error {
	if !v.inTx {
		v.store.mu.Lock()
		defer v.store.mu.Unlock()
	}
	return fn(v.store.st)
}

func (s *Store) Offers() repositories.OfferRepository {
	return &OfferRepository{view{store: s}}
}

func (s *Store) Partners() repositories.DeliveryPartnerRepository {
	return &DeliveryPartnerRepository{view{store: s}}
}

func (s *Store) Orders() repositories.OrderRepository {
	return &OrderRepository{view{store: s}}
}

func (s *Store) Earnings() repositories.EarningRepository {
	return &EarningRepository{view{store: s}}
}

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(ctx, txRepositories{view{store: s, inTx: true}}); err != nil {
		s.st = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) Close() {}

type txRepositories struct {
	v view
}

func (t txRepositories) Offers() repositories.OfferRepository {
	return &OfferRepository{t.v}
}

func (t txRepositories) Partners() repositories.DeliveryPartnerRepository {
	return &DeliveryPartnerRepository{t.v}
}

func (t txRepositories) Orders() repositories.OrderRepository {
	return &OrderRepository{t.v}
}

func (t txRepositories) Earnings() repositories.EarningRepository {
	return &EarningRepository{t.v}
}
