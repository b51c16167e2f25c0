// Package memory is a process-local repository implementation for local runs
// (STORAGE_DRIVER=memory) and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kicksideshop/orderapi/internal/domain"
	"github.com/kicksideshop/orderapi/internal/repository"
	"github.com/kicksideshop/orderapi/pkg/errors"
)

// Store holds every table behind one mutex so AppendProcess is atomic.
type Store struct {
	mu          sync.RWMutex
	logger      *zap.Logger
	sellers     map[uuid.UUID]domain.Seller
	orders      map[uuid.UUID]domain.Order
	processes   map[uuid.UUID][]domain.ProcessEntry
	idempotency map[string]domain.IdempotencyKey
}

// NewStore creates an empty store
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		logger:      logger,
		sellers:     make(map[uuid.UUID]domain.Seller),
		orders:      make(map[uuid.UUID]domain.Order),
		processes:   make(map[uuid.UUID][]domain.ProcessEntry),
		idempotency: make(map[string]domain.IdempotencyKey),
	}
}

// NewRepositories wires a fresh store into the repository aggregate.
func NewRepositories(logger *zap.Logger) (*repository.Repositories, *Store) {
	s := NewStore(logger)
	return s.Repositories(), s
}

// Repositories returns views of s implementing the repository interfaces.
func (s *Store) Repositories() *repository.Repositories {
	return &repository.Repositories{
		Seller:         sellerRepo{s},
		Order:          orderRepo{s},
		OrderProcess:   processRepo{s},
		IdempotencyKey: idempotencyRepo{s},
	}
}

type sellerRepo struct{ s *Store }

func (r sellerRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.Seller, error) {
	lookup := repository.APIKeyLookup(apiKey)

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, seller := range r.s.sellers {
		if !seller.IsActive || seller.APIKeyLookup != lookup {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(seller.APIKeyHash), []byte(apiKey)) == nil {
			out := seller
			return &out, nil
		}
	}
	return nil, &errors.ErrUnauthorized{Message: "invalid API key"}
}

func (r sellerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Seller, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seller, ok := r.s.sellers[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "seller", ID: id.String()}
	}
	return &seller, nil
}

func (r sellerRepo) Create(ctx context.Context, seller *domain.Seller) error {
	now := time.Now()
	if seller.ID == uuid.Nil {
		seller.ID = uuid.New()
	}
	if seller.CreatedAt.IsZero() {
		seller.CreatedAt = now
	}
	if seller.UpdatedAt.IsZero() {
		seller.UpdatedAt = now
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.sellers[seller.ID]; exists {
		return &errors.ErrConflict{Message: fmt.Sprintf("seller %s already exists", seller.ID)}
	}
	r.s.sellers[seller.ID] = *seller
	return nil
}

type orderRepo struct{ s *Store }

func (r orderRepo) Create(ctx context.Context, order *domain.Order) error {
	now := time.Now()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}
	order.Version = len(order.Processes)
	if order.Version == 0 {
		order.Version = 1
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.orders[order.ID]; exists {
		return &errors.ErrConflict{Message: fmt.Sprintf("order %s already exists", order.ID)}
	}
	for _, o := range r.s.orders {
		if o.TrackingNumber == order.TrackingNumber {
			return &errors.ErrConflict{Message: fmt.Sprintf("tracking number %s already in use", order.TrackingNumber)}
		}
	}

	entries := make([]domain.ProcessEntry, len(order.Processes))
	for i := range order.Processes {
		e := &order.Processes[i]
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.OrderID = order.ID
		e.Sequence = i + 1
		if e.Date.IsZero() {
			e.Date = order.CreatedAt
		}
		entries[i] = copyEntry(*e)
	}

	r.s.orders[order.ID] = copyOrder(*order)
	r.s.processes[order.ID] = entries
	return nil
}

func (r orderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: id.String()}
	}
	out := copyOrder(o)
	return &out, nil
}

func (r orderRepo) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*domain.Order, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, o := range r.s.orders {
		if o.TrackingNumber == trackingNumber {
			out := copyOrder(o)
			return &out, nil
		}
	}
	return nil, &errors.ErrNotFound{Resource: "order", ID: trackingNumber}
}

func (r orderRepo) ListBySellerID(ctx context.Context, sellerID uuid.UUID, filter domain.OrderFilter) ([]*domain.Order, error) {
	r.s.mu.RLock()
	var matched []*domain.Order
	for _, o := range r.s.orders {
		if o.SellerID != sellerID || !filter.Matches(&o) {
			continue
		}
		out := copyOrder(o)
		matched = append(matched, &out)
	}
	r.s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (r orderRepo) AppendProcess(ctx context.Context, orderID uuid.UUID, expectedVersion int, entry *domain.ProcessEntry, courier *domain.Courier) error {
	now := time.Now()
	if entry.Date.IsZero() {
		entry.Date = now
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	o, ok := r.s.orders[orderID]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: orderID.String()}
	}
	if o.Version != expectedVersion {
		r.s.logger.Info("Order version conflict",
			zap.String("order_id", orderID.String()),
			zap.Int("expected_version", expectedVersion),
			zap.Int("current_version", o.Version))
		return &errors.ErrConflict{
			Message: fmt.Sprintf("order was modified by another request (expected version %d, current %d)", expectedVersion, o.Version),
		}
	}

	o.Version++
	o.Status = entry.Status
	o.UpdatedAt = now
	if courier != nil {
		c := mergeCourier(o.Courier, courier)
		o.Courier = &c
	}

	entry.OrderID = orderID
	entry.Sequence = o.Version

	r.s.orders[orderID] = o
	r.s.processes[orderID] = append(r.s.processes[orderID], copyEntry(*entry))
	return nil
}

type processRepo struct{ s *Store }

func (r processRepo) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]domain.ProcessEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	src := r.s.processes[orderID]
	out := make([]domain.ProcessEntry, len(src))
	for i, e := range src {
		out[i] = copyEntry(e)
	}
	return out, nil
}

type idempotencyRepo struct{ s *Store }

func (r idempotencyRepo) GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	k, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &k, nil
}

func (r idempotencyRepo) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, exists := r.s.idempotency[key.Key]; !exists {
		r.s.idempotency[key.Key] = *key
	}
	return nil
}

// mergeCourier mirrors the COALESCE update of the postgres store.
func mergeCourier(current *domain.Courier, update *domain.Courier) domain.Courier {
	var c domain.Courier
	if current != nil {
		c = *current
	}
	c.Name = update.Name
	if update.TrackingNumber != "" {
		c.TrackingNumber = update.TrackingNumber
	}
	if update.EstimatedDelivery != nil {
		t := *update.EstimatedDelivery
		c.EstimatedDelivery = &t
	}
	return c
}

func copyOrder(o domain.Order) domain.Order {
	o.Images = append([]string(nil), o.Images...)
	if o.Address != nil {
		addr := make(map[string]interface{}, len(o.Address))
		for k, v := range o.Address {
			addr[k] = v
		}
		o.Address = addr
	}
	if o.Courier != nil {
		c := mergeCourier(nil, o.Courier)
		o.Courier = &c
	}
	o.Processes = nil
	return o
}

func copyEntry(e domain.ProcessEntry) domain.ProcessEntry {
	e.Images = append([]string(nil), e.Images...)
	return e
}
