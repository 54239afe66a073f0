package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/reservation"
)

// MemoryStore is an in-memory implementation of the reservation engine's
// Store port.  It backs unit tests and local development without a
// MySQL instance.  WithinTx applies fn to a deep copy of the state and
// swaps it in only on success, so rollback semantics match the SQL
// store, and the single mutex serializes transactions the way row locks
// serialize overlapping claims.
type MemoryStore struct {
    mu    sync.Mutex
    state *memState
}

var _ reservation.Store = (*MemoryStore)(nil)

type memState struct {
    products     map[uint64]*model.Product
    reservations map[uint64]*model.Reservation
    bySession    map[string]uint64
    held         map[uint64][]uint64 // reservation id -> product ids
    nextID       uint64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{state: &memState{
        products:     make(map[uint64]*model.Product),
        reservations: make(map[uint64]*model.Reservation),
        bySession:    make(map[string]uint64),
        held:         make(map[uint64][]uint64),
        nextID:       1,
    }}
}

// AddProduct seeds a product.  Intended for tests and dev fixtures.
func (s *MemoryStore) AddProduct(p model.Product) {
    s.mu.Lock()
    defer s.mu.Unlock()
    cp := p
    s.state.products[p.ID] = &cp
}

// Product returns a copy of the stored product, or nil when absent.
func (s *MemoryStore) Product(id uint64) *model.Product {
    s.mu.Lock()
    defer s.mu.Unlock()
    p, ok := s.state.products[id]
    if !ok {
        return nil
    }
    cp := *p
    return &cp
}

// ProductsByIDs returns copies of every existing product in ids, sorted
// by id.  Missing ids are skipped.
func (s *MemoryStore) ProductsByIDs(ctx context.Context, ids []uint64) ([]model.Product, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    products := make([]model.Product, 0, len(ids))
    for _, id := range ids {
        if p, ok := s.state.products[id]; ok {
            products = append(products, *p)
        }
    }
    sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
    return products, nil
}

// GetBySlug returns the product with the given slug or ErrProductNotFound.
func (s *MemoryStore) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    for _, p := range s.state.products {
        if p.Slug == slug {
            cp := *p
            return &cp, nil
        }
    }
    return nil, ErrProductNotFound
}

// ListByStatus returns products filtered by status, newest first.  A nil
// status returns every product.
func (s *MemoryStore) ListByStatus(ctx context.Context, status *model.ProductStatus) ([]model.Product, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    products := make([]model.Product, 0, len(s.state.products))
    for _, p := range s.state.products {
        if status != nil && p.Status != *status {
            continue
        }
        products = append(products, *p)
    }
    sort.Slice(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
    return products, nil
}

// ReservationBySession returns a copy of the stored reservation for a
// session id, or nil when absent.
func (s *MemoryStore) ReservationBySession(sessionID string) *model.Reservation {
    s.mu.Lock()
    defer s.mu.Unlock()
    id, ok := s.state.bySession[sessionID]
    if !ok {
        return nil
    }
    cp := *s.state.reservations[id]
    return &cp
}

// SetReservationExpiry rewrites expires_at for a stored reservation.
// Test hook for exercising the sweeper without waiting out a TTL.
func (s *MemoryStore) SetReservationExpiry(sessionID string, expiresAt time.Time) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if id, ok := s.state.bySession[sessionID]; ok {
        s.state.reservations[id].ExpiresAt = expiresAt
    }
}

// WithinTx implements reservation.Store.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx reservation.StoreTx) error) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if err := ctx.Err(); err != nil {
        return err
    }
    work := s.state.clone()
    if err := fn(&memTx{state: work}); err != nil {
        return err
    }
    s.state = work
    return nil
}

// ProductStatuses implements reservation.Store.
func (s *MemoryStore) ProductStatuses(ctx context.Context, ids []uint64) (map[uint64]model.ProductStatus, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    statuses := make(map[uint64]model.ProductStatus)
    for _, id := range ids {
        if p, ok := s.state.products[id]; ok {
            statuses[id] = p.Status
        }
    }
    return statuses, nil
}

// ExpiredPendingSessions implements reservation.Store.
func (s *MemoryStore) ExpiredPendingSessions(ctx context.Context, now time.Time, limit int) ([]string, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    type expired struct {
        sessionID string
        expiresAt time.Time
    }
    var found []expired
    for _, res := range s.state.reservations {
        if res.Status == model.ReservationPending && res.ExpiresAt.Before(now) {
            found = append(found, expired{res.SessionID, res.ExpiresAt})
        }
    }
    sort.Slice(found, func(i, j int) bool { return found[i].expiresAt.Before(found[j].expiresAt) })
    if limit > 0 && len(found) > limit {
        found = found[:limit]
    }
    sessions := make([]string, 0, len(found))
    for _, e := range found {
        sessions = append(sessions, e.sessionID)
    }
    return sessions, nil
}

func (st *memState) clone() *memState {
    cp := &memState{
        products:     make(map[uint64]*model.Product, len(st.products)),
        reservations: make(map[uint64]*model.Reservation, len(st.reservations)),
        bySession:    make(map[string]uint64, len(st.bySession)),
        held:         make(map[uint64][]uint64, len(st.held)),
        nextID:       st.nextID,
    }
    for id, p := range st.products {
        v := *p
        cp.products[id] = &v
    }
    for id, r := range st.reservations {
        v := *r
        cp.reservations[id] = &v
    }
    for sid, id := range st.bySession {
        cp.bySession[sid] = id
    }
    for id, ids := range st.held {
        cp.held[id] = append([]uint64(nil), ids...)
    }
    return cp
}

// memTx operates on the cloned state inside one WithinTx call.
type memTx struct {
    state *memState
}

func (t *memTx) LockProducts(ctx context.Context, ids []uint64) (map[uint64]model.ProductStatus, error) {
    statuses := make(map[uint64]model.ProductStatus)
    for _, id := range ids {
        if p, ok := t.state.products[id]; ok {
            statuses[id] = p.Status
        }
    }
    return statuses, nil
}

func (t *memTx) UpdateProductStatus(ctx context.Context, ids []uint64, status model.ProductStatus) error {
    for _, id := range ids {
        if p, ok := t.state.products[id]; ok {
            p.Status = status
            p.UpdatedAt = time.Now().UTC()
        }
    }
    return nil
}

func (t *memTx) CreateReservation(ctx context.Context, r *model.Reservation, productIDs []uint64) error {
    r.ID = t.state.nextID
    t.state.nextID++
    cp := *r
    t.state.reservations[r.ID] = &cp
    t.state.bySession[r.SessionID] = r.ID
    t.state.held[r.ID] = append([]uint64(nil), productIDs...)
    return nil
}

func (t *memTx) ReservationBySession(ctx context.Context, sessionID string) (*model.Reservation, error) {
    id, ok := t.state.bySession[sessionID]
    if !ok {
        return nil, reservation.ErrReservationNotFound
    }
    cp := *t.state.reservations[id]
    return &cp, nil
}

func (t *memTx) MarkReservationCompleted(ctx context.Context, id uint64, completedAt time.Time) error {
    if res, ok := t.state.reservations[id]; ok {
        res.Status = model.ReservationCompleted
        at := completedAt
        res.CompletedAt = &at
    }
    return nil
}

func (t *memTx) MarkReservationExpired(ctx context.Context, id uint64) error {
    if res, ok := t.state.reservations[id]; ok {
        res.Status = model.ReservationExpired
    }
    return nil
}

func (t *memTx) ReservationProductIDs(ctx context.Context, reservationID uint64) ([]uint64, error) {
    ids := append([]uint64(nil), t.state.held[reservationID]...)
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    return ids, nil
}
