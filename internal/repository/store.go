package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/reservation"
)

// SQLStore adapts the MySQL repositories to the reservation engine's
// Store port.  Each WithinTx call wraps one database transaction; the
// rollback-unless-committed pattern guarantees no partial claim is ever
// visible to a concurrent reader.
type SQLStore struct {
    db           *sql.DB
    products     *ProductRepo
    reservations *ReservationRepo
}

var _ reservation.Store = (*SQLStore)(nil)

// NewSQLStore builds an SQLStore over the given database handle.
func NewSQLStore(db *sql.DB) *SQLStore {
    return &SQLStore{
        db:           db,
        products:     NewProductRepo(db),
        reservations: NewReservationRepo(db),
    }
}

// Products exposes the product repository for catalog reads that do not
// go through the reservation engine.
func (s *SQLStore) Products() *ProductRepo { return s.products }

// Reservations exposes the reservation repository for admin reads.
func (s *SQLStore) Reservations() *ReservationRepo { return s.reservations }

// WithinTx runs fn inside a single transaction, committing on nil and
// rolling back on error.
func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx reservation.StoreTx) error) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if err := fn(&sqlStoreTx{tx: tx, store: s}); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}

// ProductStatuses implements the snapshot read used by the availability
// query.
func (s *SQLStore) ProductStatuses(ctx context.Context, ids []uint64) (map[uint64]model.ProductStatus, error) {
    return s.products.StatusesByIDs(ctx, ids)
}

// ExpiredPendingSessions lists sessions eligible for the sweeper.
func (s *SQLStore) ExpiredPendingSessions(ctx context.Context, now time.Time, limit int) ([]string, error) {
    return s.reservations.ExpiredPendingSessions(ctx, now, limit)
}

// sqlStoreTx is the transactional view handed to WithinTx callbacks.
type sqlStoreTx struct {
    tx    *sql.Tx
    store *SQLStore
}

func (t *sqlStoreTx) LockProducts(ctx context.Context, ids []uint64) (map[uint64]model.ProductStatus, error) {
    return t.store.products.LockStatusesTx(ctx, t.tx, ids)
}

func (t *sqlStoreTx) UpdateProductStatus(ctx context.Context, ids []uint64, status model.ProductStatus) error {
    return t.store.products.BulkUpdateStatusTx(ctx, t.tx, ids, status)
}

func (t *sqlStoreTx) CreateReservation(ctx context.Context, r *model.Reservation, productIDs []uint64) error {
    if err := t.store.reservations.CreateTx(ctx, t.tx, r); err != nil {
        return err
    }
    return t.store.reservations.AddProductsBulkTx(ctx, t.tx, r.ID, productIDs)
}

func (t *sqlStoreTx) ReservationBySession(ctx context.Context, sessionID string) (*model.Reservation, error) {
    res, err := t.store.reservations.GetBySessionForUpdateTx(ctx, t.tx, sessionID)
    if errors.Is(err, sql.ErrNoRows) {
        return nil, reservation.ErrReservationNotFound
    }
    return res, err
}

func (t *sqlStoreTx) MarkReservationCompleted(ctx context.Context, id uint64, completedAt time.Time) error {
    return t.store.reservations.MarkCompletedTx(ctx, t.tx, id, completedAt)
}

func (t *sqlStoreTx) MarkReservationExpired(ctx context.Context, id uint64) error {
    return t.store.reservations.MarkExpiredTx(ctx, t.tx, id)
}

func (t *sqlStoreTx) ReservationProductIDs(ctx context.Context, reservationID uint64) ([]uint64, error) {
    return t.store.reservations.ProductIDsTx(ctx, t.tx, reservationID)
}
