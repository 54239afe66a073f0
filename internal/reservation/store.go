// Package reservation implements the inventory reservation engine: the
// atomic all-or-nothing claim of unique products under a payment session,
// the idempotent complete/cancel transitions driven by provider events,
// and the periodic sweep that reclaims holds whose TTL has elapsed.
package reservation

import (
    "context"
    "time"

    "github.com/plumka/shop-api/internal/model"
)

// Store is the durable storage the engine runs against.  All mutual
// exclusion is delegated to the store: there is no in-process locking, so
// correctness holds across multiple service instances sharing one
// database.
type Store interface {
    // WithinTx runs fn inside a single transaction.  When fn returns an
    // error the transaction is rolled back and the error is returned,
    // otherwise the transaction is committed.
    WithinTx(ctx context.Context, fn func(tx StoreTx) error) error

    // ProductStatuses returns the current status of each existing product
    // in ids using a plain snapshot read, no locks held.  Missing ids are
    // absent from the result.
    ProductStatuses(ctx context.Context, ids []uint64) (map[uint64]model.ProductStatus, error)

    // ExpiredPendingSessions returns the session ids of up to limit
    // PENDING reservations whose expires_at lies before now, oldest
    // first.
    ExpiredPendingSessions(ctx context.Context, now time.Time, limit int) ([]string, error)
}

// StoreTx is the transactional view handed to WithinTx callbacks.
type StoreTx interface {
    // LockProducts acquires exclusive row locks on the given products and
    // returns the status of each one that exists, read under the lock.
    // Callers must pass ids sorted ascending; implementations lock in
    // that order so that two overlapping claims can never deadlock.
    LockProducts(ctx context.Context, ids []uint64) (map[uint64]model.ProductStatus, error)

    // UpdateProductStatus sets the status of every product in ids.
    UpdateProductStatus(ctx context.Context, ids []uint64, status model.ProductStatus) error

    // CreateReservation inserts the reservation and one association row
    // per product id, populating r.ID.  The product set is immutable
    // afterwards.
    CreateReservation(ctx context.Context, r *model.Reservation, productIDs []uint64) error

    // ReservationBySession loads a reservation by its session id under an
    // exclusive lock.  Returns ErrReservationNotFound when absent.
    ReservationBySession(ctx context.Context, sessionID string) (*model.Reservation, error)

    // MarkReservationCompleted transitions a reservation to COMPLETED and
    // stamps completed_at.
    MarkReservationCompleted(ctx context.Context, id uint64, completedAt time.Time) error

    // MarkReservationExpired transitions a reservation to EXPIRED.
    MarkReservationExpired(ctx context.Context, id uint64) error

    // ReservationProductIDs lists the product ids associated with a
    // reservation, ascending.
    ReservationProductIDs(ctx context.Context, reservationID uint64) ([]uint64, error)
}
