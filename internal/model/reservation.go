package model

import "time"

// ReservationStatus enumerates the states of a reservation.  PENDING is
// the only non-terminal state: the two legal transitions are
// PENDING→COMPLETED and PENDING→EXPIRED and nothing leaves a terminal
// state.
type ReservationStatus string

const (
    ReservationPending   ReservationStatus = "PENDING"
    ReservationCompleted ReservationStatus = "COMPLETED"
    ReservationExpired   ReservationStatus = "EXPIRED"
)

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
    switch s {
    case ReservationPending, ReservationCompleted, ReservationExpired:
        return true
    }
    return false
}

// Terminal reports whether s admits no further transitions.
func (s ReservationStatus) Terminal() bool {
    return s == ReservationCompleted || s == ReservationExpired
}

// Reservation ties one payment session to the set of products it holds.
// Membership of the product set and ExpiresAt are fixed at creation.
//
// Fields:
//  ID            – primary key identifier.
//  SessionID     – payment provider checkout session id, unique.
//  Status        – reservation state (see ReservationStatus).
//  CustomerEmail – optional contact captured at checkout.
//  CreatedAt     – creation timestamp.
//  ExpiresAt     – end of the hold, created_at + TTL; immutable.
//  CompletedAt   – set once, on payment completion.
type Reservation struct {
    ID            uint64            // reservations.id
    SessionID     string            // reservations.session_id
    Status        ReservationStatus // reservations.status
    CustomerEmail *string           // reservations.customer_email (nullable)
    CreatedAt     time.Time         // reservations.created_at
    ExpiresAt     time.Time         // reservations.expires_at
    CompletedAt   *time.Time        // reservations.completed_at (nullable)
}

// Expired reports whether the hold has outlived its TTL at the given
// instant.  Only meaningful for PENDING reservations; terminal rows are
// never swept.
func (r *Reservation) Expired(now time.Time) bool {
    return r.Status == ReservationPending && now.After(r.ExpiresAt)
}

// ReservedProduct links one reservation to one product.  For a given
// product at most one row may belong to a PENDING reservation; the
// status gate in the claim path enforces this, not a schema constraint.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – reference to the reservation.
//  ProductID     – product held under the reservation.
//  CreatedAt     – creation timestamp.
type ReservedProduct struct {
    ID            uint64    // reserved_products.id
    ReservationID uint64    // reserved_products.reservation_id
    ProductID     uint64    // reserved_products.product_id
    CreatedAt     time.Time // reserved_products.created_at
}
