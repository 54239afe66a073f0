// Package queue defines message payloads exchanged over the message broker.
package queue

// SaleCompletedEvent is published when a pending reservation is paid for and
// its products move to SOLD. It carries enough information for downstream
// consumers to log, notify, or trigger analytics without querying the
// primary database.
type SaleCompletedEvent struct {
    EventID       string   `json:"event_id"`
    ReservationID uint64   `json:"reservation_id"`
    SessionID     string   `json:"session_id"`
    CustomerEmail string   `json:"customer_email,omitempty"`
    ProductIDs    []uint64 `json:"product_ids"`
    ProductNames  []string `json:"product_names,omitempty"`
    TotalCents    uint64   `json:"total_cents"`
    CompletedAt   string   `json:"completed_at"`
}

// ReservationReleasedEvent is published when a hold is released, either by
// an explicit cancellation or by the expiry sweeper, and its products
// return to the available pool.
type ReservationReleasedEvent struct {
    EventID       string   `json:"event_id"`
    ReservationID uint64   `json:"reservation_id"`
    SessionID     string   `json:"session_id"`
    ProductIDs    []uint64 `json:"product_ids"`
    Reason        string   `json:"reason"` // "cancelled" or "expired"
    ReleasedAt    string   `json:"released_at"`
}
