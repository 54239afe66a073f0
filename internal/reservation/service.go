package reservation

import (
    "context"
    "errors"
    "fmt"
    "log"
    "sort"
    "time"

    "github.com/plumka/shop-api/internal/model"
)

// DefaultTTL is the hold duration used when the caller does not supply
// one.  It matches the checkout session lifetime at the payment provider,
// which expires abandoned sessions after 30 minutes.
const DefaultTTL = 30 * time.Minute

var (
    // ErrNoProducts is returned when a claim is attempted with an empty
    // product list.
    ErrNoProducts = errors.New("no products requested")
    // ErrMissingSession is returned when the session id is empty.
    ErrMissingSession = errors.New("session id is required")
    // ErrReservationNotFound is returned when no reservation exists for a
    // session id.  Store implementations return it from
    // ReservationBySession.
    ErrReservationNotFound = errors.New("reservation not found")

    // errUnavailable forces a rollback of a claim transaction when at
    // least one requested product cannot be reserved.  Never escapes
    // Reserve.
    errUnavailable = errors.New("some products are not available")
)

// NotPendingError reports an attempt to complete or cancel a reservation
// that has already left the PENDING state.  It is a no-op failure, not a
// fault: duplicate provider notifications and sweeper races are expected
// and must never corrupt state.
type NotPendingError struct {
    Status model.ReservationStatus
}

func (e *NotPendingError) Error() string {
    return fmt.Sprintf("reservation is not pending (status: %s)", e.Status)
}

// Unavailable describes one product that could not be claimed, with a
// machine-readable reason and the storefront message shown to the
// customer.
type Unavailable struct {
    ID      uint64 `json:"id"`
    Reason  string `json:"reason"`
    Message string `json:"message"`
}

// Storefront copy per unavailability reason.
var reasonMessages = map[string]string{
    "not_found": "Produkt nie został znaleziony",
    "reserved":  "Produkt jest zarezerwowany przez innego klienta",
    "sold":      "Produkt został już sprzedany",
    "inactive":  "Produkt jest nieaktywny",
}

func unavailableFor(id uint64, reason string) Unavailable {
    msg, ok := reasonMessages[reason]
    if !ok {
        msg = "Produkt jest niedostępny"
    }
    return Unavailable{ID: id, Reason: reason, Message: msg}
}

// ReserveResult is the outcome of a claim attempt.  Exactly one of the
// two shapes occurs: a created PENDING reservation, or a non-empty list
// of unavailable products with nothing written.
type ReserveResult struct {
    Reservation *model.Reservation
    Unavailable []Unavailable
}

// Success reports whether the claim was created.
func (r *ReserveResult) Success() bool { return len(r.Unavailable) == 0 }

// CompleteResult carries the product ids a completed reservation held, so
// the caller can transition them to SOLD.
type CompleteResult struct {
    Reservation *model.Reservation
    ProductIDs  []uint64
}

// CancelResult carries the product ids released back to ACTIVE.
type CancelResult struct {
    Reservation        *model.Reservation
    ReleasedProductIDs []uint64
}

// Availability is the advisory answer to an availability query.  It
// carries no guarantee: only the atomic re-check inside Reserve decides.
type Availability struct {
    Available   []uint64      `json:"available"`
    Unavailable []Unavailable `json:"unavailable"`
}

// Service is the reservation engine.  It is stateless: every operation is
// one transaction against the store, so any number of instances may run
// concurrently.
type Service struct {
    store Store
}

// NewService returns a Service bound to the given store.
func NewService(store Store) *Service {
    if store == nil {
        panic("nil store passed to NewService")
    }
    return &Service{store: store}
}

// Reserve atomically claims the given products under a payment session.
// Product ids are deduplicated and locked in ascending order.  The claim
// is all-or-nothing: if any product is missing or not ACTIVE, nothing is
// written and the result lists every unavailable product with its reason.
// On success a PENDING reservation with expires_at = now + ttl is created
// and every product is flipped to RESERVED within the same transaction.
func (s *Service) Reserve(ctx context.Context, productIDs []uint64, sessionID string, ttl time.Duration, customerEmail *string) (*ReserveResult, error) {
    if sessionID == "" {
        return nil, ErrMissingSession
    }
    ids := dedupeSorted(productIDs)
    if len(ids) == 0 {
        return nil, ErrNoProducts
    }
    if ttl <= 0 {
        ttl = DefaultTTL
    }

    result := &ReserveResult{}
    err := s.store.WithinTx(ctx, func(tx StoreTx) error {
        statuses, err := tx.LockProducts(ctx, ids)
        if err != nil {
            return err
        }
        for _, id := range ids {
            status, ok := statuses[id]
            if !ok {
                result.Unavailable = append(result.Unavailable, unavailableFor(id, "not_found"))
                continue
            }
            if status != model.ProductActive {
                result.Unavailable = append(result.Unavailable, unavailableFor(id, status.UnavailableReason()))
            }
        }
        if len(result.Unavailable) > 0 {
            return errUnavailable
        }

        now := time.Now().UTC()
        res := &model.Reservation{
            SessionID:     sessionID,
            Status:        model.ReservationPending,
            CustomerEmail: customerEmail,
            CreatedAt:     now,
            ExpiresAt:     now.Add(ttl),
        }
        if err := tx.CreateReservation(ctx, res, ids); err != nil {
            return err
        }
        if err := tx.UpdateProductStatus(ctx, ids, model.ProductReserved); err != nil {
            return err
        }
        result.Reservation = res
        return nil
    })
    if errors.Is(err, errUnavailable) {
        return result, nil
    }
    if err != nil {
        log.Printf("reservation: error creating reservation for session %s: %v", sessionID, err)
        return nil, err
    }
    log.Printf("reservation: created reservation %d for session %s, products %v, expires at %s",
        result.Reservation.ID, sessionID, ids, result.Reservation.ExpiresAt.Format(time.RFC3339))
    return result, nil
}

// Complete marks the reservation for sessionID as COMPLETED after a
// successful payment and returns the product ids it held.  The caller is
// responsible for transitioning those products to SOLD; completion never
// mutates product status itself.  Completing a reservation that is not
// PENDING returns a NotPendingError and leaves everything untouched.
func (s *Service) Complete(ctx context.Context, sessionID string) (*CompleteResult, error) {
    if sessionID == "" {
        return nil, ErrMissingSession
    }
    result := &CompleteResult{}
    err := s.store.WithinTx(ctx, func(tx StoreTx) error {
        res, err := tx.ReservationBySession(ctx, sessionID)
        if err != nil {
            return err
        }
        if res.Status != model.ReservationPending {
            log.Printf("reservation: reservation %d is not pending (status: %s), cannot complete", res.ID, res.Status)
            return &NotPendingError{Status: res.Status}
        }
        now := time.Now().UTC()
        if err := tx.MarkReservationCompleted(ctx, res.ID, now); err != nil {
            return err
        }
        res.Status = model.ReservationCompleted
        res.CompletedAt = &now
        ids, err := tx.ReservationProductIDs(ctx, res.ID)
        if err != nil {
            return err
        }
        result.Reservation = res
        result.ProductIDs = ids
        return nil
    })
    if err != nil {
        return nil, err
    }
    log.Printf("reservation: completed reservation %d for session %s", result.Reservation.ID, sessionID)
    return result, nil
}

// Cancel releases the reservation for sessionID: the reservation becomes
// EXPIRED and every associated product returns to ACTIVE in the same
// transaction.  Explicit user cancellation, provider expiry events and
// the sweeper all share this path, so the PENDING guard makes a second
// cancel (or a cancel after completion) a safe NotPendingError no-op.
func (s *Service) Cancel(ctx context.Context, sessionID string) (*CancelResult, error) {
    if sessionID == "" {
        return nil, ErrMissingSession
    }
    result := &CancelResult{}
    err := s.store.WithinTx(ctx, func(tx StoreTx) error {
        res, err := tx.ReservationBySession(ctx, sessionID)
        if err != nil {
            return err
        }
        if res.Status != model.ReservationPending {
            log.Printf("reservation: reservation %d is not pending (status: %s), cannot cancel", res.ID, res.Status)
            return &NotPendingError{Status: res.Status}
        }
        ids, err := tx.ReservationProductIDs(ctx, res.ID)
        if err != nil {
            return err
        }
        if err := tx.MarkReservationExpired(ctx, res.ID); err != nil {
            return err
        }
        if len(ids) > 0 {
            if err := tx.UpdateProductStatus(ctx, ids, model.ProductActive); err != nil {
                return err
            }
        }
        res.Status = model.ReservationExpired
        result.Reservation = res
        result.ReleasedProductIDs = ids
        return nil
    })
    if err != nil {
        return nil, err
    }
    log.Printf("reservation: cancelled reservation %d for session %s, released products %v",
        result.Reservation.ID, sessionID, result.ReleasedProductIDs)
    return result, nil
}

// CheckAvailability reports which of the requested products are currently
// claimable.  It is a snapshot read with no locks: availability may be
// gone by the next claim attempt, and only Reserve's re-check under lock
// is authoritative.
func (s *Service) CheckAvailability(ctx context.Context, productIDs []uint64) (*Availability, error) {
    ids := dedupeSorted(productIDs)
    if len(ids) == 0 {
        return nil, ErrNoProducts
    }
    statuses, err := s.store.ProductStatuses(ctx, ids)
    if err != nil {
        return nil, err
    }
    out := &Availability{Available: []uint64{}, Unavailable: []Unavailable{}}
    for _, id := range ids {
        status, ok := statuses[id]
        switch {
        case !ok:
            out.Unavailable = append(out.Unavailable, unavailableFor(id, "not_found"))
        case status == model.ProductActive:
            out.Available = append(out.Available, id)
        default:
            out.Unavailable = append(out.Unavailable, unavailableFor(id, status.UnavailableReason()))
        }
    }
    return out, nil
}

// dedupeSorted collapses duplicates and zero ids and returns the rest
// ascending.  The fixed ordering is what prevents lock-ordering deadlocks
// between overlapping claims.
func dedupeSorted(ids []uint64) []uint64 {
    seen := make(map[uint64]struct{}, len(ids))
    out := make([]uint64, 0, len(ids))
    for _, id := range ids {
        if id == 0 {
            continue
        }
        if _, ok := seen[id]; !ok {
            seen[id] = struct{}{}
            out = append(out, id)
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
    return out
}
