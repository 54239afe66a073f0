package reservation

import (
    "context"
    "errors"
    "log"
    "time"
)

// Report summarises one sweep: how many expired PENDING reservations were
// found and how many were actually cancelled.  The counts differ when a
// concurrent completion or cancellation wins the race for a session.
type Report struct {
    Found     int `json:"found"`
    Cancelled int `json:"cancelled"`
}

// Sweeper periodically reclaims holds whose TTL has elapsed.  It is the
// safety net for late or lost provider expiry notifications: every
// expired PENDING reservation is forced through the same Cancel path an
// explicit cancellation uses, so the PENDING guard resolves races with
// the webhook handlers harmlessly.
type Sweeper struct {
    svc      *Service
    store    Store
    interval time.Duration
    batch    int
}

// NewSweeper builds a Sweeper.  interval controls how often Run sweeps;
// batch caps the reservations processed per sweep.
func NewSweeper(svc *Service, store Store, interval time.Duration, batch int) *Sweeper {
    if svc == nil || store == nil {
        panic("nil dependency passed to NewSweeper")
    }
    if interval <= 0 {
        interval = 5 * time.Minute
    }
    if batch <= 0 {
        batch = 100
    }
    return &Sweeper{svc: svc, store: store, interval: interval, batch: batch}
}

// Run sweeps on a ticker until ctx is cancelled.  Errors are logged and
// never stop the loop.
func (w *Sweeper) Run(ctx context.Context) {
    log.Printf("sweeper: starting, interval=%s batch=%d", w.interval, w.batch)
    ticker := time.NewTicker(w.interval)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            log.Printf("sweeper: shutting down")
            return
        case <-ticker.C:
            report, err := w.Sweep(ctx)
            if err != nil {
                log.Printf("sweeper: sweep failed: %v", err)
                continue
            }
            if report.Found > 0 {
                log.Printf("sweeper: cancelled %d/%d expired reservation(s)", report.Cancelled, report.Found)
            }
        }
    }
}

// Sweep runs one pass: it lists expired PENDING sessions and cancels each
// one.  A failure on one reservation never aborts the rest.  Sessions
// that turn out non-PENDING by the time Cancel runs (webhook got there
// first) count as found but not cancelled.
func (w *Sweeper) Sweep(ctx context.Context) (Report, error) {
    sessions, err := w.store.ExpiredPendingSessions(ctx, time.Now().UTC(), w.batch)
    if err != nil {
        return Report{}, err
    }
    report := Report{Found: len(sessions)}
    for _, sessionID := range sessions {
        if ctx.Err() != nil {
            return report, ctx.Err()
        }
        _, err := w.svc.Cancel(ctx, sessionID)
        switch {
        case err == nil:
            report.Cancelled++
        case isNoOp(err):
            log.Printf("sweeper: session %s already settled: %v", sessionID, err)
        default:
            log.Printf("sweeper: failed to cancel session %s: %v", sessionID, err)
        }
    }
    return report, nil
}

// isNoOp reports whether a cancel failure is a harmless race outcome
// rather than a real fault.
func isNoOp(err error) bool {
    var np *NotPendingError
    return errors.As(err, &np) || errors.Is(err, ErrReservationNotFound)
}
