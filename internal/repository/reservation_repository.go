package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/plumka/shop-api/internal/model"
)

// ReservationRepo provides data access to the reservations and
// reserved_products tables.  A reservation pairs one payment session
// with the set of products it holds; the association rows are written
// once at creation and never change.  All timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, session_id, status, customer_email, created_at, expires_at, completed_at`

func scanReservation(row interface{ Scan(...interface{}) error }) (*model.Reservation, error) {
    var res model.Reservation
    var status string
    var email sql.NullString
    var completedAt sql.NullTime
    err := row.Scan(&res.ID, &res.SessionID, &status, &email, &res.CreatedAt, &res.ExpiresAt, &completedAt)
    if err != nil {
        return nil, err
    }
    res.Status = model.ReservationStatus(status)
    if email.Valid {
        e := email.String
        res.CustomerEmail = &e
    }
    if completedAt.Valid {
        t := completedAt.Time
        res.CompletedAt = &t
    }
    return &res, nil
}

// CreateTx inserts a new reservation within the scope of an existing
// transaction and populates the generated ID on the provided record.
// The caller must commit or rollback the transaction.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
    const q = `INSERT INTO reservations (session_id, status, customer_email, created_at, expires_at)
               VALUES (?, ?, ?, ?, ?)`
    var email interface{}
    if res.CustomerEmail != nil {
        email = *res.CustomerEmail
    }
    result, err := tx.ExecContext(ctx, q,
        res.SessionID, string(res.Status), email,
        res.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
        res.ExpiresAt.UTC().Format("2006-01-02 15:04:05"),
    )
    if err != nil {
        return err
    }
    id, err := result.LastInsertId()
    if err != nil {
        return err
    }
    res.ID = uint64(id)
    return nil
}

// AddProductsBulkTx inserts one reserved_products row per product id in a
// single statement, associating each product with the same reservation.
// Passing an empty slice has no effect and returns nil.
func (r *ReservationRepo) AddProductsBulkTx(ctx context.Context, tx *sql.Tx, reservationID uint64, productIDs []uint64) error {
    if len(productIDs) == 0 {
        return nil
    }
    query := `INSERT INTO reserved_products (reservation_id, product_id) VALUES `
    args := make([]interface{}, 0, len(productIDs)*2)
    for i, pid := range productIDs {
        if i > 0 {
            query += ","
        }
        query += "(?, ?)"
        args = append(args, reservationID, pid)
    }
    _, err := tx.ExecContext(ctx, query, args...)
    return err
}

// GetBySessionForUpdateTx loads a reservation by session id under an
// exclusive row lock, so that concurrent complete/cancel attempts on the
// same session serialize through the database.  Returns sql.ErrNoRows
// when the session is unknown.
func (r *ReservationRepo) GetBySessionForUpdateTx(ctx context.Context, tx *sql.Tx, sessionID string) (*model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE session_id = ? FOR UPDATE`
    return scanReservation(tx.QueryRowContext(ctx, q, sessionID))
}

// MarkCompletedTx transitions a reservation to COMPLETED and stamps
// completed_at.  The caller must already hold the row lock and have
// verified the PENDING status.
func (r *ReservationRepo) MarkCompletedTx(ctx context.Context, tx *sql.Tx, id uint64, completedAt time.Time) error {
    const q = `UPDATE reservations SET status = ?, completed_at = ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q,
        string(model.ReservationCompleted),
        completedAt.UTC().Format("2006-01-02 15:04:05"),
        id,
    )
    return err
}

// MarkExpiredTx transitions a reservation to EXPIRED.  The caller must
// already hold the row lock and have verified the PENDING status.
func (r *ReservationRepo) MarkExpiredTx(ctx context.Context, tx *sql.Tx, id uint64) error {
    const q = `UPDATE reservations SET status = ? WHERE id = ?`
    _, err := tx.ExecContext(ctx, q, string(model.ReservationExpired), id)
    return err
}

// ProductIDsTx lists the product ids associated with a reservation,
// ascending.
func (r *ReservationRepo) ProductIDsTx(ctx context.Context, tx *sql.Tx, reservationID uint64) ([]uint64, error) {
    const q = `SELECT product_id FROM reserved_products WHERE reservation_id = ? ORDER BY product_id`
    rows, err := tx.QueryContext(ctx, q, reservationID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var ids []uint64
    for rows.Next() {
        var id uint64
        if err := rows.Scan(&id); err != nil {
            return nil, err
        }
        ids = append(ids, id)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return ids, nil
}

// ExpiredPendingSessions returns the session ids of up to limit PENDING
// reservations whose expires_at lies before now, oldest first.  Used by
// the sweeper; no locks are taken here because Cancel re-checks the
// status under its own lock.
func (r *ReservationRepo) ExpiredPendingSessions(ctx context.Context, now time.Time, limit int) ([]string, error) {
    const q = `SELECT session_id FROM reservations
               WHERE status = ? AND expires_at < ?
               ORDER BY expires_at ASC
               LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q,
        string(model.ReservationPending),
        now.UTC().Format("2006-01-02 15:04:05"),
        limit,
    )
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var sessions []string
    for rows.Next() {
        var sid string
        if err := rows.Scan(&sid); err != nil {
            return nil, err
        }
        sessions = append(sessions, sid)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return sessions, nil
}

// ReservationDetail is a reservation together with the ids of the
// products it holds.  Returned by ListRecent for the admin view.
type ReservationDetail struct {
    ID            uint64     `json:"id"`
    SessionID     string     `json:"session_id"`
    Status        string     `json:"status"`
    CustomerEmail *string    `json:"customer_email,omitempty"`
    CreatedAt     time.Time  `json:"created_at"`
    ExpiresAt     time.Time  `json:"expires_at"`
    CompletedAt   *time.Time `json:"completed_at,omitempty"`
    ProductIDs    []uint64   `json:"product_ids"`
}

// ListRecent returns up to limit reservations, newest first, each with
// its product ids.  Product ids are fetched for the whole page in a
// single IN query.
func (r *ReservationRepo) ListRecent(ctx context.Context, limit int) ([]ReservationDetail, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations ORDER BY created_at DESC LIMIT ?`
    rows, err := r.db.QueryContext(ctx, q, limit)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    details := make([]ReservationDetail, 0)
    index := make(map[uint64]int)
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        d := ReservationDetail{
            ID:            res.ID,
            SessionID:     res.SessionID,
            Status:        string(res.Status),
            CustomerEmail: res.CustomerEmail,
            CreatedAt:     res.CreatedAt,
            ExpiresAt:     res.ExpiresAt,
            CompletedAt:   res.CompletedAt,
            ProductIDs:    []uint64{},
        }
        index[d.ID] = len(details)
        details = append(details, d)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    if len(details) == 0 {
        return details, nil
    }
    ids := make([]uint64, 0, len(details))
    for _, d := range details {
        ids = append(ids, d.ID)
    }
    assocQ := `SELECT reservation_id, product_id FROM reserved_products
               WHERE reservation_id IN (` + placeholders(len(ids)) + `)
               ORDER BY reservation_id, product_id`
    arows, err := r.db.QueryContext(ctx, assocQ, idArgs(ids)...)
    if err != nil {
        return nil, err
    }
    defer arows.Close()
    for arows.Next() {
        var rid, pid uint64
        if err := arows.Scan(&rid, &pid); err != nil {
            return nil, err
        }
        if idx, ok := index[rid]; ok {
            details[idx].ProductIDs = append(details[idx].ProductIDs, pid)
        }
    }
    if err := arows.Err(); err != nil {
        return nil, err
    }
    return details, nil
}
