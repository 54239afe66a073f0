package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"

    "github.com/plumka/shop-api/internal/model"
)

// ProductRepo provides data access to the products table.  Catalog reads
// go through plain queries; status mutations that take part in the claim
// protocol run inside a caller-managed transaction via the *Tx methods.
// All timestamps are stored in UTC.
type ProductRepo struct {
    db *sql.DB
}

// NewProductRepo returns a new ProductRepo bound to the given database.
func NewProductRepo(db *sql.DB) *ProductRepo { return &ProductRepo{db: db} }

const productColumns = `id, slug, name, description, price_cents, status, featured, provider_product_id, created_at, updated_at`

func scanProduct(row interface{ Scan(...interface{}) error }) (*model.Product, error) {
    var p model.Product
    var status string
    var providerID sql.NullString
    err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.PriceCents,
        &status, &p.Featured, &providerID, &p.CreatedAt, &p.UpdatedAt)
    if err != nil {
        return nil, err
    }
    p.Status = model.ProductStatus(status)
    if providerID.Valid {
        id := providerID.String
        p.ProviderProductID = &id
    }
    return &p, nil
}

// GetBySlug returns a single product by its slug.  When no product with
// the slug exists, ErrProductNotFound is returned.
func (r *ProductRepo) GetBySlug(ctx context.Context, slug string) (*model.Product, error) {
    const q = `SELECT ` + productColumns + ` FROM products WHERE slug = ?`
    p, err := scanProduct(r.db.QueryRowContext(ctx, q, slug))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrProductNotFound
    }
    return p, err
}

// GetByID returns a single product by id.  When absent,
// ErrProductNotFound is returned.
func (r *ProductRepo) GetByID(ctx context.Context, id uint64) (*model.Product, error) {
    const q = `SELECT ` + productColumns + ` FROM products WHERE id = ?`
    p, err := scanProduct(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrProductNotFound
    }
    return p, err
}

// ListByStatus returns products filtered by status, newest first.  A nil
// status returns every product.
func (r *ProductRepo) ListByStatus(ctx context.Context, status *model.ProductStatus) ([]model.Product, error) {
    q := `SELECT ` + productColumns + ` FROM products`
    args := []interface{}{}
    if status != nil {
        q += ` WHERE status = ?`
        args = append(args, string(*status))
    }
    q += ` ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    products := make([]model.Product, 0)
    for rows.Next() {
        p, err := scanProduct(rows)
        if err != nil {
            return nil, err
        }
        products = append(products, *p)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return products, nil
}

// ProductsByIDs returns the full rows of every existing product in ids.
// Missing ids are skipped, not reported as errors.
func (r *ProductRepo) ProductsByIDs(ctx context.Context, ids []uint64) ([]model.Product, error) {
    if len(ids) == 0 {
        return []model.Product{}, nil
    }
    q := `SELECT ` + productColumns + ` FROM products WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id`
    rows, err := r.db.QueryContext(ctx, q, idArgs(ids)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    products := make([]model.Product, 0, len(ids))
    for rows.Next() {
        p, err := scanProduct(rows)
        if err != nil {
            return nil, err
        }
        products = append(products, *p)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return products, nil
}

// StatusesByIDs returns the current status of each existing product in
// ids using a snapshot read without locks.  Missing ids are simply
// absent from the map.  Used by the advisory availability query.
func (r *ProductRepo) StatusesByIDs(ctx context.Context, ids []uint64) (map[uint64]model.ProductStatus, error) {
    if len(ids) == 0 {
        return map[uint64]model.ProductStatus{}, nil
    }
    q := `SELECT id, status FROM products WHERE id IN (` + placeholders(len(ids)) + `)`
    rows, err := r.db.QueryContext(ctx, q, idArgs(ids)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectStatuses(rows)
}

// LockStatusesTx acquires exclusive row locks on the given products and
// returns the status of each one that exists, read under the lock.  The
// ids must be sorted ascending by the caller; the ORDER BY mirrors that
// so two overlapping claims always lock rows in the same order and can
// never deadlock each other.
func (r *ProductRepo) LockStatusesTx(ctx context.Context, tx *sql.Tx, ids []uint64) (map[uint64]model.ProductStatus, error) {
    if len(ids) == 0 {
        return map[uint64]model.ProductStatus{}, nil
    }
    q := `SELECT id, status FROM products WHERE id IN (` + placeholders(len(ids)) + `) ORDER BY id FOR UPDATE`
    rows, err := tx.QueryContext(ctx, q, idArgs(ids)...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    return collectStatuses(rows)
}

// BulkUpdateStatusTx sets the status of every product in ids within the
// provided transaction.  Passing an empty slice has no effect.
func (r *ProductRepo) BulkUpdateStatusTx(ctx context.Context, tx *sql.Tx, ids []uint64, status model.ProductStatus) error {
    if len(ids) == 0 {
        return nil
    }
    q := `UPDATE products SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id IN (` + placeholders(len(ids)) + `)`
    args := append([]interface{}{string(status)}, idArgs(ids)...)
    _, err := tx.ExecContext(ctx, q, args...)
    return err
}

func collectStatuses(rows *sql.Rows) (map[uint64]model.ProductStatus, error) {
    statuses := make(map[uint64]model.ProductStatus)
    for rows.Next() {
        var id uint64
        var status string
        if err := rows.Scan(&id, &status); err != nil {
            return nil, err
        }
        statuses[id] = model.ProductStatus(status)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return statuses, nil
}

// placeholders returns n comma-joined "?" markers for IN clauses.
func placeholders(n int) string {
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func idArgs(ids []uint64) []interface{} {
    args := make([]interface{}, 0, len(ids))
    for _, id := range ids {
        args = append(args, id)
    }
    return args
}
