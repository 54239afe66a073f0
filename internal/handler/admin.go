package handler

import (
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/repository"
    "github.com/plumka/shop-api/internal/reservation"
    "github.com/plumka/shop-api/internal/utils"
)

// AdminHandler serves the back-office surface: login, manual cleanup,
// catalog status overrides and reservation listing.  All routes except
// Login sit behind the JWT middleware with the ADMIN role.
type AdminHandler struct {
    Secret       string // JWT signing secret
    PasswordHash string // bcrypt hash of the admin password
    AccessTTLMin int

    Sweeper      *reservation.Sweeper
    Store        reservation.Store
    Reservations *repository.ReservationRepo // nil disables reservation listing
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(secret, passwordHash string, ttlMin int, sweeper *reservation.Sweeper, store reservation.Store, reservations *repository.ReservationRepo) *AdminHandler {
    if sweeper == nil || store == nil {
        panic("nil dependency passed to NewAdminHandler")
    }
    return &AdminHandler{
        Secret:       secret,
        PasswordHash: passwordHash,
        AccessTTLMin: ttlMin,
        Sweeper:      sweeper,
        Store:        store,
        Reservations: reservations,
    }
}

// Login handles POST /v1/admin/login.  The single shared admin password
// is checked against a bcrypt hash from configuration; on success an
// HS256 access token is issued.
func (h *AdminHandler) Login(c echo.Context) error {
    var body struct {
        Password string `json:"password"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.Password == "" || !utils.VerifyPassword(h.PasswordHash, body.Password) {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
    }
    tok, err := utils.NewAdminToken(h.Secret, "admin", h.AccessTTLMin)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token issuance failed"})
    }
    return c.JSON(http.StatusOK, echo.Map{
        "access_token": tok.Token,
        "expires_at":   tok.Exp,
    })
}

// Cleanup handles POST /v1/admin/reservations/cleanup.  It runs one
// sweep immediately and reports how many expired holds were found and
// how many were actually reclaimed.
func (h *AdminHandler) Cleanup(c echo.Context) error {
    report, err := h.Sweeper.Sweep(c.Request().Context())
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cleanup failed"})
    }
    return c.JSON(http.StatusOK, report)
}

// OverrideProductStatus handles PATCH /v1/admin/products/:id/status.
// Catalog management may only toggle between ACTIVE and INACTIVE; rows
// currently RESERVED or SOLD belong to the reservation flow and are
// refused with 409.
func (h *AdminHandler) OverrideProductStatus(c echo.Context) error {
    id, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || id == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid product id"})
    }
    var body struct {
        Status string `json:"status"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    target := model.ProductStatus(body.Status)
    if target != model.ProductActive && target != model.ProductInactive {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "status must be ACTIVE or INACTIVE"})
    }

    ctx := c.Request().Context()
    var current model.ProductStatus
    err = h.Store.WithinTx(ctx, func(tx reservation.StoreTx) error {
        statuses, err := tx.LockProducts(ctx, []uint64{id})
        if err != nil {
            return err
        }
        cur, ok := statuses[id]
        if !ok {
            return repository.ErrProductNotFound
        }
        current = cur
        if cur == target {
            return nil
        }
        if !cur.CanTransitionTo(target) {
            return repository.ErrConflict
        }
        return tx.UpdateProductStatus(ctx, []uint64{id}, target)
    })
    switch err {
    case nil:
        return c.JSON(http.StatusOK, echo.Map{"id": id, "status": target})
    case repository.ErrProductNotFound:
        return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
    case repository.ErrConflict:
        return c.JSON(http.StatusConflict, echo.Map{
            "error": "status change not allowed from " + string(current),
        })
    default:
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
}

// ListReservations handles GET /v1/admin/reservations.  Returns the most
// recent ledger entries with their product ids, newest first.  The limit
// query parameter defaults to 50 and is capped at 500.
func (h *AdminHandler) ListReservations(c echo.Context) error {
    if h.Reservations == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "reservation listing unavailable"})
    }
    limit := 50
    if raw := c.QueryParam("limit"); raw != "" {
        n, err := strconv.Atoi(raw)
        if err != nil || n < 1 {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid limit"})
        }
        limit = n
    }
    if limit > 500 {
        limit = 500
    }
    items, err := h.Reservations.ListRecent(c.Request().Context(), limit)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, echo.Map{"items": items})
}
