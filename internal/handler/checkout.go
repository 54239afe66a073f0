package handler

import (
    "context"
    "errors"
    "fmt"
    "log"
    "net/http"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/payment"
    "github.com/plumka/shop-api/internal/queue"
    "github.com/plumka/shop-api/internal/reservation"
    queue_publisher "github.com/plumka/shop-api/internal/service"
)

// Catalog is the read surface of the product table needed by handlers.
// Both the MySQL repository and the in-memory store satisfy it.
type Catalog interface {
    ProductsByIDs(ctx context.Context, ids []uint64) ([]model.Product, error)
    GetBySlug(ctx context.Context, slug string) (*model.Product, error)
    ListByStatus(ctx context.Context, status *model.ProductStatus) ([]model.Product, error)
}

// CheckoutHandler drives the customer checkout flow: opening a payment
// session, claiming the basket, answering availability queries and
// cancelling an abandoned checkout.  The claim itself is delegated to the
// reservation service; this layer only sequences the provider calls
// around it.
type CheckoutHandler struct {
    Svc        *reservation.Service
    Issuer     payment.SessionIssuer
    Catalog    Catalog
    TTL        time.Duration
    SuccessURL string
    CancelURL  string
}

// NewCheckoutHandler constructs a CheckoutHandler.  All dependencies must
// be non-nil; a zero TTL falls back to the engine default.
func NewCheckoutHandler(svc *reservation.Service, issuer payment.SessionIssuer, catalog Catalog, ttl time.Duration, successURL, cancelURL string) *CheckoutHandler {
    if svc == nil || issuer == nil || catalog == nil {
        panic("nil dependency passed to NewCheckoutHandler")
    }
    if ttl <= 0 {
        ttl = reservation.DefaultTTL
    }
    return &CheckoutHandler{
        Svc:        svc,
        Issuer:     issuer,
        Catalog:    catalog,
        TTL:        ttl,
        SuccessURL: successURL,
        CancelURL:  cancelURL,
    }
}

// ReserveBasket handles POST /v1/checkout/basket.  The body carries the
// basket product ids and an optional customer email.  On success the
// provider session id and checkout URL are returned together with the
// hold expiry.  When any product cannot be claimed the response is still
// 200 with success=false and a per-product reasons list, and the freshly
// created provider session is expired best-effort.
func (h *CheckoutHandler) ReserveBasket(c echo.Context) error {
    var body struct {
        ProductIDs    []uint64 `json:"product_ids"`
        CustomerEmail string   `json:"customer_email"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.ProductIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_ids is required"})
    }

    ctx := c.Request().Context()
    products, err := h.Catalog.ProductsByIDs(ctx, body.ProductIDs)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if len(products) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "no products found for basket"})
    }

    items := make([]payment.LineItem, 0, len(products))
    idStrs := make([]string, 0, len(products))
    for _, p := range products {
        items = append(items, payment.LineItem{Name: p.Name, PriceCents: p.PriceCents})
        idStrs = append(idStrs, fmt.Sprint(p.ID))
    }

    sess, err := h.Issuer.CreateSession(ctx, payment.CreateSessionParams{
        Items:         items,
        SuccessURL:    h.SuccessURL,
        CancelURL:     h.CancelURL,
        CustomerEmail: body.CustomerEmail,
        Metadata:      map[string]string{"product_ids": strings.Join(idStrs, ",")},
    })
    if err != nil {
        log.Printf("checkout: create session failed: %v", err)
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
    }

    var email *string
    if body.CustomerEmail != "" {
        email = &body.CustomerEmail
    }
    result, err := h.Svc.Reserve(ctx, body.ProductIDs, sess.ID, h.TTL, email)
    if err != nil {
        if errors.Is(err, reservation.ErrNoProducts) || errors.Is(err, reservation.ErrMissingSession) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    if !result.Success() {
        // The session was opened before the claim; nobody will pay it now.
        if expErr := h.Issuer.ExpireSession(ctx, sess.ID); expErr != nil {
            log.Printf("checkout: expire session %s failed: %v", sess.ID, expErr)
        }
        return c.JSON(http.StatusOK, echo.Map{
            "success":              false,
            "unavailable_products": result.Unavailable,
        })
    }

    return c.JSON(http.StatusOK, echo.Map{
        "success":      true,
        "session_id":   sess.ID,
        "checkout_url": sess.URL,
        "expires_at":   result.Reservation.ExpiresAt.UTC(),
    })
}

// CancelCheckout handles POST /v1/checkout/cancel.  The provider session
// is expired best-effort first, then the hold is released.  A session
// with no pending reservation yields 404; releasing an already released
// or completed reservation is reported there too, never applied twice.
func (h *CheckoutHandler) CancelCheckout(c echo.Context) error {
    var body struct {
        SessionID string `json:"session_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.SessionID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "session_id is required"})
    }

    ctx := c.Request().Context()
    if err := h.Issuer.ExpireSession(ctx, body.SessionID); err != nil {
        log.Printf("checkout: expire session %s failed: %v", body.SessionID, err)
    }

    result, err := h.Svc.Cancel(ctx, body.SessionID)
    if err != nil {
        var notPending *reservation.NotPendingError
        if errors.Is(err, reservation.ErrReservationNotFound) || errors.As(err, &notPending) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "no pending reservation for session"})
        }
        if errors.Is(err, reservation.ErrMissingSession) {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }

    publishReleased(ctx, result.Reservation, result.ReleasedProductIDs, "cancelled")

    return c.JSON(http.StatusOK, echo.Map{
        "success":              true,
        "released_product_ids": result.ReleasedProductIDs,
    })
}

// Availability handles POST /v1/availability.  Purely advisory: the
// answer can be stale by the time the client acts on it, and only the
// atomic re-check inside the claim decides.
func (h *CheckoutHandler) Availability(c echo.Context) error {
    var body struct {
        ProductIDs []uint64 `json:"product_ids"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if len(body.ProductIDs) == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "product_ids is required"})
    }

    avail, err := h.Svc.CheckAvailability(c.Request().Context(), body.ProductIDs)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, avail)
}

// publishReleased emits a reservation.released event.  Broker failures
// are logged by the publisher and ignored here.
func publishReleased(ctx context.Context, res *model.Reservation, productIDs []uint64, reason string) {
    _ = queue_publisher.PublishReservationReleased(ctx, queue.ReservationReleasedEvent{
        EventID:       uuid.NewString(),
        ReservationID: res.ID,
        SessionID:     res.SessionID,
        ProductIDs:    productIDs,
        Reason:        reason,
        ReleasedAt:    time.Now().UTC().Format(time.RFC3339),
    })
}
