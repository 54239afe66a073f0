package handler

import (
    "context"
    "errors"
    "io"
    "log"
    "net/http"
    "sort"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/payment"
    "github.com/plumka/shop-api/internal/queue"
    "github.com/plumka/shop-api/internal/reservation"
    queue_publisher "github.com/plumka/shop-api/internal/service"
)

// maxWebhookBody bounds how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// ProductArchiver archives a product at the payment provider so it stops
// being purchasable there.  Optional; nil skips archiving.
type ProductArchiver interface {
    ArchiveProduct(ctx context.Context, providerProductID string) error
}

// WebhookHandler processes payment provider notifications.  Delivery is
// at-least-once, so every branch below must be idempotent: duplicate and
// late events resolve to harmless no-ops answered with 200 so the
// provider stops redelivering.  Non-2xx is reserved for malformed or
// unauthenticated payloads.
type WebhookHandler struct {
    Svc       *reservation.Service
    Store     reservation.Store
    Catalog   Catalog
    Archiver  ProductArchiver
    Secret    string
    Tolerance time.Duration
}

// NewWebhookHandler constructs a WebhookHandler.  Archiver may be nil
// when no provider client is configured.
func NewWebhookHandler(svc *reservation.Service, store reservation.Store, catalog Catalog, archiver ProductArchiver, secret string) *WebhookHandler {
    if svc == nil || store == nil || catalog == nil {
        panic("nil dependency passed to NewWebhookHandler")
    }
    return &WebhookHandler{
        Svc:       svc,
        Store:     store,
        Catalog:   catalog,
        Archiver:  archiver,
        Secret:    secret,
        Tolerance: payment.DefaultTolerance,
    }
}

// Handle processes POST /v1/webhooks/payment.
func (h *WebhookHandler) Handle(c echo.Context) error {
    payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable payload"})
    }

    sig := c.Request().Header.Get("Payment-Signature")
    ev, err := payment.ParseEvent(payload, sig, h.Secret, h.Tolerance)
    if err != nil {
        log.Printf("webhook: rejected event: %v", err)
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event"})
    }

    ctx := c.Request().Context()
    switch ev.Type {
    case payment.EventCheckoutCompleted:
        h.handleCompleted(ctx, ev)
    case payment.EventCheckoutExpired:
        h.handleExpired(ctx, ev)
    default:
        log.Printf("webhook: ignoring event type %s", ev.Type)
    }
    return c.JSON(http.StatusOK, echo.Map{"received": true})
}

// handleCompleted finalizes the ledger entry for a paid session and then
// performs the downstream transition the completion authorizes: products
// to SOLD, provider-side archiving, and a sale.completed event.
func (h *WebhookHandler) handleCompleted(ctx context.Context, ev *payment.Event) {
    sessionID := ev.Data.Object.ID
    result, err := h.Svc.Complete(ctx, sessionID)
    if err != nil {
        var notPending *reservation.NotPendingError
        switch {
        case errors.As(err, &notPending):
            if notPending.Status == model.ReservationExpired {
                // Payment went through after the hold was reclaimed.
                // Possible lost sale; surfaced for manual reconciliation,
                // products are not marked sold.
                log.Printf("webhook: payment completed after reservation expiry, session %s", sessionID)
            } else {
                log.Printf("webhook: duplicate completion for session %s (status %s)", sessionID, notPending.Status)
            }
        case errors.Is(err, reservation.ErrReservationNotFound):
            // No ledger entry; fall back to the product ids recorded in
            // the session metadata at creation time.
            ids, mdErr := payment.ProductIDsFromMetadata(ev.Data.Object.Metadata)
            if mdErr != nil || len(ids) == 0 {
                log.Printf("webhook: completed session %s has no reservation and no usable metadata", sessionID)
                return
            }
            log.Printf("webhook: completed session %s has no reservation, selling %v from metadata", sessionID, ids)
            h.finalizeSale(ctx, nil, sessionID, ev.Data.Object.CustomerEmail, ids)
        default:
            log.Printf("webhook: complete failed for session %s: %v", sessionID, err)
        }
        return
    }

    h.finalizeSale(ctx, result.Reservation, sessionID, ev.Data.Object.CustomerEmail, result.ProductIDs)
}

// handleExpired releases the hold for an expired provider session.  The
// sweeper may already have reclaimed it; that is the expected race and a
// no-op here.
func (h *WebhookHandler) handleExpired(ctx context.Context, ev *payment.Event) {
    sessionID := ev.Data.Object.ID
    result, err := h.Svc.Cancel(ctx, sessionID)
    if err != nil {
        var notPending *reservation.NotPendingError
        if errors.As(err, &notPending) || errors.Is(err, reservation.ErrReservationNotFound) {
            log.Printf("webhook: expiry for session %s is a no-op: %v", sessionID, err)
        } else {
            log.Printf("webhook: cancel failed for session %s: %v", sessionID, err)
        }
        return
    }
    publishReleased(ctx, result.Reservation, result.ReleasedProductIDs, "expired")
}

// finalizeSale marks the given products SOLD, archives them at the
// provider and publishes the sale event.  res is nil for metadata-only
// sales with no ledger entry.
func (h *WebhookHandler) finalizeSale(ctx context.Context, res *model.Reservation, sessionID, email string, productIDs []uint64) {
    if err := h.markSold(ctx, productIDs); err != nil {
        log.Printf("webhook: marking products %v sold failed: %v", productIDs, err)
        return
    }

    products, err := h.Catalog.ProductsByIDs(ctx, productIDs)
    if err != nil {
        log.Printf("webhook: loading sold products %v failed: %v", productIDs, err)
        products = nil
    }

    if h.Archiver != nil {
        for _, p := range products {
            if p.ProviderProductID == nil {
                continue
            }
            if err := h.Archiver.ArchiveProduct(ctx, *p.ProviderProductID); err != nil {
                log.Printf("webhook: archiving provider product %s failed: %v", *p.ProviderProductID, err)
            }
        }
    }

    event := queue.SaleCompletedEvent{
        EventID:     uuid.NewString(),
        SessionID:   sessionID,
        ProductIDs:  productIDs,
        CompletedAt: time.Now().UTC().Format(time.RFC3339),
    }
    if res != nil {
        event.ReservationID = res.ID
        if res.CustomerEmail != nil {
            event.CustomerEmail = *res.CustomerEmail
        }
    }
    if event.CustomerEmail == "" {
        event.CustomerEmail = email
    }
    for _, p := range products {
        event.ProductNames = append(event.ProductNames, p.Name)
        event.TotalCents += uint64(p.PriceCents)
    }
    _ = queue_publisher.PublishSaleCompleted(ctx, event)
}

// markSold flips the given products to SOLD in one transaction, locking
// the rows in ascending id order like every other status write.
func (h *WebhookHandler) markSold(ctx context.Context, productIDs []uint64) error {
    if len(productIDs) == 0 {
        return nil
    }
    ids := append([]uint64(nil), productIDs...)
    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    return h.Store.WithinTx(ctx, func(tx reservation.StoreTx) error {
        if _, err := tx.LockProducts(ctx, ids); err != nil {
            return err
        }
        return tx.UpdateProductStatus(ctx, ids, model.ProductSold)
    })
}
