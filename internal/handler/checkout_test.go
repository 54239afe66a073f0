package handler_test

import (
    "encoding/json"
    "fmt"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/plumka/shop-api/internal/handler"
    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/payment"
    "github.com/plumka/shop-api/internal/repository"
    "github.com/plumka/shop-api/internal/reservation"
)

func seedStore(statuses ...model.ProductStatus) *repository.MemoryStore {
    store := repository.NewMemoryStore()
    now := time.Now().UTC()
    for i, status := range statuses {
        id := uint64(i + 1)
        store.AddProduct(model.Product{
            ID:         id,
            Slug:       fmt.Sprintf("lamp-%d", id),
            Name:       fmt.Sprintf("Lamp %d", id),
            PriceCents: 25000,
            Status:     status,
            CreatedAt:  now,
            UpdatedAt:  now,
        })
    }
    return store
}

func newCheckoutHandler(store *repository.MemoryStore) *handler.CheckoutHandler {
    svc := reservation.NewService(store)
    return handler.NewCheckoutHandler(svc, payment.LocalIssuer{}, store, 30*time.Minute,
        "http://localhost/success", "http://localhost/cancel")
}

func doJSON(t *testing.T, h echo.HandlerFunc, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    require.NoError(t, h(c))

    var out map[string]any
    if rec.Body.Len() > 0 {
        require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
    }
    return rec, out
}

func TestReserveBasketSuccess(t *testing.T) {
    store := seedStore(model.ProductActive, model.ProductActive)
    h := newCheckoutHandler(store)

    rec, out := doJSON(t, h.ReserveBasket, http.MethodPost, "/v1/checkout/basket",
        `{"product_ids":[1,2],"customer_email":"klient@example.com"}`)

    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, true, out["success"])
    sessionID, _ := out["session_id"].(string)
    assert.True(t, strings.HasPrefix(sessionID, "cs_local_"))
    assert.NotEmpty(t, out["checkout_url"])
    assert.NotEmpty(t, out["expires_at"])

    assert.Equal(t, model.ProductReserved, store.Product(1).Status)
    assert.Equal(t, model.ProductReserved, store.Product(2).Status)
    res := store.ReservationBySession(sessionID)
    require.NotNil(t, res)
    require.NotNil(t, res.CustomerEmail)
    assert.Equal(t, "klient@example.com", *res.CustomerEmail)
}

func TestReserveBasketUnavailable(t *testing.T) {
    store := seedStore(model.ProductActive, model.ProductSold)
    h := newCheckoutHandler(store)

    rec, out := doJSON(t, h.ReserveBasket, http.MethodPost, "/v1/checkout/basket",
        `{"product_ids":[1,2]}`)

    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, false, out["success"])
    unavailable, ok := out["unavailable_products"].([]any)
    require.True(t, ok)
    require.Len(t, unavailable, 1)
    entry := unavailable[0].(map[string]any)
    assert.Equal(t, float64(2), entry["id"])
    assert.Equal(t, "sold", entry["reason"])
    assert.Equal(t, "Produkt został już sprzedany", entry["message"])

    // All-or-nothing: the available product is untouched.
    assert.Equal(t, model.ProductActive, store.Product(1).Status)
}

func TestReserveBasketValidation(t *testing.T) {
    h := newCheckoutHandler(seedStore(model.ProductActive))

    rec, _ := doJSON(t, h.ReserveBasket, http.MethodPost, "/v1/checkout/basket", `{}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    rec, _ = doJSON(t, h.ReserveBasket, http.MethodPost, "/v1/checkout/basket", `{"product_ids":[99]}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelCheckout(t *testing.T) {
    store := seedStore(model.ProductActive)
    h := newCheckoutHandler(store)

    _, out := doJSON(t, h.ReserveBasket, http.MethodPost, "/v1/checkout/basket", `{"product_ids":[1]}`)
    sessionID := out["session_id"].(string)

    rec, out := doJSON(t, h.CancelCheckout, http.MethodPost, "/v1/checkout/cancel",
        fmt.Sprintf(`{"session_id":%q}`, sessionID))
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, true, out["success"])
    assert.Equal(t, model.ProductActive, store.Product(1).Status)

    // A second cancel is answered 404: the hold is already gone.
    rec, _ = doJSON(t, h.CancelCheckout, http.MethodPost, "/v1/checkout/cancel",
        fmt.Sprintf(`{"session_id":%q}`, sessionID))
    assert.Equal(t, http.StatusNotFound, rec.Code)
    assert.Equal(t, model.ProductActive, store.Product(1).Status)
}

func TestCancelCheckoutUnknownSession(t *testing.T) {
    h := newCheckoutHandler(seedStore(model.ProductActive))

    rec, _ := doJSON(t, h.CancelCheckout, http.MethodPost, "/v1/checkout/cancel", `{"session_id":"cs_nope"}`)
    assert.Equal(t, http.StatusNotFound, rec.Code)

    rec, _ = doJSON(t, h.CancelCheckout, http.MethodPost, "/v1/checkout/cancel", `{}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
    store := seedStore(model.ProductActive, model.ProductReserved)
    h := newCheckoutHandler(store)

    rec, out := doJSON(t, h.Availability, http.MethodPost, "/v1/availability", `{"product_ids":[1,2,5]}`)
    require.Equal(t, http.StatusOK, rec.Code)

    available := out["available"].([]any)
    require.Len(t, available, 1)
    assert.Equal(t, float64(1), available[0])
    unavailable := out["unavailable"].([]any)
    assert.Len(t, unavailable, 2)
}
