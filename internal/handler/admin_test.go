package handler_test

import (
    "context"
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
    "github.com/plumka/shop-api/internal/repository"
    "github.com/plumka/shop-api/internal/reservation"
    "github.com/plumka/shop-api/internal/utils"
)

func newAdminHandler(t *testing.T, store *repository.MemoryStore) *handler.AdminHandler {
    t.Helper()
    hash, err := utils.HashPassword("sekret123")
    require.NoError(t, err)
    svc := reservation.NewService(store)
    sweeper := reservation.NewSweeper(svc, store, time.Minute, 100)
    return handler.NewAdminHandler("test-jwt-secret", hash, 60, sweeper, store, nil)
}

func TestAdminLogin(t *testing.T) {
    h := newAdminHandler(t, seedStore())

    rec, out := doJSON(t, h.Login, http.MethodPost, "/v1/admin/login", `{"password":"sekret123"}`)
    require.Equal(t, http.StatusOK, rec.Code)
    token, _ := out["access_token"].(string)
    assert.NotEmpty(t, token)
    assert.NotEmpty(t, out["expires_at"])

    rec, _ = doJSON(t, h.Login, http.MethodPost, "/v1/admin/login", `{"password":"wrong"}`)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)

    rec, _ = doJSON(t, h.Login, http.MethodPost, "/v1/admin/login", `{}`)
    assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminCleanup(t *testing.T) {
    store := seedStore(model.ProductActive, model.ProductActive)
    svc := reservation.NewService(store)
    h := newAdminHandler(t, store)

    _, err := svc.Reserve(context.Background(), []uint64{1}, "cs_old", time.Hour, nil)
    require.NoError(t, err)
    store.SetReservationExpiry("cs_old", time.Now().UTC().Add(-time.Minute))

    rec, out := doJSON(t, h.Cleanup, http.MethodPost, "/v1/admin/reservations/cleanup", "")
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, float64(1), out["found"])
    assert.Equal(t, float64(1), out["cancelled"])
    assert.Equal(t, model.ProductActive, store.Product(1).Status)
}

func patchStatus(t *testing.T, h *handler.AdminHandler, id, body string) *httptest.ResponseRecorder {
    t.Helper()
    e := echo.New()
    req := httptest.NewRequest(http.MethodPatch, "/v1/admin/products/"+id+"/status", strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    rec := httptest.NewRecorder()
    c := e.NewContext(req, rec)
    c.SetParamNames("id")
    c.SetParamValues(id)
    require.NoError(t, h.OverrideProductStatus(c))
    return rec
}

func TestAdminOverrideProductStatus(t *testing.T) {
    store := seedStore(model.ProductActive, model.ProductReserved, model.ProductSold)
    h := newAdminHandler(t, store)

    rec := patchStatus(t, h, "1", `{"status":"INACTIVE"}`)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, model.ProductInactive, store.Product(1).Status)

    rec = patchStatus(t, h, "1", `{"status":"ACTIVE"}`)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, model.ProductActive, store.Product(1).Status)

    // Rows owned by the reservation flow are refused.
    rec = patchStatus(t, h, "2", `{"status":"INACTIVE"}`)
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, model.ProductReserved, store.Product(2).Status)

    rec = patchStatus(t, h, "3", `{"status":"ACTIVE"}`)
    assert.Equal(t, http.StatusConflict, rec.Code)
    assert.Equal(t, model.ProductSold, store.Product(3).Status)

    // Only catalog states are accepted as targets.
    rec = patchStatus(t, h, "1", `{"status":"SOLD"}`)
    assert.Equal(t, http.StatusBadRequest, rec.Code)

    rec = patchStatus(t, h, "404", `{"status":"INACTIVE"}`)
    assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminOverrideSameStatusIsNoOp(t *testing.T) {
    store := seedStore(model.ProductActive)
    h := newAdminHandler(t, store)

    rec := patchStatus(t, h, "1", `{"status":"ACTIVE"}`)
    require.Equal(t, http.StatusOK, rec.Code)
    assert.Equal(t, model.ProductActive, store.Product(1).Status)
}

func TestAdminListReservationsUnavailable(t *testing.T) {
    // Without a SQL-backed repository the listing degrades explicitly.
    h := newAdminHandler(t, seedStore())
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/v1/admin/reservations", nil)
    rec := httptest.NewRecorder()
    require.NoError(t, h.ListReservations(e.NewContext(req, rec)))
    assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
