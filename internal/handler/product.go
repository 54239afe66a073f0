// This file defines the public catalog handlers.  Unauthenticated users
// can browse products by status and fetch a single product by slug.
// Responses expose only storefront-safe fields.

package handler

import (
    "errors"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/plumka/shop-api/internal/model"
    "github.com/plumka/shop-api/internal/repository"
)

// ProductHandler serves the public product catalog.
type ProductHandler struct {
    Catalog Catalog
}

// NewProductHandler constructs a ProductHandler.
func NewProductHandler(catalog Catalog) *ProductHandler {
    if catalog == nil {
        panic("nil catalog passed to NewProductHandler")
    }
    return &ProductHandler{Catalog: catalog}
}

// PublicProduct is a product exposed via the public API.
type PublicProduct struct {
    ID          uint64    `json:"id"`
    Slug        string    `json:"slug"`
    Name        string    `json:"name"`
    Description string    `json:"description"`
    PriceCents  uint32    `json:"price_cents"`
    Status      string    `json:"status"`
    Featured    bool      `json:"featured"`
    CreatedAt   time.Time `json:"created_at"`
}

func toPublicProduct(p model.Product) PublicProduct {
    return PublicProduct{
        ID:          p.ID,
        Slug:        p.Slug,
        Name:        p.Name,
        Description: p.Description,
        PriceCents:  p.PriceCents,
        Status:      string(p.Status),
        Featured:    p.Featured,
        CreatedAt:   p.CreatedAt,
    }
}

// List handles GET /v1/products.  The optional status query parameter
// accepts "active" (default), "reserved", "sold", "inactive" or "all".
// Response JSON contains an "items" array of PublicProduct.
func (h *ProductHandler) List(c echo.Context) error {
    var filter *model.ProductStatus
    switch c.QueryParam("status") {
    case "", "active":
        s := model.ProductActive
        filter = &s
    case "reserved":
        s := model.ProductReserved
        filter = &s
    case "sold":
        s := model.ProductSold
        filter = &s
    case "inactive":
        s := model.ProductInactive
        filter = &s
    case "all":
        filter = nil
    default:
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status filter"})
    }

    products, err := h.Catalog.ListByStatus(c.Request().Context(), filter)
    if err != nil {
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    out := make([]PublicProduct, 0, len(products))
    for _, p := range products {
        out = append(out, toPublicProduct(p))
    }
    return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetBySlug handles GET /v1/products/:slug.
func (h *ProductHandler) GetBySlug(c echo.Context) error {
    slug := c.Param("slug")
    if slug == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slug"})
    }
    p, err := h.Catalog.GetBySlug(c.Request().Context(), slug)
    if err != nil {
        if errors.Is(err, repository.ErrProductNotFound) {
            return c.JSON(http.StatusNotFound, echo.Map{"error": "product not found"})
        }
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
    }
    return c.JSON(http.StatusOK, toPublicProduct(*p))
}
