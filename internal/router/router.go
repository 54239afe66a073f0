package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/plumka/shop-api/internal/config"
    "github.com/plumka/shop-api/internal/handler"
    "github.com/plumka/shop-api/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication and
// carry no middleware of their own.  Currently it exposes only a health
// check used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterCatalog registers the public product browse endpoints.  Catalog
// GETs are the only routes behind the Redis response cache; checkout and
// availability answers must never be served stale.
func RegisterCatalog(e *echo.Echo, p *handler.ProductHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
    g := e.Group("/v1/products")
    g.Use(middleware.NewRedisCache(cacheCfg, rdb))
    g.GET("", p.List)
    g.GET("/:slug", p.GetBySlug)
}

// RegisterCheckout registers the customer checkout surface: basket
// reservation, cancellation and the advisory availability query.  All
// three sit behind the rate limiter.
func RegisterCheckout(e *echo.Echo, h *handler.CheckoutHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
    rl := middleware.NewTokenBucket(rlCfg, rdb)
    g := e.Group("/v1", rl)
    g.POST("/checkout/basket", h.ReserveBasket)
    g.POST("/checkout/cancel", h.CancelCheckout)
    g.POST("/availability", h.Availability)
}

// RegisterWebhooks registers the payment provider notification endpoint.
// Authenticity comes from the signature header, not from a session, so
// the route is public but rate limited.
func RegisterWebhooks(e *echo.Echo, h *handler.WebhookHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
    e.POST("/v1/webhooks/payment", h.Handle, middleware.NewTokenBucket(rlCfg, rdb))
}

// RegisterAdmin registers the back-office endpoints.  Login is open;
// everything else requires a valid admin JWT.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
    e.POST("/v1/admin/login", a.Login)

    g := e.Group("/v1/admin")
    g.Use(middleware.JWTAuth(jwtSecret))
    g.Use(middleware.RequireRole("ADMIN"))
    g.POST("/reservations/cleanup", a.Cleanup)
    g.GET("/reservations", a.ListReservations)
    g.PATCH("/products/:id/status", a.OverrideProductStatus)
}
