package main // Entry point package

import (
    "context"
    "log"
    "os/signal"
    "syscall"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/plumka/shop-api/internal/config"
    "github.com/plumka/shop-api/internal/database"
    "github.com/plumka/shop-api/internal/handler"
    "github.com/plumka/shop-api/internal/payment"
    "github.com/plumka/shop-api/internal/queue"
    "github.com/plumka/shop-api/internal/repository"
    "github.com/plumka/shop-api/internal/reservation"
    "github.com/plumka/shop-api/internal/router"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    if err := godotenv.Load(); err != nil {
        log.Printf("no .env file loaded: %v", err)
    }
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database connection failed: %v", err)
    }
    defer db.Close()

    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Println("redis unavailable; rate limiting and caching disabled")
    }

    store := repository.NewSQLStore(db)
    svc := reservation.NewService(store)
    sweeper := reservation.NewSweeper(svc, store, cfg.SweepInterval, cfg.SweepBatch)

    // Without an API key the provider client cannot authenticate, so fall
    // back to synthetic local sessions.
    var issuer payment.SessionIssuer
    var archiver handler.ProductArchiver
    if cfg.PaymentAPIKey != "" {
        client := payment.NewClient(cfg.PaymentAPIBase, cfg.PaymentAPIKey)
        issuer = client
        archiver = client
    } else {
        log.Println("no payment API key configured; using local session issuer")
        issuer = payment.LocalIssuer{}
    }

    e := echo.New()
    router.RegisterRoutes(e)
    router.RegisterCatalog(e, handler.NewProductHandler(store.Products()), config.LoadCacheConfig(), rdb)
    router.RegisterCheckout(e,
        handler.NewCheckoutHandler(svc, issuer, store.Products(), cfg.ReservationTTL(), cfg.CheckoutSuccessURL, cfg.CheckoutCancelURL),
        config.LoadRateLimitConfig(), rdb)
    router.RegisterWebhooks(e,
        handler.NewWebhookHandler(svc, store, store.Products(), archiver, cfg.PaymentWebhookSecret),
        config.LoadRateLimitConfig(), rdb)
    router.RegisterAdmin(e,
        handler.NewAdminHandler(cfg.JWTSecret, cfg.AdminPasswordHash, cfg.AccessTTLMin, sweeper, store, store.Reservations()),
        cfg.JWTSecret)

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    go sweeper.Run(ctx)

    go func() {
        if err := queue.StartSaleConsumer(); err != nil {
            log.Printf("sale consumer stopped: %v", err)
        }
    }()

    go func() {
        <-ctx.Done()
        _ = e.Shutdown(context.Background())
    }()

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Printf("server stopped: %v", err)
    }
}
