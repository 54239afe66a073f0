package main // Cleanup command: reclaims expired pending reservations

import (
    "context"
    "flag"
    "log"
    "time"

    "github.com/joho/godotenv"

    "github.com/plumka/shop-api/internal/config"
    "github.com/plumka/shop-api/internal/database"
    "github.com/plumka/shop-api/internal/repository"
    "github.com/plumka/shop-api/internal/reservation"
)

func main() {
    dryRun := flag.Bool("dry-run", false, "list expired reservations without cancelling them")
    batch := flag.Int("batch", 0, "max reservations to process (0 uses SWEEP_BATCH)")
    flag.Parse()

    if err := godotenv.Load(); err != nil {
        log.Printf("no .env file loaded: %v", err)
    }
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database connection failed: %v", err)
    }
    defer db.Close()

    store := repository.NewSQLStore(db)
    limit := cfg.SweepBatch
    if *batch > 0 {
        limit = *batch
    }

    ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
    defer cancel()

    if *dryRun {
        sessions, err := store.ExpiredPendingSessions(ctx, time.Now().UTC(), limit)
        if err != nil {
            log.Fatalf("listing expired reservations failed: %v", err)
        }
        log.Printf("dry run: %d expired pending reservations would be cancelled", len(sessions))
        for _, s := range sessions {
            log.Printf("dry run: would cancel session %s", s)
        }
        return
    }

    svc := reservation.NewService(store)
    sweeper := reservation.NewSweeper(svc, store, cfg.SweepInterval, limit)
    report, err := sweeper.Sweep(ctx)
    if err != nil {
        log.Fatalf("cleanup failed: %v", err)
    }
    log.Printf("cleanup done: found=%d cancelled=%d", report.Found, report.Cancelled)
}
