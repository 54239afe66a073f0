package config // package config loads application configuration from environment variables

import (
    "log"
    "os"
    "strconv"
    "time"
)

// Config holds all runtime configuration values.  Each field corresponds
// to an environment variable.  Payment provider settings are optional:
// when PaymentAPIKey is empty the server falls back to a local session
// issuer, which is only useful for development.
type Config struct {
    Env    string // application environment (e.g. "dev", "prod")
    Port   string // HTTP port to listen on
    DBUser string // database username
    DBPass string // database password (optional)
    DBHost string // database host address
    DBPort string // database port number
    DBName string // database name

    JWTSecret         string // secret used to sign admin JWTs
    AdminPasswordHash string // bcrypt hash of the admin panel password
    AccessTTLMin      int    // admin access token time-to-live in minutes

    ReservationTTLMin int           // hold duration for checkout reservations in minutes
    SweepInterval     time.Duration // how often the expiry sweeper runs
    SweepBatch        int           // max reservations reclaimed per sweep

    PaymentAPIBase       string // payment provider API base URL
    PaymentAPIKey        string // payment provider secret key (optional)
    PaymentWebhookSecret string // endpoint secret for webhook signatures

    CheckoutSuccessURL string // storefront URL the provider redirects to after payment
    CheckoutCancelURL  string // storefront URL the provider redirects to on abandon
}

// Load reads configuration from environment variables.  Required
// variables are enforced by must(); a missing value exits the program
// with a fatal log message.
func Load() Config {
    return Config{
        Env:    must("APP_ENV"),
        Port:   must("APP_PORT"),
        DBUser: must("DB_USER"),
        DBPass: os.Getenv("DB_PASS"),
        DBHost: must("DB_HOST"),
        DBPort: must("DB_PORT"),
        DBName: must("DB_NAME"),

        JWTSecret:         must("JWT_SECRET"),
        AdminPasswordHash: must("ADMIN_PASSWORD_HASH"),
        AccessTTLMin:      intOr("ACCESS_TOKEN_TTL_MIN", 60),

        ReservationTTLMin: intOr("RESERVATION_TTL_MIN", 30),
        SweepInterval:     envDur("SWEEP_INTERVAL", 5*time.Minute),
        SweepBatch:        intOr("SWEEP_BATCH", 100),

        PaymentAPIBase:       envStr("PAYMENT_API_BASE", "https://api.payproc.example"),
        PaymentAPIKey:        os.Getenv("PAYMENT_API_KEY"),
        PaymentWebhookSecret: must("PAYMENT_WEBHOOK_SECRET"),

        CheckoutSuccessURL: envStr("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
        CheckoutCancelURL:  envStr("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),
    }
}

// ReservationTTL returns the configured hold duration.
func (c Config) ReservationTTL() time.Duration {
    return time.Duration(c.ReservationTTLMin) * time.Minute
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func intOr(key string, def int) int {
    v := os.Getenv(key)
    if v == "" {
        return def
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, v)
    }
    return n
}
