package payment

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "strconv"
    "strings"
    "time"
)

// Webhook event types this service consumes.
const (
    EventCheckoutCompleted = "checkout.session.completed"
    EventCheckoutExpired   = "checkout.session.expired"
)

// DefaultTolerance bounds how old a signed webhook may be before it is
// rejected as a possible replay.
const DefaultTolerance = 5 * time.Minute

var (
    // ErrMissingSignature is returned when the signature header is absent.
    ErrMissingSignature = errors.New("missing webhook signature")
    // ErrInvalidSignature is returned when the header is malformed or no
    // candidate signature matches the payload.
    ErrInvalidSignature = errors.New("invalid webhook signature")
    // ErrStaleTimestamp is returned when the signed timestamp falls
    // outside the tolerance window.
    ErrStaleTimestamp = errors.New("webhook timestamp outside tolerance")
)

// Event is a decoded webhook notification.  Data.Object is the checkout
// session the event refers to.
type Event struct {
    ID   string `json:"id"`
    Type string `json:"type"`
    Data struct {
        Object EventSession `json:"object"`
    } `json:"data"`
}

// EventSession is the checkout session embedded in an event.  Metadata
// carries the product ids set at session creation; it is only consulted
// when no ledger entry exists for the session.
type EventSession struct {
    ID            string            `json:"id"`
    CustomerEmail string            `json:"customer_email"`
    Metadata      map[string]string `json:"metadata"`
}

// ParseEvent verifies the signature header against the raw payload and
// decodes the event.  The header format is "t=<unix>,v1=<hex>" where the
// hex value is HMAC-SHA256 of "<unix>.<payload>" under the endpoint
// secret.  Multiple v1 entries are accepted to allow secret rotation.
func ParseEvent(payload []byte, sigHeader, secret string, tolerance time.Duration) (*Event, error) {
    if err := VerifySignature(payload, sigHeader, secret, tolerance); err != nil {
        return nil, err
    }
    var ev Event
    if err := json.Unmarshal(payload, &ev); err != nil {
        return nil, fmt.Errorf("invalid webhook payload: %w", err)
    }
    return &ev, nil
}

// VerifySignature checks the signature header without decoding the
// payload.
func VerifySignature(payload []byte, sigHeader, secret string, tolerance time.Duration) error {
    if sigHeader == "" {
        return ErrMissingSignature
    }
    if tolerance <= 0 {
        tolerance = DefaultTolerance
    }

    var ts int64 = -1
    var candidates []string
    for _, part := range strings.Split(sigHeader, ",") {
        k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
        if !ok {
            continue
        }
        switch k {
        case "t":
            n, err := strconv.ParseInt(v, 10, 64)
            if err != nil {
                return ErrInvalidSignature
            }
            ts = n
        case "v1":
            candidates = append(candidates, v)
        }
    }
    if ts < 0 || len(candidates) == 0 {
        return ErrInvalidSignature
    }

    age := time.Since(time.Unix(ts, 0))
    if age > tolerance || age < -tolerance {
        return ErrStaleTimestamp
    }

    expected := Sign(payload, secret, ts)
    for _, c := range candidates {
        if hmac.Equal([]byte(expected), []byte(c)) {
            return nil
        }
    }
    return ErrInvalidSignature
}

// Sign computes the hex signature of payload for the given timestamp.
// Exposed for tests and for the provider simulator.
func Sign(payload []byte, secret string, ts int64) string {
    mac := hmac.New(sha256.New, []byte(secret))
    fmt.Fprintf(mac, "%d.", ts)
    mac.Write(payload)
    return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader renders a complete header for payload signed now.
// Exposed for tests.
func SignatureHeader(payload []byte, secret string, now time.Time) string {
    ts := now.Unix()
    return fmt.Sprintf("t=%d,v1=%s", ts, Sign(payload, secret, ts))
}

// ProductIDsFromMetadata extracts the fallback product id list from
// session metadata: a comma-separated "product_ids" for basket
// checkouts, or a single "product_id" for the legacy one-item flow.
func ProductIDsFromMetadata(md map[string]string) ([]uint64, error) {
    if md == nil {
        return nil, nil
    }
    if raw, ok := md["product_ids"]; ok && raw != "" {
        parts := strings.Split(raw, ",")
        ids := make([]uint64, 0, len(parts))
        for _, p := range parts {
            id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
            if err != nil {
                return nil, fmt.Errorf("invalid product_ids metadata %q", raw)
            }
            ids = append(ids, id)
        }
        return ids, nil
    }
    if raw, ok := md["product_id"]; ok && raw != "" {
        id, err := strconv.ParseUint(raw, 10, 64)
        if err != nil {
            return nil, fmt.Errorf("invalid product_id metadata %q", raw)
        }
        return []uint64{id}, nil
    }
    return nil, nil
}
