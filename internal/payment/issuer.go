// Package payment integrates the external payment provider: creating and
// expiring checkout sessions, verifying webhook signatures and decoding
// webhook events.  The reservation engine itself never talks to the
// provider; it only consumes the opaque session id issued here.
package payment

import (
    "context"

    "github.com/google/uuid"
)

// Session is a checkout session at the payment provider.  The customer
// is redirected to URL to pay; ID is the opaque identifier every later
// webhook and reservation operation is keyed on.
type Session struct {
    ID  string
    URL string
}

// LineItem is one product presented on the provider's checkout page.
type LineItem struct {
    Name       string
    PriceCents uint32
}

// CreateSessionParams carries everything needed to open a checkout
// session.  Metadata is echoed back on webhook events and carries the
// product ids as a fallback when no ledger entry exists.
type CreateSessionParams struct {
    Items         []LineItem
    SuccessURL    string
    CancelURL     string
    CustomerEmail string
    Metadata      map[string]string
}

// SessionIssuer creates and cancels checkout sessions.  Cancellation is
// best effort: the provider expires abandoned sessions on its own timer
// and the reservation TTL is the authoritative hold duration, so a
// failed expire call is logged and ignored.
type SessionIssuer interface {
    CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error)
    ExpireSession(ctx context.Context, sessionID string) error
}

// LocalIssuer issues synthetic sessions without contacting any provider.
// Used by tests and by local development when no API key is configured;
// the returned URL points straight at the success page.
type LocalIssuer struct{}

// CreateSession returns a session with a generated id.
func (LocalIssuer) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
    id := "cs_local_" + uuid.NewString()
    return &Session{ID: id, URL: params.SuccessURL}, nil
}

// ExpireSession is a no-op for synthetic sessions.
func (LocalIssuer) ExpireSession(ctx context.Context, sessionID string) error { return nil }
