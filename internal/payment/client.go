package payment

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strconv"
    "strings"
    "time"
)

// Client talks to the payment provider's REST API using form-encoded
// requests authenticated with a bearer API key.  It implements
// SessionIssuer.
type Client struct {
    baseURL string
    apiKey  string
    http    *http.Client
}

var _ SessionIssuer = (*Client)(nil)

// NewClient builds a Client for the given API base URL and secret key.
func NewClient(baseURL, apiKey string) *Client {
    return &Client{
        baseURL: strings.TrimSuffix(baseURL, "/"),
        apiKey:  apiKey,
        http:    &http.Client{Timeout: 10 * time.Second},
    }
}

// CreateSession opens a checkout session and returns its id and redirect
// URL.
func (c *Client) CreateSession(ctx context.Context, params CreateSessionParams) (*Session, error) {
    form := url.Values{}
    form.Set("mode", "payment")
    form.Set("success_url", params.SuccessURL)
    form.Set("cancel_url", params.CancelURL)
    if params.CustomerEmail != "" {
        form.Set("customer_email", params.CustomerEmail)
    }
    for i, item := range params.Items {
        prefix := fmt.Sprintf("line_items[%d]", i)
        form.Set(prefix+"[name]", item.Name)
        form.Set(prefix+"[amount]", strconv.FormatUint(uint64(item.PriceCents), 10))
        form.Set(prefix+"[quantity]", "1")
        form.Set(prefix+"[currency]", "pln")
    }
    for k, v := range params.Metadata {
        form.Set("metadata["+k+"]", v)
    }

    var out struct {
        ID  string `json:"id"`
        URL string `json:"url"`
    }
    if err := c.post(ctx, "/v1/checkout/sessions", form, &out); err != nil {
        return nil, err
    }
    return &Session{ID: out.ID, URL: out.URL}, nil
}

// ExpireSession asks the provider to expire a session early.  Safe to
// call on sessions the provider has already settled; those respond with
// an error status that the caller treats as best effort.
func (c *Client) ExpireSession(ctx context.Context, sessionID string) error {
    path := "/v1/checkout/sessions/" + url.PathEscape(sessionID) + "/expire"
    return c.post(ctx, path, url.Values{}, nil)
}

// ArchiveProduct deactivates a product in the provider's own catalog
// after it sold.  This is the explicit replacement for the sync the
// original storefront triggered implicitly from model hooks: marking a
// row SOLD in our database never calls the provider by itself.
func (c *Client) ArchiveProduct(ctx context.Context, providerProductID string) error {
    form := url.Values{}
    form.Set("active", "false")
    path := "/v1/products/" + url.PathEscape(providerProductID)
    return c.post(ctx, path, form, nil)
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
    req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
    if err != nil {
        return err
    }
    req.Header.Set("Authorization", "Bearer "+c.apiKey)
    req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

    resp, err := c.http.Do(req)
    if err != nil {
        return fmt.Errorf("payment api: %w", err)
    }
    defer resp.Body.Close()

    if resp.StatusCode < 200 || resp.StatusCode > 299 {
        body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
        return fmt.Errorf("payment api: %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
    }
    if out == nil {
        return nil
    }
    return json.NewDecoder(resp.Body).Decode(out)
}
