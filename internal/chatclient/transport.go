package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

const (
	// NonceHeader carries the host site's CSRF nonce
	NonceHeader = "X-WP-Nonce"

	defaultTimeout   = 15 * time.Second
	maxErrorBodySize = 8 << 10
)

// Transport shapes chat API requests and classifies their failures
type Transport struct {
	baseURL          *url.URL
	httpClient       *http.Client
	nonce            string
	timeout          time.Duration
	onSessionExpired func()
	cookies          []*http.Cookie
}

// TransportOption customizes a Transport
type TransportOption func(*Transport)

// WithHTTPClient replaces the default client. The transport works on a
// shallow copy, so c itself is never modified; a copy without a cookie jar
// gets its own so the session cookie keeps flowing.
func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) {
		if c == nil {
			return
		}
		own := *c
		t.httpClient = &own
	}
}

// WithTimeout bounds every request, including reading the body
func WithTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		t.timeout = d
	}
}

// WithNonce sets the CSRF nonce sent on state-changing requests
func WithNonce(nonce string) TransportOption {
	return func(t *Transport) {
		t.nonce = nonce
	}
}

// WithSessionCookie seeds the cookie jar with the host site's session cookie
func WithSessionCookie(name, value string) TransportOption {
	return func(t *Transport) {
		if name != "" && value != "" {
			t.cookies = append(t.cookies, &http.Cookie{Name: name, Value: value})
		}
	}
}

// WithOnSessionExpired registers the global hook run on every 401
func WithOnSessionExpired(fn func()) TransportOption {
	return func(t *Transport) {
		t.onSessionExpired = fn
	}
}

// NewTransport creates a transport rooted at baseURL, e.g. https://host/api/v1
func NewTransport(baseURL string, opts ...TransportOption) (*Transport, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", baseURL)
	}

	t := &Transport{baseURL: u}
	for _, opt := range opts {
		opt(t)
	}

	if t.httpClient == nil {
		t.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if t.timeout > 0 {
		t.httpClient.Timeout = t.timeout
	}
	if t.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		t.httpClient.Jar = jar
	}
	if len(t.cookies) > 0 {
		t.httpClient.Jar.SetCookies(t.baseURL, t.cookies)
	}

	return t, nil
}

// IssueGuestID asks the server for a signed guest id
func (t *Transport) IssueGuestID(ctx context.Context) (string, error) {
	var resp struct {
		GuestID string `json:"guest_id"`
	}
	if err := t.do(ctx, http.MethodPost, "/guest-ids", nil, nil, &resp); err != nil {
		return "", err
	}
	return resp.GuestID, nil
}

// ProductRoom binds a product conversation. An empty roomKey lets the
// server derive the logged-in viewer's room.
func (t *Transport) ProductRoom(productID int64, roomKey, viewerName string) *ProductRoom {
	return &ProductRoom{transport: t, productID: productID, roomKey: roomKey, viewerName: viewerName}
}

// PurchaseRoom binds the conversation of one purchase
func (t *Transport) PurchaseRoom(purchaseID string) *PurchaseRoom {
	return &PurchaseRoom{transport: t, purchaseID: purchaseID}
}

func (t *Transport) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	u := t.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet && method != http.MethodHead && t.nonce != "" {
		req.Header.Set(NonceHeader, t.nonce)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: KindGeneric, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return t.classify(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Kind: KindGeneric, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func (t *Transport) classify(resp *http.Response) error {
	chatErr := &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode}

	var envelope struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodySize)).Decode(&envelope); err == nil {
		chatErr.Code = envelope.Code
		chatErr.Message = envelope.Error
	}

	if chatErr.Kind == KindSessionExpired && t.onSessionExpired != nil {
		t.onSessionExpired()
	}
	return chatErr
}
