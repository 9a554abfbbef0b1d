// Package api is the gateway to the remote expense backend: transaction CRUD
// under /transactions and authentication under /auth.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"spendboard/internal/core"
	"spendboard/internal/log"
)

const maxErrorBody = 64 << 10

// Client issues requests against the backend. A Client without a token can
// only log in or register; use WithToken for transaction calls.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	token   string
	lists   *singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("parse base url: unsupported scheme %q", u.Scheme)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
		lists:   &singleflight.Group{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// WithToken returns a copy of c that authenticates with the bearer token.
// Copies share the connection pool and in-flight list requests.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the register payload.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, cred Credentials) (string, error) {
	return c.authenticate(ctx, "login", "/auth/login", cred)
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, reg Registration) (string, error) {
	return c.authenticate(ctx, "register", "/auth/register", reg)
}

func (c *Client) authenticate(ctx context.Context, op, path string, body any) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, op, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%s: response has no token", op)
	}
	return out.Token, nil
}

// List fetches the full transaction collection. Concurrent calls with the
// same token share one request.
func (c *Client) List(ctx context.Context) ([]core.Transaction, error) {
	v, err, shared := c.lists.Do("list:"+c.token, func() (any, error) {
		var txs []core.Transaction
		if err := c.do(ctx, "list transactions", http.MethodGet, "/transactions", nil, &txs); err != nil {
			return nil, err
		}
		return txs, nil
	})
	if err != nil {
		return nil, err
	}
	txs := v.([]core.Transaction)
	if shared {
		txs = append([]core.Transaction(nil), txs...)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	return txs, nil
}

// Create posts a new transaction; the backend assigns its id.
func (c *Client) Create(ctx context.Context, d core.Draft) (core.Transaction, error) {
	var tx core.Transaction
	err := c.do(ctx, "create transaction", http.MethodPost, "/transactions", d, &tx)
	return tx, err
}

// Update replaces the fields of transaction id.
func (c *Client) Update(ctx context.Context, id string, d core.Draft) (core.Transaction, error) {
	var tx core.Transaction
	err := c.do(ctx, "update transaction", http.MethodPut, "/transactions/"+url.PathEscape(id), d, &tx)
	return tx, err
}

// Delete removes transaction id.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, "delete transaction", http.MethodDelete, "/transactions/"+url.PathEscape(id), nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		slog.WarnContext(ctx, "Backend request failed",
			log.FieldOperation, op,
			log.FieldMethod, method,
			log.FieldPath, path,
			log.FieldError, err)
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "Backend request completed",
		log.FieldOperation, op,
		log.FieldMethod, method,
		log.FieldPath, path,
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode >= 400 {
		return &RequestError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts {"message": "..."} from an error body.
func errorMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(b) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(b, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
