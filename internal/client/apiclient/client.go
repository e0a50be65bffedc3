// Package apiclient is the HTTP client for the order/user management API.
// It converts transport failures and error statuses into the typed errors of
// the domain package so callers never inspect HTTP details.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/orderdesk/internal/core/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	headerRequestID = "X-Request-ID"
)

// TokenSource supplies the bearer token for each request.
type TokenSource interface {
	Token() string
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func() string

func (f TokenSourceFunc) Token() string { return f() }

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the request logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.log = log }
}

// Client talks to the accounts and purchases endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        zerolog.Logger
}

// New creates a client for baseURL (e.g. http://localhost:8001).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		tokens:     TokenSourceFunc(func() string { return "" }),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

// Login calls POST /api/login and returns the access token.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, call{
		op:     "login",
		method: http.MethodPost,
		path:   "/api/login",
		body:   loginRequest{Username: username, Password: password},
		out:    &resp,
		login:  true,
	})
	if err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", &domain.NetworkError{Op: "login", Err: errors.New("response has no access_token")}
	}
	return resp.AccessToken, nil
}

// ListOrders calls GET /api/orders.
func (c *Client) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.do(ctx, call{op: "list orders", method: http.MethodGet, path: "/api/orders", out: &orders}); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder calls POST /api/orders.
func (c *Client) CreateOrder(ctx context.Context, in domain.CreateOrderInput) (*domain.Order, error) {
	var order domain.Order
	if err := c.do(ctx, call{op: "create order", method: http.MethodPost, path: "/api/orders", body: in, out: &order}); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListUsers calls GET /api/users.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := c.do(ctx, call{op: "list users", method: http.MethodGet, path: "/api/users", out: &users}); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser calls GET /api/users/{id}.
func (c *Client) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, call{op: "get user", method: http.MethodGet, path: userPath(id), out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

type createUserRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Email    *string     `json:"email,omitempty"`
	FullName *string     `json:"full_name,omitempty"`
	UserType domain.Role `json:"user_type"`
}

// CreateUser calls POST /api/users.
func (c *Client) CreateUser(ctx context.Context, in domain.CreateUserInput) (*domain.User, error) {
	body := createUserRequest{
		Username: in.Username,
		Password: in.Password,
		Email:    in.Email,
		FullName: in.FullName,
		UserType: in.UserType,
	}
	var user domain.User
	if err := c.do(ctx, call{op: "create user", method: http.MethodPost, path: "/api/users", body: body, out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser calls PUT /api/users/{id}.
func (c *Client) UpdateUser(ctx context.Context, id int64, in domain.UpdateUserInput) (*domain.User, error) {
	var user domain.User
	if err := c.do(ctx, call{op: "update user", method: http.MethodPut, path: userPath(id), body: in, out: &user}); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser calls DELETE /api/users/{id}.
func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.do(ctx, call{op: "delete user", method: http.MethodDelete, path: userPath(id)})
}

func userPath(id int64) string {
	return "/api/users/" + strconv.FormatInt(id, 10)
}

type call struct {
	op     string
	method string
	path   string
	body   any
	out    any
	// login marks the credential exchange, whose 401/404 mean bad
	// credentials rather than an expired session.
	login bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal input: %w", cl.op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", cl.op, err)
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set(headerRequestID, reqID)
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.handleRequestError(ctx, cl.op, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("request_id", reqID).
		Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.handleErrorResponse(cl, resp)
	}
	if cl.out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return &domain.NetworkError{Op: cl.op, Err: fmt.Errorf("invalid response from api: %w", err)}
	}
	return nil
}

// handleRequestError converts transport failures, keeping context errors
// reachable through errors.Is.
func (c *Client) handleRequestError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return &domain.NetworkError{Op: op, Err: ctxErr}
	}
	return &domain.NetworkError{Op: op, Err: fmt.Errorf("cannot connect to api at %s: %w", c.baseURL, err)}
}

// handleErrorResponse maps an error status to the domain taxonomy.
func (c *Client) handleErrorResponse(cl call, resp *http.Response) error {
	msg := errorMessage(resp)
	status := resp.StatusCode

	if cl.login {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			if msg == "" {
				msg = "Login failed"
			}
			return &domain.AuthError{Status: status, Message: msg}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &domain.ValidationError{Status: status, Message: orDefault(msg, "invalid credentials payload")}
		}
		return &domain.NetworkError{Op: cl.op, Status: status}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.AuthorizationError{Status: status, Message: msg}
	case http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		return &domain.ValidationError{Status: status, Message: orDefault(msg, http.StatusText(status))}
	}
	return &domain.NetworkError{Op: cl.op, Status: status}
}

// errorMessage reads {"detail": "..."} or {"error": "..."}. Validation
// failures may carry detail as a list of {"msg": "..."} objects.
func errorMessage(resp *http.Response) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err != nil {
		return ""
	}
	if len(body.Detail) > 0 {
		var s string
		if err := json.Unmarshal(body.Detail, &s); err == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(body.Detail, &items); err == nil && len(items) > 0 {
			return items[0].Msg
		}
	}
	return body.Error
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
