// Package backend is the portal's client for the REST backend. Every
// privileged call takes the caller's bearer token as an argument; the client
// itself holds no credentials.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/galvanai/portal/internal/model"
)

const maxResponseBytes = 1 << 20

// Tokens are the opaque bearer credentials issued by the backend.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// LoginResult is the body of a successful POST /auth/login.
type LoginResult struct {
	Tokens
	Role  model.Role `json:"role"`
	Email string     `json:"email"`
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each call, including reading the response body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute http(s)", baseURL)
	}

	c := &Client{
		baseURL: u,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Register starts self-service registration. The backend emails an OTP.
func (c *Client) Register(ctx context.Context, in RegisterInput) error {
	body, contentType, err := in.multipart()
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/register", "", body, contentType, nil)
}

// CreateUser registers a user on behalf of a superadmin; the backend skips
// the OTP step for these.
func (c *Client) CreateUser(ctx context.Context, token string, in UserInput) error {
	body, contentType, err := in.multipart(true)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/auth/register", token, body, contentType, nil)
}

// VerifyOTP exchanges the emailed code for tokens.
func (c *Client) VerifyOTP(ctx context.Context, email, otp string) (Tokens, error) {
	var out Tokens
	err := c.doJSON(ctx, http.MethodPost, "/auth/verify-otp", "", map[string]string{
		"email": email,
		"otp":   otp,
	}, &out)
	return out, err
}

func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	var out LoginResult
	err := c.doJSON(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	return out, err
}

// Me returns the record of the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodGet, "/auth/me", token, nil, "", &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context, token string) ([]model.User, error) {
	var out []model.User
	if err := c.do(ctx, http.MethodGet, "/admin/users", token, nil, "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) UpdateUser(ctx context.Context, token string, id int64, in UserInput) error {
	body, contentType, err := in.multipart(false)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, userPath(id), token, body, contentType, nil)
}

func (c *Client) DeleteUser(ctx context.Context, token string, id int64) error {
	return c.do(ctx, http.MethodDelete, userPath(id), token, nil, "", nil)
}

func userPath(id int64) string {
	return fmt.Sprintf("/admin/users/%d", id)
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any) error {
	raw, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("backend: encode %s %s: %w", method, path, err)
	}
	return c.do(ctx, method, path, token, bytes.NewReader(raw), "application/json", out)
}

func (c *Client) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("backend: build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("backend: read %s %s: %w", method, path, err)
	}
	slog.Debug("backend: call", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("backend: decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	apiErr := &APIError{StatusCode: status}
	// Non-JSON error pages fall back to the status text.
	if json.Unmarshal(raw, &body) == nil {
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	}
	return apiErr
}
